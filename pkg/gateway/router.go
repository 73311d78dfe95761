package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

type channelEntry struct {
	handler ChannelHandler
	schema  *gojsonschema.Schema
}

// ChannelRouter maps channel names to handlers
type ChannelRouter struct {
	mu       sync.RWMutex
	channels map[string]channelEntry
}

// NewChannelRouter creates a new channel router
func NewChannelRouter() *ChannelRouter {
	return &ChannelRouter{
		channels: make(map[string]channelEntry),
	}
}

// ArgsSchema builds a request schema for a positional args array. Each item
// is the JSON schema of one argument; the first required items must be present.
func ArgsSchema(required int, items ...map[string]interface{}) map[string]interface{} {
	list := make([]interface{}, len(items))
	for i, item := range items {
		list[i] = item
	}

	return map[string]interface{}{
		"type":     "object",
		"required": []string{"args"},
		"properties": map[string]interface{}{
			"args": map[string]interface{}{
				"type":            "array",
				"items":           list,
				"minItems":        required,
				"maxItems":        len(items),
				"additionalItems": false,
			},
		},
	}
}

// RegisterChannel registers a handler. A nil schema accepts any args array.
func (r *ChannelRouter) RegisterChannel(name string, schema map[string]interface{}, handler ChannelHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	if name == "" {
		return fmt.Errorf("channel name cannot be empty")
	}

	entry := channelEntry{handler: handler}
	if schema != nil {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
		if err != nil {
			return fmt.Errorf("invalid schema for channel %s: %w", name, err)
		}
		entry.schema = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.channels[name] = entry
	return nil
}

// UnregisterChannel removes a channel
func (r *ChannelRouter) UnregisterChannel(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.channels, name)
}

// HasChannel checks if a channel is registered
func (r *ChannelRouter) HasChannel(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.channels[name]
	return exists
}

// Channels returns all registered channel names, sorted
func (r *ChannelRouter) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Route validates body and calls the channel handler. It returns the HTTP
// status to answer with; the envelope is always filled in.
func (r *ChannelRouter) Route(ctx context.Context, channel string, body []byte) (envelope Envelope, status int) {
	envelope = Envelope{Channel: channel}

	r.mu.RLock()
	entry, exists := r.channels[channel]
	r.mu.RUnlock()

	if !exists {
		envelope.Response = failure("Unknown channel: %s", channel)
		return envelope, http.StatusNotFound
	}

	if len(body) == 0 {
		body = []byte(`{"args":[]}`)
	}

	if entry.schema != nil {
		result, err := entry.schema.Validate(gojsonschema.NewBytesLoader(body))
		if err != nil {
			envelope.Response = failure("Invalid request body: %v", err)
			return envelope, http.StatusBadRequest
		}
		if !result.Valid() {
			msgs := make([]string, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				msgs = append(msgs, e.String())
			}
			envelope.Response = failure("Invalid arguments: %v", msgs)
			return envelope, http.StatusBadRequest
		}
	}

	var req ChannelRequest
	if err := json.Unmarshal(body, &req); err != nil {
		envelope.Response = failure("Invalid request body: %v", err)
		return envelope, http.StatusBadRequest
	}

	defer func() {
		if rec := recover(); rec != nil {
			envelope.Response = failure("Internal error: %v", rec)
			status = http.StatusOK
		}
	}()

	response, err := entry.handler(ctx, req.Args)
	if err != nil {
		envelope.Response = failure("%s", err.Error())
		return envelope, http.StatusOK
	}

	envelope.Response = response
	return envelope, http.StatusOK
}
