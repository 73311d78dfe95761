package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ChannelHandler handles one channel call. args are the raw JSON values of
// the request's "args" array, already validated against the channel schema.
type ChannelHandler func(ctx context.Context, args []json.RawMessage) (interface{}, error)

// ChannelRequest is the body of POST /v1/{channel}
type ChannelRequest struct {
	Args []json.RawMessage `json:"args"`
}

// Envelope is the body of every channel response
type Envelope struct {
	Channel  string      `json:"channel"`
	Response interface{} `json:"response"`
}

// Failure is the response of a channel call that did not reach or failed in its handler
type Failure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func failure(format string, args ...interface{}) Failure {
	return Failure{Success: false, Message: fmt.Sprintf(format, args...)}
}

// ServerOptions configures the gateway server
type ServerOptions struct {
	Host string
	Port int

	// SharedSecret, when set, must be presented as a bearer token on channel calls
	SharedSecret string

	RateLimitPerMinute int

	// TrustedProxies lists peer IPs whose X-Forwarded-For header names the client
	TrustedProxies []string

	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

// HealthStatus is the body of GET /health
type HealthStatus struct {
	Status    string   `json:"status"`
	Uptime    float64  `json:"uptime"`
	Channels  []string `json:"channels"`
	Timestamp int64    `json:"timestamp"`
}

// Arg decodes args[i] into v
func Arg(args []json.RawMessage, i int, v interface{}) error {
	if i >= len(args) {
		return fmt.Errorf("missing argument %d", i)
	}
	if err := json.Unmarshal(args[i], v); err != nil {
		return fmt.Errorf("invalid argument %d: %w", i, err)
	}
	return nil
}

// OptionalArg decodes args[i] into v when present and not null
func OptionalArg(args []json.RawMessage, i int, v interface{}) error {
	if i >= len(args) || string(args[i]) == "null" {
		return nil
	}
	return Arg(args, i, v)
}
