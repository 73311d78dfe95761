package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"resty.dev/v3"
)

// Site is the remote resource a deploy provisions
type Site struct {
	// ID is the provider's site, deployment or service id
	ID string
	// URL is where the deployed site is served
	URL string
	// UploadURL is a pre-signed upload location, when the provider hands one out
	UploadURL string
}

// Adapter implements the deploy protocol for one provider. Adapters hold no
// state between calls.
type Adapter interface {
	// Target returns the provider this adapter deploys to
	Target() Target

	// CheckCredentials fails with ErrMissingCredential without touching the network
	CheckCredentials() error

	// Provision creates or selects the remote deploy target
	Provision(ctx context.Context) (*Site, error)

	// Upload sends the zip archive
	Upload(ctx context.Context, site *Site, archive []byte) error

	// Trigger starts the deploy; a no-op where upload already deploys
	Trigger(ctx context.Context, site *Site) error
}

// NewHTTPClient returns the REST client shared by adapters and hooks.
// Retries stay off: a failed step fails the deploy.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	client := resty.New().SetRetryCount(0)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return client
}

const maxErrorBody = 256

// checkResponse turns a transport error or non-2xx status into ErrNetwork
func checkResponse(step string, res *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNetwork, step, err)
	}
	if !res.IsSuccess() {
		body := res.String()
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody] + "..."
		}
		if body == "" {
			return fmt.Errorf("%w: %s: status %d", ErrNetwork, step, res.StatusCode())
		}
		return fmt.Errorf("%w: %s: status %d: %s", ErrNetwork, step, res.StatusCode(), body)
	}
	return nil
}

func decodeJSON(step string, res *resty.Response, v any) error {
	if err := json.Unmarshal([]byte(res.String()), v); err != nil {
		return fmt.Errorf("%w: %s: malformed response: %v", ErrNetwork, step, err)
	}
	return nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
