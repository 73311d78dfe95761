// Package license verifies subscription keys against the Gumroad license API.
package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vibely/vibely/internal/observability"
	"github.com/vibely/vibely/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"resty.dev/v3"
)

// Reason is the sub-reason of a verdict
type Reason string

const (
	ReasonActive     Reason = "active"
	ReasonExpired    Reason = "expired"
	ReasonRefunded   Reason = "refunded"
	ReasonInvalidKey Reason = "invalid-key"
	ReasonAPIError   Reason = "api-error"
)

// ErrLicenseDenied is returned by Verdict.Err for every non-active verdict
var ErrLicenseDenied = errors.New("license denied")

// Verdict is the outcome of one verification
type Verdict struct {
	Valid   bool   `json:"valid"`
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
	// EndedAt is the subscription end timestamp for expired licenses
	EndedAt string `json:"endedAt,omitempty"`
}

// Err returns nil for an active license and ErrLicenseDenied otherwise
func (v Verdict) Err() error {
	if v.Valid {
		return nil
	}
	return fmt.Errorf("%w (%s): %s", ErrLicenseDenied, v.Reason, v.Message)
}

// Config configures a Verifier
type Config struct {
	VerifyURL        string
	ProductPermalink string
	Timeout          time.Duration
}

// Verifier checks keys against the remote licensing endpoint. It holds no
// cache; every call re-verifies.
type Verifier struct {
	config Config
	client *resty.Client
}

type verifyResponse struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Purchase *purchase `json:"purchase"`
}

type purchase struct {
	Refunded            bool    `json:"refunded"`
	Chargebacked        bool    `json:"chargebacked"`
	SubscriptionEndedAt *string `json:"subscription_ended_at"`
}

// NewVerifier creates a verifier
func NewVerifier(config Config) *Verifier {
	client := resty.New().SetRetryCount(0)
	if config.Timeout > 0 {
		client.SetTimeout(config.Timeout)
	}
	return &Verifier{config: config, client: client}
}

// Close releases the underlying HTTP client
func (v *Verifier) Close() error {
	return v.client.Close()
}

// Verify checks key and returns a verdict. It never returns an error; remote
// failures become an api-error verdict.
func (v *Verifier) Verify(ctx context.Context, key string) Verdict {
	ctx, span := tracing.StartSpan(ctx, "vibely.license", "license.verify",
		attribute.String("product", v.config.ProductPermalink),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	verdict := v.verify(ctx, key)

	span.SetAttributes(
		attribute.String("reason", string(verdict.Reason)),
		attribute.Bool("valid", verdict.Valid),
	)
	if verdict.Reason == ReasonAPIError {
		tracing.RecordError(span, verdict.Err())
	}
	observability.RecordLicenseVerification(string(verdict.Reason))
	observability.RecordLicenseAudit(ctx, string(verdict.Reason), verdict.Valid)

	logger.Info().
		Str("reason", string(verdict.Reason)).
		Bool("valid", verdict.Valid).
		Msg("License verified")

	return verdict
}

func (v *Verifier) verify(ctx context.Context, key string) Verdict {
	if strings.TrimSpace(key) == "" {
		return invalidKey("license key is empty")
	}

	res, err := v.client.R().
		SetContext(ctx).
		SetQueryParam("product_permalink", v.config.ProductPermalink).
		SetQueryParam("license_key", key).
		Post(v.config.VerifyURL)
	if err != nil {
		return apiError(fmt.Sprintf("request failed: %v", err))
	}
	if res.StatusCode() >= 500 {
		return apiError(fmt.Sprintf("licensing service returned %d", res.StatusCode()))
	}

	var body verifyResponse
	if err := json.Unmarshal([]byte(res.String()), &body); err != nil {
		return apiError(fmt.Sprintf("malformed response (status %d)", res.StatusCode()))
	}

	return decide(body)
}

// decide applies the verdict policy to a decoded response
func decide(body verifyResponse) Verdict {
	if !body.Success {
		msg := "Invalid key"
		if body.Message != "" {
			msg = "Invalid key: " + body.Message
		}
		return invalidKey(msg)
	}

	p := body.Purchase
	if p == nil {
		return apiError("response has no purchase record")
	}

	if p.Refunded || p.Chargebacked {
		return Verdict{Valid: false, Reason: ReasonRefunded, Message: "Refunded"}
	}

	if p.SubscriptionEndedAt == nil {
		return Verdict{Valid: true, Reason: ReasonActive, Message: "Active subscription"}
	}

	return Verdict{
		Valid:   false,
		Reason:  ReasonExpired,
		Message: "Expired on " + *p.SubscriptionEndedAt,
		EndedAt: *p.SubscriptionEndedAt,
	}
}

func invalidKey(msg string) Verdict {
	return Verdict{Valid: false, Reason: ReasonInvalidKey, Message: msg}
}

func apiError(msg string) Verdict {
	return Verdict{Valid: false, Reason: ReasonAPIError, Message: "License API error: " + msg}
}
