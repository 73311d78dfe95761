package deploy

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/vibely/vibely/internal/observability"
	"github.com/vibely/vibely/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"resty.dev/v3"
)

// HookOutcome is the result of one hook call
type HookOutcome string

const (
	HookOK      HookOutcome = "ok"
	HookFailed  HookOutcome = "failed"
	HookError   HookOutcome = "error"
	HookSkipped HookOutcome = "skipped"
)

// HooksConfig holds deploy hook URLs; an empty URL skips that provider
type HooksConfig struct {
	Render  string
	Vercel  string
	Netlify string
}

// HookResult is the outcome of one hook
type HookResult struct {
	Target  Target      `json:"target"`
	Outcome HookOutcome `json:"outcome"`
	Status  int         `json:"status,omitempty"`
	Message string      `json:"message,omitempty"`
}

// HookReport is returned by TriggerHooks
type HookReport struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Results []HookResult `json:"results"`
}

// HookTrigger fires deploy hooks
type HookTrigger struct {
	config HooksConfig
	client *resty.Client
}

// NewHookTrigger creates a hook trigger
func NewHookTrigger(config HooksConfig, client *resty.Client) *HookTrigger {
	return &HookTrigger{config: config, client: client}
}

// TriggerHooks POSTs to the Render, Vercel and Netlify hooks in that order.
// Each hook is called once; the report is successful even when hooks fail.
func (h *HookTrigger) TriggerHooks(ctx context.Context) HookReport {
	ctx, span := tracing.StartSpan(ctx, "vibely.deploy", "deploy.hooks")
	defer span.End()

	hooks := []struct {
		target Target
		url    string
	}{
		{TargetRender, h.config.Render},
		{TargetVercel, h.config.Vercel},
		{TargetNetlify, h.config.Netlify},
	}

	report := HookReport{
		Success: true,
		Message: "Deployment attempted.",
		Results: make([]HookResult, 0, len(hooks)),
	}
	for _, hook := range hooks {
		result := h.call(ctx, hook.target, hook.url)
		span.SetAttributes(attribute.String("hook."+string(hook.target), string(result.Outcome)))
		observability.RecordHook(string(hook.target), string(result.Outcome))
		report.Results = append(report.Results, result)
	}

	return report
}

func (h *HookTrigger) call(ctx context.Context, target Target, url string) HookResult {
	logger := tracing.LoggerFromContext(tracing.WithTarget(ctx, string(target)), log.Logger)

	if url == "" {
		logger.Warn().Msg("Deploy hook is not set")
		return HookResult{Target: target, Outcome: HookSkipped, Message: "no URL"}
	}

	res, err := h.client.R().SetContext(ctx).Post(url)
	if err != nil {
		logger.Error().Err(err).Msg("Deploy hook error")
		return HookResult{Target: target, Outcome: HookError, Message: err.Error()}
	}
	if !res.IsSuccess() {
		logger.Error().Int("status", res.StatusCode()).Msg("Deploy hook failed")
		return HookResult{
			Target:  target,
			Outcome: HookFailed,
			Status:  res.StatusCode(),
			Message: fmt.Sprintf("%d %s", res.StatusCode(), http.StatusText(res.StatusCode())),
		}
	}

	logger.Info().Int("status", res.StatusCode()).Msg("Deploy hook triggered")
	return HookResult{Target: target, Outcome: HookOK, Status: res.StatusCode()}
}
