package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"github.com/vibely/vibely/internal/observability"
	"github.com/vibely/vibely/internal/tracing"
	"github.com/vibely/vibely/pkg/archive"
	"github.com/vibely/vibely/pkg/license"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SessionResolver maps session ids to directories
type SessionResolver interface {
	Resolve(ctx context.Context, id string) (string, error)
	Root() string
}

// LicenseGate verifies a license key
type LicenseGate interface {
	Verify(ctx context.Context, key string) license.Verdict
}

// DispatcherOptions configures a Dispatcher
type DispatcherOptions struct {
	Sessions SessionResolver
	Adapters []Adapter
	Breaker  BreakerConfig

	// License, when set together with LicenseKey, is consulted before every deploy
	License    LicenseGate
	LicenseKey string
}

// Dispatcher routes deploys to adapters
type Dispatcher struct {
	sessions   SessionResolver
	adapters   map[Target]Adapter
	breakers   map[Target]*gobreaker.CircuitBreaker[*Site]
	license    LicenseGate
	licenseKey string
}

// NewDispatcher creates a dispatcher. Every target needs exactly one adapter.
func NewDispatcher(opts DispatcherOptions) (*Dispatcher, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("%w: session resolver is required", ErrDispatcher)
	}

	d := &Dispatcher{
		sessions:   opts.Sessions,
		adapters:   make(map[Target]Adapter),
		breakers:   make(map[Target]*gobreaker.CircuitBreaker[*Site]),
		license:    opts.License,
		licenseKey: opts.LicenseKey,
	}

	for _, a := range opts.Adapters {
		target := a.Target()
		if _, err := ParseTarget(string(target)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDispatcher, err)
		}
		if _, exists := d.adapters[target]; exists {
			return nil, fmt.Errorf("%w: duplicate adapter for %s", ErrDispatcher, target)
		}
		d.adapters[target] = a
		d.breakers[target] = newBreaker(target, opts.Breaker)
	}

	for _, target := range Targets() {
		if _, ok := d.adapters[target]; !ok {
			return nil, fmt.Errorf("%w: no adapter for %s", ErrDispatcher, target)
		}
	}

	observability.EnsureRegistered()

	return d, nil
}

// Deploy packs the session and pushes it to target. It never returns an
// error or panics; every failure is a Result with Success false.
func (d *Dispatcher) Deploy(ctx context.Context, targetName, sessionID string) (result Result) {
	start := time.Now()

	target, err := ParseTarget(targetName)
	if err != nil {
		observability.RecordDeploy("unknown", time.Since(start), false)
		return Result{Success: false, Message: err.Error(), Phase: PhaseFailed}
	}

	ctx = tracing.WithTarget(tracing.WithSessionKey(ctx, sessionID), string(target))
	ctx, span := tracing.StartSpan(ctx, "vibely.deploy", "deploy."+string(target),
		attribute.String("target", string(target)),
		attribute.String("session_key", sessionID),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	defer func() {
		if r := recover(); r != nil {
			result = failed(target, PhaseFailed, fmt.Errorf("internal error: %v", r))
			logger.Error().Interface("panic", r).Msg("Deploy panicked")
		}

		duration := time.Since(start)
		observability.RecordDeploy(string(target), duration, result.Success)
		status := "success"
		if !result.Success {
			status = "failed"
			observability.RecordDeployPhaseFailure(string(target), string(result.Phase))
			tracing.RecordError(span, errors.New(result.Message))
		}
		observability.RecordDeployAudit(ctx, string(target), sessionID, status, map[string]interface{}{
			"phase":       string(result.Phase),
			"url":         result.URL,
			"duration_ms": duration.Milliseconds(),
		})

		event := logger.Info()
		if !result.Success {
			event = logger.Warn().Str("phase", string(result.Phase)).Str("error", result.Message)
		}
		event.Str("url", result.URL).Dur("duration", duration).Msg("Deploy finished")
	}()

	adapter := d.adapters[target]

	if err := adapter.CheckCredentials(); err != nil {
		return failed(target, PhaseIdle, &PhaseError{Target: target, Phase: PhaseIdle, Err: err})
	}

	dir, err := d.sessions.Resolve(ctx, sessionID)
	if err != nil {
		return failed(target, PhaseIdle, &PhaseError{Target: target, Phase: PhaseIdle, Err: err})
	}

	if d.license != nil && d.licenseKey != "" {
		if err := d.license.Verify(ctx, d.licenseKey).Err(); err != nil {
			return failed(target, PhaseIdle, &PhaseError{Target: target, Phase: PhaseIdle, Err: err})
		}
	}

	var phase Phase = PhaseIdle
	advance := func(next Phase) {
		phase = next
		span.AddEvent(string(next), trace.WithAttributes(attribute.String("target", string(target))))
		logger.Debug().Str("phase", string(next)).Msg("Deploy phase")
	}

	site, err := d.breakers[target].Execute(func() (*Site, error) {
		advance(PhaseProvisioning)
		site, err := adapter.Provision(ctx)
		if err != nil {
			return nil, err
		}

		advance(PhaseUploading)
		data, err := d.pack(ctx, dir, sessionID)
		if err != nil {
			return nil, err
		}
		if err := adapter.Upload(ctx, site, data); err != nil {
			return nil, err
		}

		advance(PhaseTriggering)
		if err := adapter.Trigger(ctx, site); err != nil {
			return nil, err
		}

		return site, nil
	})
	if err != nil {
		err = breakerError(target, err)
		if phase == PhaseIdle {
			phase = PhaseProvisioning
		}
		return failed(target, phase, &PhaseError{Target: target, Phase: phase, Err: err})
	}

	advance(PhaseDone)
	return succeeded(target, site.URL)
}

// pack archives the session into its own staging path and returns the bytes
func (d *Dispatcher) pack(ctx context.Context, dir, sessionID string) ([]byte, error) {
	packed, err := archive.Pack(ctx, dir, archive.StagingPath(d.sessions.Root(), sessionID))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(packed.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", archive.ErrArchive, err)
	}
	return data, nil
}

// BreakerState returns the circuit breaker state for target
func (d *Dispatcher) BreakerState(target Target) gobreaker.State {
	cb, ok := d.breakers[target]
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}
