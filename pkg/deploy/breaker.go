package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"github.com/vibely/vibely/internal/observability"
)

// BreakerConfig configures the per-target circuit breakers
type BreakerConfig struct {
	// Failures is the number of consecutive network failures that opens the breaker
	Failures uint32
	// OpenTimeout is how long an open breaker rejects calls before probing again
	OpenTimeout time.Duration
}

func newBreaker(target Target, cfg BreakerConfig) *gobreaker.CircuitBreaker[*Site] {
	failures := cfg.Failures
	if failures == 0 {
		failures = 5
	}

	return gobreaker.NewCircuitBreaker[*Site](gobreaker.Settings{
		Name:        string(target),
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Only remote failures count; bad credentials, empty sessions and
		// caller cancellation say nothing about the provider's health.
		IsExcluded: func(err error) bool {
			if err == nil {
				return false
			}
			return !errors.Is(err, ErrNetwork) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.SetBreakerOpen(name, to == gobreaker.StateOpen)
			log.Warn().
				Str("target", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Deploy circuit breaker state changed")
		},
	})
}

// breakerError maps gobreaker rejections onto ErrNetwork
func breakerError(target Target, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s is failing repeatedly, try again later (%v)", ErrNetwork, target, err)
	}
	return err
}
