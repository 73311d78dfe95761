package deploy

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTarget is returned for a target outside the supported set
	ErrUnknownTarget = errors.New("unknown target")

	// ErrMissingCredential is returned when a provider token or id is not configured
	ErrMissingCredential = errors.New("missing credential")

	// ErrNetwork wraps failed, non-2xx or malformed remote calls
	ErrNetwork = errors.New("network error")

	// ErrDispatcher is returned for invalid dispatcher options
	ErrDispatcher = errors.New("invalid dispatcher options")
)

// PhaseError records the phase a deploy failed in
type PhaseError struct {
	Target Target
	Phase  Phase
	Err    error
}

func (e *PhaseError) Error() string {
	if e.Phase == PhaseIdle {
		return fmt.Sprintf("%s deploy failed: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("%s deploy failed while %s: %v", e.Target, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

func missingCredential(name string) error {
	return fmt.Errorf("%w: %s is not configured", ErrMissingCredential, name)
}
