package deploy

import (
	"fmt"
	"strings"
)

// Target is a hosting provider
type Target string

const (
	TargetNetlify Target = "netlify"
	TargetVercel  Target = "vercel"
	TargetRender  Target = "render"
)

// Targets returns every supported target in a fixed order
func Targets() []Target {
	return []Target{TargetNetlify, TargetVercel, TargetRender}
}

// ParseTarget maps a name to a Target. Matching ignores case and surrounding space.
func ParseTarget(name string) (Target, error) {
	t := Target(strings.ToLower(strings.TrimSpace(name)))
	switch t {
	case TargetNetlify, TargetVercel, TargetRender:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTarget, name)
}

// Phase is a step of the deploy state machine
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseProvisioning Phase = "provisioning"
	PhaseUploading    Phase = "uploading"
	PhaseTriggering   Phase = "triggering"
	PhaseDone         Phase = "done"
	PhaseFailed       Phase = "failed"
)
