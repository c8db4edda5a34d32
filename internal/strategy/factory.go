package strategy

import (
	"fmt"
	"strings"
)

const (
	// PolicyThreshold is the discrete enter/hold/exit policy.
	PolicyThreshold = "threshold"
	// PolicyContinuous is the inverse-scaled, clipped policy.
	PolicyContinuous = "continuous"
)

// Params expresses tunable knobs required by policy constructors.
type Params struct {
	UpperThreshold float64
	LowerThreshold float64
	ExitBand       float64
	ScalingFactor  float64
}

// Build returns the policy matching the configured name.
func Build(name string, params Params) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicyThreshold, "thresholds", "discrete":
		return NewThreshold(params.UpperThreshold, params.LowerThreshold, params.ExitBand)
	case "", PolicyContinuous, "scaled":
		return NewContinuous(params.ScalingFactor)
	default:
		return nil, fmt.Errorf("unknown signal policy %q: %w", name, ErrInvalidConfiguration)
	}
}
