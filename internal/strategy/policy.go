// Package strategy turns spread z-scores into position sizes.
package strategy

import (
	"errors"
	"fmt"
	"math"

	"pairbot-go/internal/series"
)

var (
	// ErrInvalidConfiguration flags policy parameters outside their domain.
	ErrInvalidConfiguration = errors.New("invalid signal configuration")
	// ErrInvalidThresholdConfiguration flags entry thresholds that are not strictly ordered.
	ErrInvalidThresholdConfiguration = errors.New("invalid threshold configuration: upper must exceed lower")
)

// DefaultExitBand flattens the threshold policy once |z| drops below one deviation.
const DefaultExitBand = 1.0

// Positions holds one exposure per timestamp in [-1, 1]. Positive is long the spread
// (long A, short B). NaN means no signal yet.
type Positions []float64

// Policy defines behaviour shared by position sizing rules.
type Policy interface {
	Positions(z []float64) (Positions, error)
	Name() string
}

// Threshold enters at the outer thresholds, flattens inside the exit band and otherwise holds.
type Threshold struct {
	Upper    float64 `json:"upper"`
	Lower    float64 `json:"lower"`
	ExitBand float64 `json:"exit_band"`
}

// NewThreshold validates the thresholds. A zero exit band selects DefaultExitBand.
func NewThreshold(upper, lower, exitBand float64) (*Threshold, error) {
	if !finite(upper) || !finite(lower) {
		return nil, fmt.Errorf("thresholds upper=%v lower=%v: %w", upper, lower, ErrInvalidConfiguration)
	}
	if upper <= lower {
		return nil, fmt.Errorf("upper=%v lower=%v: %w", upper, lower, ErrInvalidThresholdConfiguration)
	}
	if !finite(exitBand) || exitBand < 0 {
		return nil, fmt.Errorf("exit band %v: %w", exitBand, ErrInvalidConfiguration)
	}
	if exitBand == 0 {
		exitBand = DefaultExitBand
	}
	return &Threshold{Upper: upper, Lower: lower, ExitBand: exitBand}, nil
}

// Name returns the identifier for logging.
func (p *Threshold) Name() string { return PolicyThreshold }

// Positions walks the z-scores in order. An undefined z-score holds the previous position,
// starting flat.
func (p *Threshold) Positions(z []float64) (Positions, error) {
	out := make(Positions, len(z))
	prev := 0.0
	for i, v := range z {
		switch {
		case !series.Defined(v):
		case v > p.Upper:
			prev = -1
		case v < p.Lower:
			prev = 1
		case math.Abs(v) < p.ExitBand:
			prev = 0
		}
		out[i] = prev
	}
	return out, nil
}

// Continuous sizes exposure as -z/ScalingFactor clipped to [-1, 1].
type Continuous struct {
	ScalingFactor float64 `json:"scaling_factor"`
}

// NewContinuous validates the scaling factor.
func NewContinuous(scalingFactor float64) (*Continuous, error) {
	if !finite(scalingFactor) || scalingFactor <= 0 {
		return nil, fmt.Errorf("scaling factor %v: %w", scalingFactor, ErrInvalidConfiguration)
	}
	return &Continuous{ScalingFactor: scalingFactor}, nil
}

// Name returns the identifier for logging.
func (p *Continuous) Name() string { return PolicyContinuous }

// Positions never flattens explicitly; exposure shrinks with |z| and saturates
// once |z| reaches the scaling factor.
func (p *Continuous) Positions(z []float64) (Positions, error) {
	out := make(Positions, len(z))
	for i, v := range z {
		if !series.Defined(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = clamp(-v/p.ScalingFactor, -1, 1)
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
