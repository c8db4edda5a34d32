// Package spread builds the pair spread and normalizes it into z-scores.
package spread

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"pairbot-go/internal/series"
)

var (
	// ErrZeroVariance means the spread is constant and cannot be normalized.
	ErrZeroVariance = errors.New("spread has zero variance")
	// ErrInvalidWindow flags a rolling window that does not fit the series.
	ErrInvalidWindow = errors.New("invalid rolling window")
)

// Mode selects how the two legs are combined.
type Mode string

const (
	// Raw is A - B.
	Raw Mode = "raw"
	// HedgeAdjusted is A - h*B.
	HedgeAdjusted Mode = "hedge_adjusted"
)

// ParseMode maps configuration text to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Raw:
		return Raw, nil
	case HedgeAdjusted, "", "hedge", "adjusted":
		return HedgeAdjusted, nil
	default:
		return "", fmt.Errorf("unknown spread mode %q", s)
	}
}

// Normalization selects how z-scores are computed.
type Normalization string

const (
	// Full uses the whole-sample mean and deviation. Each point is normalized with
	// statistics that include later prices, which is fine on fixed history but
	// leaks future information in forward simulation.
	Full Normalization = "full"
	// Rolling uses a trailing window ending at the current point.
	Rolling Normalization = "rolling"
)

// ParseNormalization maps configuration text to a Normalization.
func ParseNormalization(s string) (Normalization, error) {
	switch Normalization(strings.ToLower(strings.TrimSpace(s))) {
	case Full, "":
		return Full, nil
	case Rolling:
		return Rolling, nil
	default:
		return "", fmt.Errorf("unknown zscore mode %q", s)
	}
}

// Spread is the combined price series of a pair.
type Spread struct {
	Mode       Mode      `json:"mode"`
	HedgeRatio float64   `json:"hedge_ratio"`
	Values     []float64 `json:"values"`
	Mean       float64   `json:"mean"`
	StdDev     float64   `json:"std_dev"`
}

// ZScores is the normalized spread. Entries before a rolling window fills are NaN.
type ZScores struct {
	Normalization Normalization `json:"normalization"`
	Window        int           `json:"window,omitempty"`
	Values        []float64     `json:"values"`
}

// Build combines the legs. The hedge ratio is ignored in Raw mode.
func Build(pair series.AlignedPair, mode Mode, hedgeRatio float64) (Spread, error) {
	a, b := pair.A(), pair.B()
	ratio := 1.0
	switch mode {
	case Raw:
	case HedgeAdjusted:
		if math.IsNaN(hedgeRatio) || math.IsInf(hedgeRatio, 0) {
			return Spread{}, fmt.Errorf("hedge ratio %v is not finite", hedgeRatio)
		}
		ratio = hedgeRatio
	default:
		return Spread{}, fmt.Errorf("unknown spread mode %q", mode)
	}

	values := make([]float64, len(a))
	for i := range a {
		values[i] = a[i] - ratio*b[i]
	}
	mean, std := stat.MeanStdDev(values, nil)
	return Spread{Mode: mode, HedgeRatio: ratio, Values: values, Mean: mean, StdDev: std}, nil
}

// ZScore normalizes s. window is only read for Rolling.
func ZScore(s Spread, norm Normalization, window int) (ZScores, error) {
	switch norm {
	case Full:
		values, err := fullZ(s.Values)
		if err != nil {
			return ZScores{}, err
		}
		return ZScores{Normalization: Full, Values: values}, nil
	case Rolling:
		values, err := rollingZ(s.Values, window)
		if err != nil {
			return ZScores{}, err
		}
		return ZScores{Normalization: Rolling, Window: window, Values: values}, nil
	default:
		return ZScores{}, fmt.Errorf("unknown zscore mode %q", norm)
	}
}

func fullZ(values []float64) ([]float64, error) {
	mean, std := stat.MeanStdDev(values, nil)
	if !usable(mean, std) {
		return nil, fmt.Errorf("full sample stddev %v: %w", std, ErrZeroVariance)
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out, nil
}

func rollingZ(values []float64, window int) ([]float64, error) {
	if window < 2 || window > len(values) {
		return nil, fmt.Errorf("window %d for %d points: %w", window, len(values), ErrInvalidWindow)
	}
	out := make([]float64, len(values))
	for i := range values {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		mean, std := stat.MeanStdDev(values[i-window+1:i+1], nil)
		if !usable(mean, std) {
			return nil, fmt.Errorf("window ending at %d stddev %v: %w", i, std, ErrZeroVariance)
		}
		out[i] = (values[i] - mean) / std
	}
	return out, nil
}

// usable rejects stddevs that would yield 0/0 or overflow, including round-off
// noise left over from a mathematically constant series.
func usable(mean, std float64) bool {
	if math.IsNaN(std) || math.IsInf(std, 0) {
		return false
	}
	return std > 1e-12*math.Max(1, math.Abs(mean))
}
