// Package hedge estimates the hedge ratio between the two legs of a pair.
package hedge

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"pairbot-go/internal/series"
)

// ErrDegenerateRegression is returned when the regressor has no variance.
var ErrDegenerateRegression = errors.New("degenerate regression: independent series has zero variance")

// Leg picks which side of the pair is the dependent variable.
type Leg string

const (
	// LegA regresses A on B, so the spread is A - h*B.
	LegA Leg = "a"
	// LegB regresses B on A.
	LegB Leg = "b"
)

// Fit is an ordinary least squares line y = Intercept + Slope*x.
type Fit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
}

// Ratio returns the hedge ratio.
func (f Fit) Ratio() float64 { return f.Slope }

// Residuals returns y - (Intercept + Slope*x).
func (f Fit) Residuals(y, x []float64) []float64 {
	out := make([]float64, len(y))
	for i := range y {
		out[i] = y[i] - (f.Intercept + f.Slope*x[i])
	}
	return out
}

// SpreadRatio converts a fit into h for the spread A - h*B. When B was the dependent
// leg the slope is inverted.
func SpreadRatio(f Fit, dependent Leg) (float64, error) {
	if dependent != LegB {
		return f.Slope, nil
	}
	if f.Slope == 0 {
		return 0, fmt.Errorf("slope of B on A is zero: %w", ErrDegenerateRegression)
	}
	return 1 / f.Slope, nil
}

// OLS fits y on x with an intercept.
func OLS(y, x []float64) (Fit, error) {
	if len(x) != len(y) {
		return Fit{}, fmt.Errorf("ols: length mismatch y=%d x=%d", len(y), len(x))
	}
	if len(x) < 2 {
		return Fit{}, fmt.Errorf("ols: %d observations: %w", len(x), ErrDegenerateRegression)
	}
	v := stat.Variance(x, nil)
	if v == 0 || math.IsNaN(v) {
		return Fit{}, ErrDegenerateRegression
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	return Fit{
		Slope:     beta,
		Intercept: alpha,
		RSquared:  stat.RSquared(x, y, nil, alpha, beta),
	}, nil
}

// Estimate regresses the dependent leg on the other one.
func Estimate(pair series.AlignedPair, dependent Leg) (Fit, error) {
	switch dependent {
	case LegA, "":
		return OLS(pair.A(), pair.B())
	case LegB:
		return OLS(pair.B(), pair.A())
	default:
		return Fit{}, fmt.Errorf("unknown dependent leg %q", dependent)
	}
}
