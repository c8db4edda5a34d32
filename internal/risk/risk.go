// Package risk derives risk-adjusted performance figures from a backtest.
package risk

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"pairbot-go/internal/series"
)

// ErrUndefinedSharpe is returned when strategy returns have no dispersion.
var ErrUndefinedSharpe = errors.New("sharpe ratio undefined: zero return volatility")

// TradingDays is the default annualization factor for daily bars.
const TradingDays = 252

// StdDevMode picks the volatility estimator.
type StdDevMode string

const (
	// Sample divides by n-1.
	Sample StdDevMode = "sample"
	// Population divides by n.
	Population StdDevMode = "population"
)

// ParseStdDevMode maps configuration text to a StdDevMode. Empty selects Sample.
func ParseStdDevMode(s string) (StdDevMode, error) {
	switch StdDevMode(strings.ToLower(strings.TrimSpace(s))) {
	case Sample, "":
		return Sample, nil
	case Population:
		return Population, nil
	default:
		return "", fmt.Errorf("unknown stddev mode %q", s)
	}
}

// Metrics summarizes a strategy run.
type Metrics struct {
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// Sharpe annualizes mean/stddev of the defined returns by sqrt(annualization).
// It never returns ±Inf or NaN; degenerate inputs produce ErrUndefinedSharpe.
func Sharpe(returns []float64, annualization int, mode StdDevMode) (float64, error) {
	if annualization <= 0 {
		return 0, fmt.Errorf("annualization factor %d must be positive", annualization)
	}
	values := series.DefinedValues(returns)
	if len(values) < 2 {
		return 0, fmt.Errorf("%d defined returns: %w", len(values), ErrUndefinedSharpe)
	}
	mean, std := stat.MeanStdDev(values, nil)
	if mode == Population {
		std = stat.PopStdDev(values, nil)
	}
	// round-off on a constant series leaves a tiny nonzero deviation
	if math.IsNaN(std) || math.IsInf(std, 0) || std <= 1e-12*math.Max(1, math.Abs(mean)) {
		return 0, ErrUndefinedSharpe
	}
	return mean / std * math.Sqrt(float64(annualization)), nil
}

// Drawdowns returns (running peak - equity) / running peak at every point.
func Drawdowns(equity []float64) []float64 {
	out := make([]float64, len(equity))
	peak := math.Inf(-1)
	for i, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			out[i] = (peak - v) / peak
		}
	}
	return out
}

// MaxDrawdown is the deepest peak-to-trough fall, 0 for a curve that never declines.
func MaxDrawdown(equity []float64) float64 {
	worst := 0.0
	for _, dd := range Drawdowns(equity) {
		if dd > worst {
			worst = dd
		}
	}
	return worst
}

// Analyze computes both metrics.
func Analyze(returns, equity []float64, annualization int, mode StdDevMode) (Metrics, error) {
	sharpe, err := Sharpe(returns, annualization, mode)
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{Sharpe: sharpe, MaxDrawdown: MaxDrawdown(equity)}, nil
}
