// Package backtest applies lagged positions to the pair's return differential.
package backtest

import (
	"errors"
	"fmt"
	"math"

	"pairbot-go/internal/series"
	"pairbot-go/internal/strategy"
)

// ErrLengthMismatch is returned when positions and returns are not index aligned.
var ErrLengthMismatch = errors.New("positions and returns differ in length")

// Result is the strategy return stream and its equity curve.
type Result struct {
	// Returns[t] = position[t-1] * (returnA[t] - returnB[t]); NaN until both are known.
	Returns []float64 `json:"returns"`
	// Equity starts at 1.0 and compounds every defined return.
	Equity []float64 `json:"equity"`
}

// Run computes strategy returns with a one-step position lag so a decision made on
// the close of t-1 is only exposed to the move from t-1 to t.
func Run(positions strategy.Positions, retA, retB []float64) (Result, error) {
	if len(positions) != len(retA) || len(retA) != len(retB) {
		return Result{}, fmt.Errorf("positions=%d returnsA=%d returnsB=%d: %w", len(positions), len(retA), len(retB), ErrLengthMismatch)
	}
	returns := StrategyReturns(positions, retA, retB)
	return Result{Returns: returns, Equity: Equity(returns)}, nil
}

// StrategyReturns is the lagged exposure times the return differential.
func StrategyReturns(positions strategy.Positions, retA, retB []float64) []float64 {
	out := make([]float64, len(positions))
	for t := range out {
		if t == 0 {
			out[t] = math.NaN()
			continue
		}
		// NaN in any operand propagates as "no signal yet"
		out[t] = positions[t-1] * (retA[t] - retB[t])
	}
	return out
}

// Equity compounds 1+r, treating undefined returns as a flat period.
func Equity(returns []float64) []float64 {
	out := make([]float64, len(returns))
	level := 1.0
	for i, r := range returns {
		if series.Defined(r) {
			level *= 1 + r
		}
		out[i] = level
	}
	return out
}
