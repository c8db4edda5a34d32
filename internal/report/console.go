package report

import (
	"context"

	"github.com/rs/zerolog"
)

// Console logs a one-line summary per run.
type Console struct {
	log zerolog.Logger
}

// NewConsole wraps log.
func NewConsole(log zerolog.Logger) *Console {
	return &Console{log: log.With().Str("sink", "console").Logger()}
}

// Name returns the sink identifier.
func (c *Console) Name() string { return "console" }

// Publish never fails.
func (c *Console) Publish(_ context.Context, run Run) error {
	if run.Status != StatusOK {
		c.log.Error().
			Str("pair", run.Pair).
			Str("stage", run.Stage).
			Str("error", run.Error).
			Msg("backtest failed")
		return nil
	}
	ev := c.log.Info().Str("pair", run.Pair).Str("window", run.Start+".."+run.End)
	if ct := run.Cointegration; ct != nil {
		ev = ev.Float64("p_value", ct.PValue).Str("verdict", ct.Verdict)
	}
	if sp := run.Spread; sp != nil {
		ev = ev.Float64("hedge_ratio", sp.HedgeRatio).
			Float64("applied_ratio", sp.AppliedRatio).
			Float64("spread_mean", sp.Mean)
	}
	if sig := run.Signal; sig != nil {
		ev = ev.Str("policy", sig.Policy)
	}
	if perf := run.Performance; perf != nil {
		ev = ev.Float64("sharpe", perf.Sharpe).
			Float64("max_drawdown", perf.MaxDrawdown).
			Float64("final_equity", perf.FinalEquity)
	}
	ev.Int("bars", len(run.Dates)).Msg("backtest complete")
	return nil
}
