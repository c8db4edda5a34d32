package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pairbot-go/internal/config"
	"pairbot-go/internal/history"
	"pairbot-go/internal/metrics"
	"pairbot-go/internal/series"
)

// Outcome is the per-pair result of RunPairs. Exactly one of Result and Err is set.
type Outcome struct {
	Pair     config.Pair
	Result   *Result
	Err      error
	Duration time.Duration
}

// Runner fetches history for configured pairs and runs the stage chain on each.
type Runner struct {
	provider    history.Provider
	opts        Options
	parallelism int
	log         zerolog.Logger
}

// NewRunner resolves cfg into Options.
func NewRunner(provider history.Provider, cfg *config.Config, log zerolog.Logger) (*Runner, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Runner{provider: provider, opts: opts, parallelism: parallelism, log: log}, nil
}

// Options returns the resolved analysis options.
func (r *Runner) Options() Options { return r.opts }

// RunPairs evaluates every pair with bounded concurrency. One pair failing does not
// stop the others; outcomes keep the order of pairs.
func (r *Runner) RunPairs(ctx context.Context, pairs []config.Pair) ([]Outcome, error) {
	out := make([]Outcome, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			out[i] = r.RunPair(gctx, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, ctx.Err()
}

// RunPair fetches, aligns and analyzes a single pair.
func (r *Runner) RunPair(ctx context.Context, p config.Pair) Outcome {
	began := time.Now()
	log := r.log.With().Str("pair", p.Name()).Logger()
	res, err := r.runPair(ctx, p)
	o := Outcome{Pair: p, Result: res, Err: err, Duration: time.Since(began)}
	metrics.PipelineDuration.Observe(o.Duration.Seconds())

	if err != nil {
		stage, ok := StageOf(err)
		if !ok {
			stage = "canceled"
		}
		metrics.PipelineRuns.WithLabelValues(p.Name(), "error").Inc()
		metrics.StageErrors.WithLabelValues(string(stage)).Inc()
		log.Warn().Err(err).Str("stage", string(stage)).Msg("pair run failed")
		return o
	}
	metrics.PipelineRuns.WithLabelValues(p.Name(), "ok").Inc()
	log.Info().
		Float64("p_value", res.Cointegration.PValue).
		Bool("cointegrated", res.Cointegrated()).
		Float64("hedge_ratio", res.HedgeRatio).
		Float64("sharpe", res.Metrics.Sharpe).
		Float64("max_drawdown", res.Metrics.MaxDrawdown).
		Dur("took", o.Duration).
		Msg("pair run complete")
	return o
}

func (r *Runner) runPair(ctx context.Context, p config.Pair) (*Result, error) {
	name := p.Name()
	start, end, err := p.Range()
	if err != nil {
		return nil, &StageError{Stage: StageFetch, Pair: name, Err: err}
	}
	a, b, err := history.FetchPair(ctx, r.provider, p.TickerA, p.TickerB, start, end)
	if err != nil {
		return nil, &StageError{Stage: StageFetch, Pair: name, Err: err}
	}
	pair, err := series.Align(a, b, r.opts.MinSamples)
	if err != nil {
		return nil, &StageError{Stage: StageAlign, Pair: name, Err: err}
	}
	return Run(ctx, r.opts, pair)
}

// RunPairs is the one-shot form of NewRunner(...).RunPairs(ctx, cfg.Pairs).
func RunPairs(ctx context.Context, provider history.Provider, cfg *config.Config, log zerolog.Logger) ([]Outcome, error) {
	runner, err := NewRunner(provider, cfg, log)
	if err != nil {
		return nil, err
	}
	return runner.RunPairs(ctx, cfg.Pairs)
}
