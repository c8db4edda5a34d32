// Package pipeline chains the analysis stages for a single pair and fans out across pairs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pairbot-go/internal/backtest"
	"pairbot-go/internal/coint"
	"pairbot-go/internal/config"
	"pairbot-go/internal/hedge"
	"pairbot-go/internal/risk"
	"pairbot-go/internal/series"
	"pairbot-go/internal/spread"
	"pairbot-go/internal/strategy"
)

// Stage names the step that produced an error.
type Stage string

const (
	StageFetch         Stage = "fetch"
	StageAlign         Stage = "align"
	StageCointegration Stage = "cointegration"
	StageHedge         Stage = "hedge"
	StageSpread        Stage = "spread"
	StageZScore        Stage = "zscore"
	StageSignal        Stage = "signal"
	StageBacktest      Stage = "backtest"
	StagePerformance   Stage = "performance"
)

// StageError tags a failure with the pair and stage it came from.
type StageError struct {
	Stage Stage
	Pair  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Pair, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf reports the stage of the first StageError in err's chain.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// Options is the resolved, validated form of the analysis config.
type Options struct {
	SpreadMode    spread.Mode
	Normalization spread.Normalization
	Window        int
	Dependent     hedge.Leg
	Policy        strategy.Policy
	Significance  float64
	Annualization int
	StdDev        risk.StdDevMode
	MinSamples    int
}

// OptionsFromConfig parses the string-typed config knobs.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	mode, err := spread.ParseMode(cfg.Spread.Mode)
	if err != nil {
		return Options{}, err
	}
	norm, err := spread.ParseNormalization(cfg.Spread.ZScoreMode)
	if err != nil {
		return Options{}, err
	}
	var leg hedge.Leg
	switch strings.ToLower(strings.TrimSpace(cfg.Spread.Dependent)) {
	case "", "a":
		leg = hedge.LegA
	case "b":
		leg = hedge.LegB
	default:
		return Options{}, fmt.Errorf("unknown dependent leg %q", cfg.Spread.Dependent)
	}
	policy, err := strategy.Build(cfg.Signal.Policy, strategy.Params{
		UpperThreshold: cfg.Signal.UpperThreshold,
		LowerThreshold: cfg.Signal.LowerThreshold,
		ExitBand:       cfg.Signal.ExitBand,
		ScalingFactor:  cfg.Signal.ScalingFactor,
	})
	if err != nil {
		return Options{}, err
	}
	stddev, err := risk.ParseStdDevMode(cfg.Analysis.SharpeStdDev)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		SpreadMode:    mode,
		Normalization: norm,
		Window:        cfg.Spread.Window,
		Dependent:     leg,
		Policy:        policy,
		Significance:  cfg.Analysis.SignificanceLevel,
		Annualization: cfg.Analysis.AnnualizationFactor,
		StdDev:        stddev,
		MinSamples:    cfg.Analysis.MinSamples,
	}
	return opts.withDefaults(), nil
}

func (o Options) withDefaults() Options {
	if o.Significance <= 0 {
		o.Significance = coint.DefaultSignificance
	}
	if o.Annualization <= 0 {
		o.Annualization = risk.TradingDays
	}
	if o.MinSamples <= 0 {
		o.MinSamples = series.DefaultMinSamples
	}
	if o.SpreadMode == "" {
		o.SpreadMode = spread.HedgeAdjusted
	}
	if o.Normalization == "" {
		o.Normalization = spread.Full
	}
	if o.Dependent == "" {
		o.Dependent = hedge.LegA
	}
	if o.StdDev == "" {
		o.StdDev = risk.Sample
	}
	return o
}

// Result holds every intermediate output of one run.
type Result struct {
	Pair          series.AlignedPair
	Cointegration coint.Result
	Significance  float64
	Hedge         hedge.Fit
	HedgeRatio    float64 // estimated h in A - h*B, whatever the spread mode
	Spread        spread.Spread
	ZScores       spread.ZScores
	Policy        strategy.Policy
	Positions     strategy.Positions
	ReturnsA      []float64
	ReturnsB      []float64
	Backtest      backtest.Result
	Metrics       risk.Metrics
}

// Cointegrated applies the configured significance level to the advisory test.
func (r *Result) Cointegrated() bool { return r.Cointegration.Cointegrated(r.Significance) }

// Verdict is the human readable cointegration outcome.
func (r *Result) Verdict() string { return r.Cointegration.Verdict(r.Significance) }

// Run executes the stages in order on an aligned pair. Cointegration is reported but
// never gates the later stages.
func Run(ctx context.Context, opts Options, pair series.AlignedPair) (*Result, error) {
	opts = opts.withDefaults()
	name := pair.Name()
	fail := func(stage Stage, err error) (*Result, error) {
		return nil, &StageError{Stage: stage, Pair: name, Err: err}
	}
	if opts.Policy == nil {
		return fail(StageSignal, fmt.Errorf("no policy configured: %w", strategy.ErrInvalidConfiguration))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pair.Len() < opts.MinSamples {
		return fail(StageAlign, fmt.Errorf("%d shared points, need %d: %w", pair.Len(), opts.MinSamples, series.ErrInsufficientData))
	}

	res := &Result{Pair: pair, Significance: opts.Significance, Policy: opts.Policy}

	// hedge first so a constant leg is reported against the regression, not the test
	fit, err := hedge.Estimate(pair, opts.Dependent)
	if err != nil {
		return fail(StageHedge, err)
	}
	ratio, err := hedge.SpreadRatio(fit, opts.Dependent)
	if err != nil {
		return fail(StageHedge, err)
	}
	res.Hedge = fit
	res.HedgeRatio = ratio

	ct, err := coint.Test(pair)
	if err != nil {
		return fail(StageCointegration, err)
	}
	res.Cointegration = ct

	sp, err := spread.Build(pair, opts.SpreadMode, ratio)
	if err != nil {
		return fail(StageSpread, err)
	}
	res.Spread = sp

	z, err := spread.ZScore(sp, opts.Normalization, opts.Window)
	if err != nil {
		return fail(StageZScore, err)
	}
	res.ZScores = z

	positions, err := opts.Policy.Positions(z.Values)
	if err != nil {
		return fail(StageSignal, err)
	}
	res.Positions = positions

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.ReturnsA = series.Returns(pair.A())
	res.ReturnsB = series.Returns(pair.B())
	bt, err := backtest.Run(positions, res.ReturnsA, res.ReturnsB)
	if err != nil {
		return fail(StageBacktest, err)
	}
	res.Backtest = bt

	m, err := risk.Analyze(bt.Returns, bt.Equity, opts.Annualization, opts.StdDev)
	if err != nil {
		return fail(StagePerformance, err)
	}
	res.Metrics = m
	return res, nil
}
