// Package report renders pipeline outcomes and delivers them to output sinks.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"pairbot-go/internal/metrics"
	"pairbot-go/internal/pipeline"
	"pairbot-go/internal/risk"
	"pairbot-go/internal/strategy"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Number is a float64 that encodes NaN and ±Inf as JSON null.
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	return appendNumber(nil, float64(n)), nil
}

func (n *Number) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*n = Number(math.NaN())
		return nil
	}
	*n = Number(*v)
	return nil
}

// Values is a float series whose undefined entries encode as null.
type Values []float64

func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	buf := make([]byte, 0, 2+len(v)*8)
	buf = append(buf, '[')
	for i, x := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendNumber(buf, x)
	}
	return append(buf, ']'), nil
}

func (v *Values) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = nil
		return nil
	}
	out := make(Values, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *p
	}
	*v = out
	return nil
}

func appendNumber(buf []byte, x float64) []byte {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return append(buf, "null"...)
	}
	return strconv.AppendFloat(buf, x, 'g', -1, 64)
}

// Cointegration is the advisory test outcome.
type Cointegration struct {
	Statistic     Number  `json:"statistic"`
	PValue        float64 `json:"p_value"`
	Critical1Pct  float64 `json:"critical_1pct"`
	Critical5Pct  float64 `json:"critical_5pct"`
	Critical10Pct float64 `json:"critical_10pct"`
	UsedLag       int     `json:"used_lag"`
	NObs          int     `json:"nobs"`
	Significance  float64 `json:"significance"`
	Cointegrated  bool    `json:"cointegrated"`
	Verdict       string  `json:"verdict"`
}

// Spread carries the spread and its normalization.
type Spread struct {
	Mode          string  `json:"mode"`
	HedgeRatio    float64 `json:"hedge_ratio"`
	AppliedRatio  float64 `json:"applied_ratio"`
	Intercept     float64 `json:"intercept"`
	RSquared      float64 `json:"r_squared"`
	Mean          float64 `json:"mean"`
	StdDev        float64 `json:"std_dev"`
	Values        Values  `json:"values"`
	Normalization string  `json:"zscore_mode"`
	Window        int     `json:"window,omitempty"`
	ZScores       Values  `json:"zscores"`
}

// Signal echoes the policy parameters that produced the positions.
type Signal struct {
	Policy         string   `json:"policy"`
	UpperThreshold *float64 `json:"upper_threshold,omitempty"`
	LowerThreshold *float64 `json:"lower_threshold,omitempty"`
	ExitBand       *float64 `json:"exit_band,omitempty"`
	ScalingFactor  *float64 `json:"scaling_factor,omitempty"`
}

// Performance is the risk summary.
type Performance struct {
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_drawdown"`
	FinalEquity float64 `json:"final_equity"`
}

// Run is the full, serializable picture of one pair run.
type Run struct {
	Pair          string         `json:"pair"`
	TickerA       string         `json:"ticker_a"`
	TickerB       string         `json:"ticker_b"`
	Start         string         `json:"start"`
	End           string         `json:"end"`
	Status        string         `json:"status"`
	Stage         string         `json:"stage,omitempty"`
	Error         string         `json:"error,omitempty"`
	DurationMS    int64          `json:"duration_ms"`
	Cointegration *Cointegration `json:"cointegration,omitempty"`
	Spread        *Spread        `json:"spread,omitempty"`
	Signal        *Signal        `json:"signal,omitempty"`
	Dates         []string       `json:"dates,omitempty"`
	Positions     Values         `json:"positions,omitempty"`
	Returns       Values         `json:"returns,omitempty"`
	Equity        Values         `json:"equity,omitempty"`
	Drawdowns     Values         `json:"drawdowns,omitempty"`
	Performance   *Performance   `json:"performance,omitempty"`
}

// FromOutcome flattens a pipeline outcome.
func FromOutcome(o pipeline.Outcome) Run {
	run := Run{
		Pair:       o.Pair.Name(),
		TickerA:    o.Pair.TickerA,
		TickerB:    o.Pair.TickerB,
		Start:      o.Pair.Start,
		End:        o.Pair.End,
		Status:     StatusOK,
		DurationMS: o.Duration.Milliseconds(),
	}
	if o.Err != nil {
		run.Status = StatusError
		run.Error = o.Err.Error()
		if stage, ok := pipeline.StageOf(o.Err); ok {
			run.Stage = string(stage)
		}
		return run
	}
	res := o.Result
	if res == nil {
		return run
	}

	ct := res.Cointegration
	run.Cointegration = &Cointegration{
		Statistic:     Number(ct.Statistic),
		PValue:        ct.PValue,
		Critical1Pct:  ct.CriticalValues[0],
		Critical5Pct:  ct.CriticalValues[1],
		Critical10Pct: ct.CriticalValues[2],
		UsedLag:       ct.UsedLag,
		NObs:          ct.NObs,
		Significance:  res.Significance,
		Cointegrated:  res.Cointegrated(),
		Verdict:       res.Verdict(),
	}
	run.Spread = &Spread{
		Mode:          string(res.Spread.Mode),
		HedgeRatio:    res.HedgeRatio,
		AppliedRatio:  res.Spread.HedgeRatio,
		Intercept:     res.Hedge.Intercept,
		RSquared:      res.Hedge.RSquared,
		Mean:          res.Spread.Mean,
		StdDev:        res.Spread.StdDev,
		Values:        res.Spread.Values,
		Normalization: string(res.ZScores.Normalization),
		Window:        res.ZScores.Window,
		ZScores:       res.ZScores.Values,
	}
	run.Signal = signalOf(res.Policy)

	times := res.Pair.Times()
	run.Dates = make([]string, len(times))
	for i, ts := range times {
		run.Dates[i] = ts.Format(time.DateOnly)
	}
	run.Positions = Values(res.Positions)
	run.Returns = res.Backtest.Returns
	run.Equity = res.Backtest.Equity
	run.Drawdowns = risk.Drawdowns(res.Backtest.Equity)

	final := 1.0
	if n := len(res.Backtest.Equity); n > 0 {
		final = res.Backtest.Equity[n-1]
	}
	run.Performance = &Performance{
		Sharpe:      res.Metrics.Sharpe,
		MaxDrawdown: res.Metrics.MaxDrawdown,
		FinalEquity: final,
	}
	return run
}

func signalOf(p strategy.Policy) *Signal {
	switch v := p.(type) {
	case *strategy.Threshold:
		upper, lower, band := v.Upper, v.Lower, v.ExitBand
		return &Signal{Policy: v.Name(), UpperThreshold: &upper, LowerThreshold: &lower, ExitBand: &band}
	case *strategy.Continuous:
		scale := v.ScalingFactor
		return &Signal{Policy: v.Name(), ScalingFactor: &scale}
	case nil:
		return nil
	default:
		return &Signal{Policy: p.Name()}
	}
}

// Sink receives finished runs.
type Sink interface {
	Name() string
	Publish(ctx context.Context, run Run) error
}

// Multi fans a run out to every sink and joins their errors.
type Multi []Sink

// Name returns the sink identifier.
func (m Multi) Name() string { return "multi" }

// Publish delivers to each sink in order. A failing sink does not stop the rest.
func (m Multi) Publish(ctx context.Context, run Run) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, run); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		metrics.ReportsPublished.WithLabelValues(s.Name()).Inc()
	}
	return errors.Join(errs...)
}
