package risk

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestSharpeScenario(t *testing.T) {
	returns := []float64{math.NaN(), 0.01, -0.005, 0.02, 0.0, -0.01}

	sample, err := Sharpe(returns, TradingDays, Sample)
	if err != nil {
		t.Fatalf("Sharpe error: %v", err)
	}
	if math.Abs(sample-3.95493) > 1e-4 {
		t.Fatalf("expected sample sharpe 3.95493, got %.5f", sample)
	}

	pop, err := Sharpe(returns, TradingDays, Population)
	if err != nil {
		t.Fatalf("Sharpe error: %v", err)
	}
	if math.Abs(pop-4.42173) > 1e-4 {
		t.Fatalf("expected population sharpe 4.42173, got %.5f", pop)
	}
}

func TestSharpeUndefined(t *testing.T) {
	cases := [][]float64{
		{0.01, 0.01, 0.01},
		{math.NaN(), 0.02},
		{},
	}
	for _, returns := range cases {
		if _, err := Sharpe(returns, TradingDays, Sample); !errors.Is(err, ErrUndefinedSharpe) {
			t.Fatalf("returns %v: expected ErrUndefinedSharpe, got %v", returns, err)
		}
	}
	if _, err := Sharpe([]float64{0.1, 0.2}, 0, Sample); err == nil {
		t.Fatalf("expected invalid annualization error")
	}
}

func TestMaxDrawdown(t *testing.T) {
	if dd := MaxDrawdown([]float64{1, 1, 1.2, 1.5, 1.5}); dd != 0 {
		t.Fatalf("expected 0 for non-decreasing curve, got %v", dd)
	}
	dd := MaxDrawdown([]float64{1, 1.2, 0.9, 1.3, 1.04})
	if math.Abs(dd-0.25) > 1e-12 {
		t.Fatalf("expected 0.25, got %v", dd)
	}
	if dd := MaxDrawdown([]float64{1, 0}); dd != 1 {
		t.Fatalf("expected full drawdown 1, got %v", dd)
	}
}

func TestMaxDrawdownBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	for trial := 0; trial < 50; trial++ {
		equity := make([]float64, 100)
		level := 1.0
		for i := range equity {
			level *= math.Max(0, 1+rng.NormFloat64()*0.1)
			equity[i] = level
		}
		dd := MaxDrawdown(equity)
		if dd < 0 || dd > 1 {
			t.Fatalf("trial %d: drawdown %v outside [0,1]", trial, dd)
		}
	}
}

func TestAnalyze(t *testing.T) {
	m, err := Analyze([]float64{math.NaN(), 0.1, -0.05}, []float64{1, 1.1, 1.045}, TradingDays, Sample)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	if m.Sharpe <= 0 {
		t.Fatalf("expected positive sharpe, got %v", m.Sharpe)
	}
	if math.Abs(m.MaxDrawdown-0.05) > 1e-12 {
		t.Fatalf("expected drawdown 0.05, got %v", m.MaxDrawdown)
	}
}

func TestParseStdDevMode(t *testing.T) {
	if m, err := ParseStdDevMode(""); err != nil || m != Sample {
		t.Fatalf("expected sample default, got %v %v", m, err)
	}
	if _, err := ParseStdDevMode("ewma"); err == nil {
		t.Fatalf("expected unknown mode error")
	}
}
