// Package series holds the price containers shared by every backtest stage.
package series

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInsufficientData is returned when two series share too few timestamps to analyze.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidPrice flags non-positive or non-finite prices.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrUnorderedSeries flags timestamps that are not strictly ascending.
	ErrUnorderedSeries = errors.New("series not strictly ascending")
)

// DefaultMinSamples is the smallest overlap accepted for regression and unit-root tests.
const DefaultMinSamples = 30

// PricePoint is a single close observation.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// PriceSeries is an ordered price history for one ticker.
type PriceSeries struct {
	Ticker string       `json:"ticker"`
	Points []PricePoint `json:"points"`
}

// Len reports the number of observations.
func (s PriceSeries) Len() int { return len(s.Points) }

// Validate checks ordering and price sanity.
func (s PriceSeries) Validate() error {
	for i, p := range s.Points {
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price <= 0 {
			return fmt.Errorf("%s at %s: %w", s.Ticker, p.Time.Format(time.DateOnly), ErrInvalidPrice)
		}
		if i > 0 && !p.Time.After(s.Points[i-1].Time) {
			return fmt.Errorf("%s at %s: %w", s.Ticker, p.Time.Format(time.DateOnly), ErrUnorderedSeries)
		}
	}
	return nil
}

// AlignedPair is two price histories reduced to a common timeline.
// A and B share the same timestamps index for index.
type AlignedPair struct {
	tickerA string
	tickerB string
	times   []time.Time
	a       []float64
	b       []float64
}

// NewAlignedPair builds a pair from already aligned slices. The inputs are copied.
func NewAlignedPair(tickerA, tickerB string, times []time.Time, a, b []float64) (AlignedPair, error) {
	if len(times) != len(a) || len(a) != len(b) {
		return AlignedPair{}, fmt.Errorf("aligned lengths differ: times=%d a=%d b=%d", len(times), len(a), len(b))
	}
	return AlignedPair{
		tickerA: tickerA,
		tickerB: tickerB,
		times:   append([]time.Time(nil), times...),
		a:       append([]float64(nil), a...),
		b:       append([]float64(nil), b...),
	}, nil
}

// TickerA names the first leg.
func (p AlignedPair) TickerA() string { return p.tickerA }

// TickerB names the second leg.
func (p AlignedPair) TickerB() string { return p.tickerB }

// Name renders the pair as "A/B".
func (p AlignedPair) Name() string { return p.tickerA + "/" + p.tickerB }

// Len is the number of shared timestamps.
func (p AlignedPair) Len() int { return len(p.times) }

// Times returns a copy of the shared timeline.
func (p AlignedPair) Times() []time.Time { return append([]time.Time(nil), p.times...) }

// A returns a copy of the first leg prices.
func (p AlignedPair) A() []float64 { return append([]float64(nil), p.a...) }

// B returns a copy of the second leg prices.
func (p AlignedPair) B() []float64 { return append([]float64(nil), p.b...) }

// Align inner-joins two series on exact timestamps. Dates missing from either side are dropped,
// nothing is interpolated.
func Align(a, b PriceSeries, minSamples int) (AlignedPair, error) {
	if err := a.Validate(); err != nil {
		return AlignedPair{}, err
	}
	if err := b.Validate(); err != nil {
		return AlignedPair{}, err
	}
	if minSamples < 1 {
		minSamples = 1
	}

	n := len(a.Points)
	if len(b.Points) < n {
		n = len(b.Points)
	}
	times := make([]time.Time, 0, n)
	pa := make([]float64, 0, n)
	pb := make([]float64, 0, n)

	// both sides are strictly ascending, so a merge walk keeps output order deterministic
	i, j := 0, 0
	for i < len(a.Points) && j < len(b.Points) {
		ta, tb := a.Points[i].Time, b.Points[j].Time
		switch {
		case ta.Equal(tb):
			times = append(times, ta)
			pa = append(pa, a.Points[i].Price)
			pb = append(pb, b.Points[j].Price)
			i++
			j++
		case ta.Before(tb):
			i++
		default:
			j++
		}
	}

	if len(times) < minSamples {
		return AlignedPair{}, fmt.Errorf("%s/%s: %d shared points, need %d: %w", a.Ticker, b.Ticker, len(times), minSamples, ErrInsufficientData)
	}
	return AlignedPair{tickerA: a.Ticker, tickerB: b.Ticker, times: times, a: pa, b: pb}, nil
}

// Returns computes simple percent changes. The first entry is undefined.
func Returns(prices []float64) []float64 {
	out := make([]float64, len(prices))
	for i := range prices {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = prices[i]/prices[i-1] - 1
	}
	return out
}

// Defined reports whether v carries a value rather than the "not yet available" marker.
func Defined(v float64) bool { return !math.IsNaN(v) }

// DefinedValues drops undefined entries.
func DefinedValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if Defined(v) {
			out = append(out, v)
		}
	}
	return out
}
