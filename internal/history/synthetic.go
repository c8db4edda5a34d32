package history

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"pairbot-go/internal/series"
)

// Synthetic prices every ticker as loading*common + base + noise, where common is a
// shared random walk and noise is a per-ticker AR(1). Any two tickers fetched over the
// same window are therefore cointegrated. Output depends only on seed, ticker and window.
type Synthetic struct {
	Seed int64
}

// NewSynthetic builds a generator; seed 0 is valid.
func NewSynthetic(seed int64) *Synthetic { return &Synthetic{Seed: seed} }

// Name returns the provider identifier.
func (s *Synthetic) Name() string { return ProviderSynthetic }

// Fetch emits one close per weekday in [start, end).
func (s *Synthetic) Fetch(ctx context.Context, ticker string, start, end time.Time) (series.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return series.PriceSeries{}, err
	}
	days := weekdays(day(start), day(end))

	common := rand.New(rand.NewSource(s.Seed))
	own := rand.New(rand.NewSource(s.Seed ^ tickerHash(ticker)))
	loading := 0.5 + own.Float64()*1.5
	base := 5 + own.Float64()*45
	const phi, noiseVol = 0.8, 1.0

	points := make([]series.PricePoint, 0, len(days))
	level, noise := 100.0, 0.0
	for _, d := range days {
		level *= math.Exp(common.NormFloat64() * 0.01)
		noise = phi*noise + own.NormFloat64()*noiseVol
		price := loading*level + base + noise
		if price < 1 {
			price = 1
		}
		points = append(points, series.PricePoint{Time: d, Price: price})
	}
	return normalize(ticker, points, start, end)
}

func weekdays(start, end time.Time) []time.Time {
	var out []time.Time
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}

func tickerHash(ticker string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToUpper(ticker)))
	return int64(h.Sum64())
}
