// Package history hosts price-history providers for the backtest pipeline.
package history

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pairbot-go/internal/config"
	"pairbot-go/internal/metrics"
	"pairbot-go/internal/series"
)

const (
	// ProviderYahoo reads the Yahoo Finance v8 chart API.
	ProviderYahoo = "yahoo"
	// ProviderHTML scrapes a Date/Close table from an HTML history page.
	ProviderHTML = "html"
	// ProviderCSV reads <TICKER>.csv files from a directory.
	ProviderCSV = "csv"
	// ProviderSynthetic emits deterministic cointegrated walks (useful for tests/offline work).
	ProviderSynthetic = "synthetic"
)

// ErrNoData is returned when a provider has no prices for the requested window.
var ErrNoData = errors.New("no price data")

// Provider supplies close prices for one ticker over [start, end).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, ticker string, start, end time.Time) (series.PriceSeries, error)
}

const defaultTimeout = 30 * time.Second

type httpOptions struct {
	client  *http.Client
	baseURL string
}

// Option configures HTTP-backed providers.
type Option func(*httpOptions)

// WithHTTPClient swaps the client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *httpOptions) {
		if c != nil {
			o.client = c
		}
	}
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(u string) Option {
	return func(o *httpOptions) {
		if u != "" {
			o.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

func buildHTTPOptions(defaultBase string, opts []Option) httpOptions {
	o := httpOptions{client: &http.Client{Timeout: defaultTimeout}, baseURL: defaultBase}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New constructs the provider named in cfg.
func New(cfg config.Provider, log zerolog.Logger) (Provider, error) {
	var opts []Option
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.TimeoutSec > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second}))
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", ProviderYahoo:
		return NewYahoo(log, opts...), nil
	case ProviderHTML:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("html provider requires base_url")
		}
		return NewHTMLTable(log, opts...), nil
	case ProviderCSV:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("csv provider requires dir")
		}
		return NewCSVFiles(cfg.Dir), nil
	case ProviderSynthetic, "stub":
		return NewSynthetic(cfg.Seed), nil
	default:
		return nil, fmt.Errorf("unknown history provider %q", cfg.Name)
	}
}

// FetchPair loads both legs. The first provider error is returned unchanged.
func FetchPair(ctx context.Context, p Provider, tickerA, tickerB string, start, end time.Time) (series.PriceSeries, series.PriceSeries, error) {
	a, err := fetch(ctx, p, tickerA, start, end)
	if err != nil {
		return series.PriceSeries{}, series.PriceSeries{}, err
	}
	b, err := fetch(ctx, p, tickerB, start, end)
	if err != nil {
		return series.PriceSeries{}, series.PriceSeries{}, err
	}
	return a, b, nil
}

func fetch(ctx context.Context, p Provider, ticker string, start, end time.Time) (series.PriceSeries, error) {
	s, err := p.Fetch(ctx, ticker, start, end)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.HistoryFetches.WithLabelValues(p.Name(), outcome).Inc()
	return s, err
}

// day truncates to the calendar date in UTC so legs from different feeds line up.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// normalize sorts by time, keeps the last observation per date and clips to [start, end).
func normalize(ticker string, points []series.PricePoint, start, end time.Time) (series.PriceSeries, error) {
	start, end = day(start), day(end)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })

	out := make([]series.PricePoint, 0, len(points))
	for _, p := range points {
		p.Time = day(p.Time)
		if p.Time.Before(start) || !p.Time.Before(end) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Time.Equal(p.Time) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return series.PriceSeries{}, fmt.Errorf("%s %s..%s: %w", ticker, start.Format(time.DateOnly), end.Format(time.DateOnly), ErrNoData)
	}
	return series.PriceSeries{Ticker: ticker, Points: out}, nil
}
