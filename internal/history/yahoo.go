package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"pairbot-go/internal/series"
)

const yahooBaseURL = "https://query2.finance.yahoo.com"

type yahooChartResponse struct {
	Chart struct {
		Result []yahooChartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooChartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// closes prefers the split/dividend adjusted column when Yahoo sends one.
func (r *yahooChartResult) closes() []*float64 {
	if len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) == len(r.Timestamp) {
		return r.Indicators.AdjClose[0].AdjClose
	}
	if len(r.Indicators.Quote) > 0 {
		return r.Indicators.Quote[0].Close
	}
	return nil
}

// Yahoo reads daily bars from the v8 chart endpoint.
type Yahoo struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewYahoo builds a Yahoo chart client.
func NewYahoo(log zerolog.Logger, opts ...Option) *Yahoo {
	o := buildHTTPOptions(yahooBaseURL, opts)
	return &Yahoo{client: o.client, baseURL: o.baseURL, log: log.With().Str("provider", ProviderYahoo).Logger()}
}

// Name returns the provider identifier.
func (y *Yahoo) Name() string { return ProviderYahoo }

// Fetch downloads close prices for ticker over [start, end).
func (y *Yahoo) Fetch(ctx context.Context, ticker string, start, end time.Time) (series.PriceSeries, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=history",
		y.baseURL, url.PathEscape(ticker), start.Unix(), end.Unix())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return series.PriceSeries{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; pairbot-go/1.0)")
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return series.PriceSeries{}, fmt.Errorf("chart %s: %w", ticker, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return series.PriceSeries{}, fmt.Errorf("chart %s: unexpected status %d", ticker, resp.StatusCode)
	}

	var payload yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return series.PriceSeries{}, fmt.Errorf("decode chart %s: %w", ticker, err)
	}
	if payload.Chart.Error != nil {
		return series.PriceSeries{}, fmt.Errorf("chart %s: %s: %s", ticker, payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return series.PriceSeries{}, fmt.Errorf("chart %s: %w", ticker, ErrNoData)
	}

	data := payload.Chart.Result[0]
	closes := data.closes()
	if len(closes) != len(data.Timestamp) {
		return series.PriceSeries{}, fmt.Errorf("chart %s: %d timestamps but %d closes", ticker, len(data.Timestamp), len(closes))
	}

	points := make([]series.PricePoint, 0, len(closes))
	skipped := 0
	for i, ts := range data.Timestamp {
		if closes[i] == nil || *closes[i] <= 0 {
			skipped++
			continue
		}
		// shift into exchange-local time before truncating so the bar keeps its trading date
		local := time.Unix(ts+data.Meta.GMTOffset, 0).UTC()
		points = append(points, series.PricePoint{Time: local, Price: *closes[i]})
	}
	if skipped > 0 {
		y.log.Debug().Str("ticker", ticker).Int("skipped", skipped).Msg("dropped empty bars")
	}
	return normalize(ticker, points, start, end)
}
