package history

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pairbot-go/internal/coint"
	"pairbot-go/internal/config"
	"pairbot-go/internal/series"
)

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestYahooFetchParsesChart(t *testing.T) {
	// 2020-01-02 and 2020-01-03 14:30 UTC with a null bar between
	const body = `{"chart":{"result":[{"meta":{"symbol":"MSFT","gmtoffset":-18000},
		"timestamp":[1577975400,1578000000,1578061800],
		"indicators":{"quote":[{"close":[160.62,null,158.62]}],"adjclose":[{"adjclose":[155.1,null,153.2]}]}}],"error":null}}`
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Query().Get("interval") != "1d" {
			t.Errorf("expected daily interval, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	y := NewYahoo(zerolog.Nop(), WithBaseURL(server.URL))
	s, err := y.Fetch(context.Background(), "MSFT", date("2020-01-01"), date("2020-02-01"))
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if gotPath != "/v8/finance/chart/MSFT" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 points, got %d", s.Len())
	}
	if !s.Points[0].Time.Equal(date("2020-01-02")) || !s.Points[1].Time.Equal(date("2020-01-03")) {
		t.Fatalf("unexpected dates %v %v", s.Points[0].Time, s.Points[1].Time)
	}
	if s.Points[0].Price != 155.1 {
		t.Fatalf("expected adjusted close, got %v", s.Points[0].Price)
	}
}

func TestYahooFetchErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/DOWN"):
			w.WriteHeader(http.StatusServiceUnavailable)
		case strings.HasSuffix(r.URL.Path, "/NOPE"):
			_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
		default:
			_, _ = w.Write([]byte(`{"chart":{"result":[{"timestamp":[],"indicators":{"quote":[{"close":[]}]}}]}}`))
		}
	}))
	defer server.Close()

	y := NewYahoo(zerolog.Nop(), WithBaseURL(server.URL))
	ctx := context.Background()
	if _, err := y.Fetch(ctx, "DOWN", date("2020-01-01"), date("2020-02-01")); err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status error, got %v", err)
	}
	if _, err := y.Fetch(ctx, "NOPE", date("2020-01-01"), date("2020-02-01")); err == nil || !strings.Contains(err.Error(), "delisted") {
		t.Fatalf("expected chart error, got %v", err)
	}
	if _, err := y.Fetch(ctx, "EMPTY", date("2020-01-01"), date("2020-02-01")); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestYahooFetchHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	y := NewYahoo(zerolog.Nop(), WithBaseURL(server.URL))
	if _, err := y.Fetch(ctx, "MSFT", date("2020-01-01"), date("2020-02-01")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHTMLTableFetch(t *testing.T) {
	const page = `<html><body>
<table id="summary"><tr><th>Open</th><th>Volume</th></tr><tr><td>1</td><td>2</td></tr></table>
<table>
  <thead><tr><th>Date</th><th>Open</th><th>Close*</th><th>Adj Close**</th></tr></thead>
  <tbody>
    <tr><td>Jan 6, 2020</td><td>1</td><td>159.03</td><td>154.98</td></tr>
    <tr><td>Jan 3, 2020</td><td>1</td><td>158.62</td><td>153.20</td></tr>
    <tr><td>Jan 3, 2020</td><td colspan="3">0.51 Dividend</td></tr>
    <tr><td>Jan 2, 2020</td><td>1</td><td>1,160.62</td><td>1,155.10</td></tr>
  </tbody>
</table></body></html>`
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	h := NewHTMLTable(zerolog.Nop(), WithBaseURL(server.URL+"/quote"))
	s, err := h.Fetch(context.Background(), "MSFT", date("2020-01-01"), date("2020-01-06"))
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if !strings.Contains(query, "start=2020-01-01") {
		t.Fatalf("expected start in query, got %s", query)
	}
	// Jan 6 is excluded by the half-open window; rows arrive newest first
	if s.Len() != 2 {
		t.Fatalf("expected 2 points, got %d: %+v", s.Len(), s.Points)
	}
	if s.Points[0].Price != 1155.10 || s.Points[1].Price != 153.20 {
		t.Fatalf("unexpected prices %+v", s.Points)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("expected a valid series, got %v", err)
	}
}

func TestHTMLTableMissingColumns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<table><tr><th>When</th><th>Price</th></tr></table>`))
	}))
	defer server.Close()

	h := NewHTMLTable(zerolog.Nop(), WithBaseURL(server.URL))
	if _, err := h.Fetch(context.Background(), "MSFT", date("2020-01-01"), date("2020-02-01")); err == nil {
		t.Fatal("expected error for a page without a price table")
	}
}

func TestCSVFilesFetch(t *testing.T) {
	dir := t.TempDir()
	data := "Date,Open,High,Low,Close,Adj Close,Volume\n" +
		"2020-01-03,1,1,1,158.62,153.20,100\n" +
		"2020-01-02,1,1,1,160.62,155.10,100\n" +
		"2020-01-06,1,1,1,159.03,null,100\n" +
		"2019-12-31,1,1,1,157.70,152.30,100\n"
	if err := os.WriteFile(filepath.Join(dir, "MSFT.csv"), []byte(data), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	c := NewCSVFiles(dir)
	s, err := c.Fetch(context.Background(), "msft", date("2020-01-01"), date("2020-02-01"))
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if s.Len() != 2 || s.Points[0].Price != 155.10 || s.Points[1].Price != 153.20 {
		t.Fatalf("unexpected points %+v", s.Points)
	}

	if _, err := c.Fetch(context.Background(), "AAPL", date("2020-01-01"), date("2020-02-01")); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData for a missing file, got %v", err)
	}
}

func TestCSVFilesBadRow(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "BAD.csv"), []byte("Date,Close\n2020-01-02,abc\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	_, err := NewCSVFiles(dir).Fetch(context.Background(), "BAD", date("2020-01-01"), date("2020-02-01"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line error, got %v", err)
	}
}

func TestReadCSVStripsByteOrderMark(t *testing.T) {
	points, err := readCSV(strings.NewReader("\ufeffDate,Close\n2020-01-02,10\n"))
	if err != nil {
		t.Fatalf("readCSV error: %v", err)
	}
	if len(points) != 1 || points[0].Price != 10 || !points[0].Time.Equal(date("2020-01-02")) {
		t.Fatalf("unexpected points %+v", points)
	}
}

func TestSyntheticDeterministic(t *testing.T) {
	syn := NewSynthetic(42)
	start, end := date("2019-01-01"), date("2020-01-01")
	first, err := syn.Fetch(context.Background(), "AAA", start, end)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	second, _ := syn.Fetch(context.Background(), "AAA", start, end)
	if first.Len() != second.Len() {
		t.Fatalf("length changed between calls")
	}
	for i := range first.Points {
		if first.Points[i] != second.Points[i] {
			t.Fatalf("index %d differs between calls", i)
		}
		if wd := first.Points[i].Time.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("weekend bar at %v", first.Points[i].Time)
		}
	}
	other, _ := syn.Fetch(context.Background(), "BBB", start, end)
	if other.Points[10].Price == first.Points[10].Price {
		t.Fatalf("expected tickers to differ")
	}
	if err := first.Validate(); err != nil {
		t.Fatalf("synthetic series invalid: %v", err)
	}
}

func TestSyntheticPairIsCointegrated(t *testing.T) {
	a, b, err := FetchPair(context.Background(), NewSynthetic(7), "AAA", "BBB", date("2018-01-01"), date("2023-01-01"))
	if err != nil {
		t.Fatalf("FetchPair error: %v", err)
	}
	pair, err := series.Align(a, b, series.DefaultMinSamples)
	if err != nil {
		t.Fatalf("Align error: %v", err)
	}
	res, err := coint.Test(pair)
	if err != nil {
		t.Fatalf("coint.Test error: %v", err)
	}
	if !res.Cointegrated(coint.DefaultSignificance) {
		t.Fatalf("expected synthetic legs to cointegrate, p=%.4f", res.PValue)
	}
}

type failing struct{ err error }

func (f failing) Name() string { return "failing" }
func (f failing) Fetch(context.Context, string, time.Time, time.Time) (series.PriceSeries, error) {
	return series.PriceSeries{}, f.err
}

func TestFetchPairSurfacesProviderError(t *testing.T) {
	sentinel := fmt.Errorf("upstream: %w", ErrNoData)
	_, _, err := FetchPair(context.Background(), failing{err: sentinel}, "A", "B", date("2020-01-01"), date("2020-02-01"))
	if err != sentinel {
		t.Fatalf("expected provider error unchanged, got %v", err)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	cases := map[string]string{
		"":          ProviderYahoo,
		"yahoo":     ProviderYahoo,
		"synthetic": ProviderSynthetic,
	}
	for name, want := range cases {
		p, err := New(config.Provider{Name: name}, zerolog.Nop())
		if err != nil {
			t.Fatalf("New(%q) error: %v", name, err)
		}
		if p.Name() != want {
			t.Fatalf("New(%q) = %s, want %s", name, p.Name(), want)
		}
	}
	if p, err := New(config.Provider{Name: "csv", Dir: t.TempDir()}, zerolog.Nop()); err != nil || p.Name() != ProviderCSV {
		t.Fatalf("expected csv provider, got %v %v", p, err)
	}
	if _, err := New(config.Provider{Name: "csv"}, zerolog.Nop()); err == nil {
		t.Fatal("expected csv without dir to fail")
	}
	if _, err := New(config.Provider{Name: "html"}, zerolog.Nop()); err == nil {
		t.Fatal("expected html without base_url to fail")
	}
	if _, err := New(config.Provider{Name: "bloomberg"}, zerolog.Nop()); err == nil {
		t.Fatal("expected unknown provider to fail")
	}
}
