package history

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"pairbot-go/internal/series"
)

var htmlDateLayouts = []string{time.DateOnly, "Jan 2, 2006", "Jan 02, 2006", "01/02/2006", "2 Jan 2006"}

// HTMLTable scrapes <BaseURL>/<TICKER>?start=...&end=... and reads the first table
// carrying a Date column and a Close (or Adj Close) column.
type HTMLTable struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewHTMLTable builds a scraper. WithBaseURL is required in practice.
func NewHTMLTable(log zerolog.Logger, opts ...Option) *HTMLTable {
	o := buildHTTPOptions("", opts)
	return &HTMLTable{client: o.client, baseURL: o.baseURL, log: log.With().Str("provider", ProviderHTML).Logger()}
}

// Name returns the provider identifier.
func (h *HTMLTable) Name() string { return ProviderHTML }

// Fetch downloads and parses the history page.
func (h *HTMLTable) Fetch(ctx context.Context, ticker string, start, end time.Time) (series.PriceSeries, error) {
	q := url.Values{}
	q.Set("start", start.Format(time.DateOnly))
	q.Set("end", end.Format(time.DateOnly))
	endpoint := fmt.Sprintf("%s/%s?%s", h.baseURL, url.PathEscape(ticker), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return series.PriceSeries{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; pairbot-go/1.0)")
	resp, err := h.client.Do(req)
	if err != nil {
		return series.PriceSeries{}, fmt.Errorf("history page %s: %w", ticker, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return series.PriceSeries{}, fmt.Errorf("history page %s: unexpected status %d", ticker, resp.StatusCode)
	}

	points, err := parseHTMLTable(resp.Body)
	if err != nil {
		return series.PriceSeries{}, fmt.Errorf("history page %s: %w", ticker, err)
	}
	h.log.Debug().Str("ticker", ticker).Int("rows", len(points)).Msg("parsed history table")
	return normalize(ticker, points, start, end)
}

func parseHTMLTable(r io.Reader) ([]series.PricePoint, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var points []series.PricePoint
	found := false
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		dateIdx, closeIdx := -1, -1
		table.Find("tr").First().Find("th,td").Each(func(i int, cell *goquery.Selection) {
			switch normalizeHeader(cell.Text()) {
			case "date":
				dateIdx = i
			case "adj close":
				closeIdx = i
			case "close":
				if closeIdx == -1 {
					closeIdx = i
				}
			}
		})
		if dateIdx == -1 || closeIdx == -1 {
			return true
		}
		found = true
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() <= dateIdx || cells.Length() <= closeIdx {
				return
			}
			ts, ok := parseHTMLDate(cells.Eq(dateIdx).Text())
			if !ok {
				return
			}
			price, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(cells.Eq(closeIdx).Text()), ",", ""), 64)
			if err != nil || price <= 0 {
				// dividend and split rows carry text in the close column
				return
			}
			points = append(points, series.PricePoint{Time: ts, Price: price})
		})
		return false
	})
	if !found {
		return nil, fmt.Errorf("no table with date and close columns")
	}
	return points, nil
}

// normalizeHeader maps "Close*", "Adj Close**" and friends onto plain names.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, "* ")
	s = strings.ReplaceAll(s, ".", "")
	return strings.Join(strings.Fields(s), " ")
}

func parseHTMLDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range htmlDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
