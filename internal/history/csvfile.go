package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pairbot-go/internal/series"
)

// CSVFiles reads <Dir>/<TICKER>.csv with at least a Date and a Close or Adj Close column.
type CSVFiles struct {
	Dir string
}

// NewCSVFiles points the provider at dir.
func NewCSVFiles(dir string) *CSVFiles { return &CSVFiles{Dir: dir} }

// Name returns the provider identifier.
func (c *CSVFiles) Name() string { return ProviderCSV }

// Fetch loads and clips the file for ticker.
func (c *CSVFiles) Fetch(ctx context.Context, ticker string, start, end time.Time) (series.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return series.PriceSeries{}, err
	}
	path := filepath.Join(c.Dir, strings.ToUpper(ticker)+".csv")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return series.PriceSeries{}, fmt.Errorf("%s: %w", path, ErrNoData)
		}
		return series.PriceSeries{}, err
	}
	defer f.Close()

	points, err := readCSV(f)
	if err != nil {
		return series.PriceSeries{}, fmt.Errorf("%s: %w", path, err)
	}
	return normalize(ticker, points, start, end)
}

func readCSV(r io.Reader) ([]series.PricePoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	dateIdx, closeIdx := -1, -1
	for i, col := range header {
		switch normalizeHeader(strings.TrimPrefix(col, "\ufeff")) {
		case "date", "datetime", "timestamp":
			dateIdx = i
		case "adj close":
			closeIdx = i
		case "close":
			if closeIdx == -1 {
				closeIdx = i
			}
		}
	}
	if dateIdx == -1 || closeIdx == -1 {
		return nil, fmt.Errorf("missing date or close column")
	}

	var points []series.PricePoint
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) <= dateIdx || len(record) <= closeIdx {
			continue
		}
		ts, ok := parseCSVDate(record[dateIdx])
		if !ok {
			return nil, fmt.Errorf("line %d: bad date %q", line, record[dateIdx])
		}
		raw := strings.TrimSpace(record[closeIdx])
		if raw == "" || strings.EqualFold(raw, "null") {
			continue
		}
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad close %q", line, raw)
		}
		points = append(points, series.PricePoint{Time: ts, Price: price})
	}
	return points, nil
}

func parseCSVDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02 15:04:05-07:00", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
