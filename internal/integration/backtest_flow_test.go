package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pairbot-go/internal/config"
	"pairbot-go/internal/history"
	"pairbot-go/internal/pipeline"
	"pairbot-go/internal/report"
)

func TestBacktestFlowFromConfigFile(t *testing.T) {
	cfg, err := config.Load(filepath.Join("..", "config", "testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	cfg.Report.JSONLPath = filepath.Join(t.TempDir(), "runs.jsonl")

	var buf bytes.Buffer
	logger := zerolog.New(zerolog.SyncWriter(&buf))
	provider, err := history.New(cfg.Provider, logger)
	if err != nil {
		t.Fatalf("history.New error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	outcomes, err := pipeline.RunPairs(ctx, provider, cfg, logger)
	if err != nil {
		t.Fatalf("RunPairs error: %v", err)
	}

	jsonl, err := report.NewJSONL(cfg.Report.JSONLPath)
	if err != nil {
		t.Fatalf("NewJSONL error: %v", err)
	}
	collector := report.NewCollector(len(outcomes))
	sinks := report.Multi{report.NewConsole(logger), jsonl, collector}
	for _, o := range outcomes {
		if o.Err != nil {
			t.Fatalf("pair %s failed: %v", o.Pair.Name(), o.Err)
		}
		if err := sinks.Publish(ctx, report.FromOutcome(o)); err != nil {
			t.Fatalf("Publish error: %v", err)
		}
	}
	if err := jsonl.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	runs := collector.Snapshot()
	if len(runs) != len(cfg.Pairs) {
		t.Fatalf("expected %d runs, got %d", len(cfg.Pairs), len(runs))
	}
	for i, run := range runs {
		if run.Pair != cfg.Pairs[i].Name() {
			t.Fatalf("run %d is %s, expected %s", i, run.Pair, cfg.Pairs[i].Name())
		}
		if run.Signal.Policy != "threshold" || run.Spread.Normalization != "rolling" || run.Spread.Window != 117 {
			t.Fatalf("run %s did not use the file settings: %+v %+v", run.Pair, run.Signal, run.Spread)
		}
		// the rolling window leaves the first 116 z-scores undefined
		for j := 0; j < 116; j++ {
			if run.Spread.ZScores[j] == run.Spread.ZScores[j] {
				t.Fatalf("run %s: z-score %d should be undefined", run.Pair, j)
			}
		}
		for _, pos := range run.Positions {
			if pos != -1 && pos != 0 && pos != 1 {
				t.Fatalf("run %s: threshold position %v", run.Pair, pos)
			}
		}
	}

	file, err := os.Open(cfg.Report.JSONLPath)
	if err != nil {
		t.Fatalf("open jsonl: %v", err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)
	lines := 0
	for scanner.Scan() {
		var decoded report.Run
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("decode line %d: %v", lines+1, err)
		}
		lines++
	}
	if lines != len(cfg.Pairs) {
		t.Fatalf("expected %d jsonl lines, got %d", len(cfg.Pairs), lines)
	}
	if !strings.Contains(buf.String(), "backtest complete") {
		t.Fatalf("expected console summary in logs")
	}
}

// writeCSV dumps a provider's series to <dir>/<TICKER>.csv.
func writeCSV(t *testing.T, dir string, p history.Provider, ticker string, start, end time.Time) {
	t.Helper()
	s, err := p.Fetch(context.Background(), ticker, start, end)
	if err != nil {
		t.Fatalf("Fetch %s error: %v", ticker, err)
	}
	f, err := os.Create(filepath.Join(dir, ticker+".csv"))
	if err != nil {
		t.Fatalf("create csv: %v", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	_ = w.Write([]string{"Date", "Close"})
	for _, pt := range s.Points {
		_ = w.Write([]string{pt.Time.Format(time.DateOnly), strconv.FormatFloat(pt.Price, 'g', -1, 64)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("write csv: %v", err)
	}
}

func TestCSVProviderMatchesSource(t *testing.T) {
	cfg := config.Default()
	cfg.Pairs = []config.Pair{{TickerA: "MSFT", TickerB: "AAPL", Start: "2018-01-01", End: "2023-01-01"}}
	start, end, _ := cfg.Pairs[0].Range()

	synthetic := history.NewSynthetic(99)
	dir := t.TempDir()
	writeCSV(t, dir, synthetic, "MSFT", start, end)
	writeCSV(t, dir, synthetic, "AAPL", start, end)

	fromSource, err := pipeline.RunPairs(context.Background(), synthetic, cfg, zerolog.Nop())
	if err != nil || fromSource[0].Err != nil {
		t.Fatalf("synthetic run failed: %v %v", err, fromSource[0].Err)
	}
	fromFiles, err := pipeline.RunPairs(context.Background(), history.NewCSVFiles(dir), cfg, zerolog.Nop())
	if err != nil || fromFiles[0].Err != nil {
		t.Fatalf("csv run failed: %v %v", err, fromFiles[0].Err)
	}
	if fromSource[0].Result.Metrics != fromFiles[0].Result.Metrics {
		t.Fatalf("csv round trip changed metrics: %+v vs %+v", fromSource[0].Result.Metrics, fromFiles[0].Result.Metrics)
	}
}
