package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger("debug", nil, false)
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}

	logger = NewLogger("invalid", nil, false)
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", logger.GetLevel())
	}

	logger = NewLogger("", nil, false)
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info for empty level, got %s", logger.GetLevel())
	}
}

func TestNewLoggerWriters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", &buf, false)
	logger.Info().Str("pair", "MSFT/AAPL").Msg("run complete")
	if !strings.Contains(buf.String(), `"pair":"MSFT/AAPL"`) {
		t.Fatalf("expected json field in output, got %s", buf.String())
	}

	buf.Reset()
	logger = NewLogger("info", &buf, true)
	logger.Info().Str("pair", "KO/PEP").Msg("run complete")
	out := buf.String()
	if strings.Contains(out, `{"`) || !strings.Contains(out, "pair=KO/PEP") {
		t.Fatalf("expected console formatted output, got %s", out)
	}
}
