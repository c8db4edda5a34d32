// Package config exposes strongly typed backtest configuration structs loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DateLayout is the on-disk format for pair date ranges.
const DateLayout = "2006-01-02"

// App captures process-wide runtime settings such as name, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	PrettyLogs  bool   `yaml:"pretty_logs"`
}

// Provider describes where price history comes from.
type Provider struct {
	Name       string `yaml:"name"` // yahoo|html|csv|synthetic
	BaseURL    string `yaml:"base_url"`
	Dir        string `yaml:"dir"`
	TimeoutSec int    `yaml:"timeout_secs"`
	Seed       int64  `yaml:"seed"`
}

// Pair names the two legs and the history window to backtest.
type Pair struct {
	TickerA string `yaml:"ticker_a"`
	TickerB string `yaml:"ticker_b"`
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
}

// Name renders the pair as "A/B".
func (p Pair) Name() string { return p.TickerA + "/" + p.TickerB }

// Range parses the configured dates.
func (p Pair) Range() (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, p.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("pair %s start: %w", p.Name(), err)
	}
	end, err := time.Parse(DateLayout, p.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("pair %s end: %w", p.Name(), err)
	}
	return start, end, nil
}

// Spread selects the spread construction and its normalization.
type Spread struct {
	Mode       string `yaml:"mode"`        // raw|hedge_adjusted
	ZScoreMode string `yaml:"zscore_mode"` // full|rolling
	Window     int    `yaml:"window"`
	Dependent  string `yaml:"dependent"` // a|b
}

// Signal groups the position sizing knobs.
type Signal struct {
	Policy         string  `yaml:"policy"` // threshold|continuous
	UpperThreshold float64 `yaml:"upper_threshold"`
	LowerThreshold float64 `yaml:"lower_threshold"`
	ExitBand       float64 `yaml:"exit_band"`
	ScalingFactor  float64 `yaml:"scaling_factor"`
}

// Analysis holds statistical settings.
type Analysis struct {
	SignificanceLevel   float64 `yaml:"significance_level"`
	AnnualizationFactor int     `yaml:"annualization_factor"`
	MinSamples          int     `yaml:"min_samples"`
	SharpeStdDev        string  `yaml:"sharpe_stddev"` // sample|population
}

// Report configures the output sinks.
type Report struct {
	JSONLPath string `yaml:"jsonl_path"`
	WSAddr    string `yaml:"ws_addr"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App         App      `yaml:"app"`
	Provider    Provider `yaml:"provider"`
	Pairs       []Pair   `yaml:"pairs"`
	Spread      Spread   `yaml:"spread"`
	Signal      Signal   `yaml:"signal"`
	Analysis    Analysis `yaml:"analysis"`
	Report      Report   `yaml:"report"`
	Parallelism int      `yaml:"parallelism"`
}

// Default mirrors the reference MSFT/AAPL study with the continuous policy.
func Default() *Config {
	return &Config{
		App:      App{Name: "pairbot", Env: "dev", MetricsAddr: ":9102", LogLevel: "info"},
		Provider: Provider{Name: "yahoo", TimeoutSec: 30},
		Pairs: []Pair{
			{TickerA: "MSFT", TickerB: "AAPL", Start: "2018-01-01", End: "2023-01-01"},
		},
		Spread: Spread{Mode: "hedge_adjusted", ZScoreMode: "full", Window: 117, Dependent: "a"},
		Signal: Signal{
			Policy:         "continuous",
			UpperThreshold: 1.18,
			LowerThreshold: -1.0,
			ExitBand:       1.0,
			ScalingFactor:  3.8,
		},
		Analysis: Analysis{
			SignificanceLevel:   0.05,
			AnnualizationFactor: 252,
			MinSamples:          30,
			SharpeStdDev:        "sample",
		},
		Parallelism: 4,
	}
}

// Load reads a YAML file from disk on top of Default.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	config.Pairs = nil
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the fields that do not belong to a single stage. Policy parameters
// are validated by the policy constructors so the error names the right stage.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Pairs) == 0 {
		errs = append(errs, errors.New("no pairs configured"))
	}
	for i, p := range c.Pairs {
		if strings.TrimSpace(p.TickerA) == "" || strings.TrimSpace(p.TickerB) == "" {
			errs = append(errs, fmt.Errorf("pair %d: tickers required", i))
			continue
		}
		if strings.EqualFold(p.TickerA, p.TickerB) {
			errs = append(errs, fmt.Errorf("pair %s: legs must differ", p.Name()))
		}
		start, end, err := p.Range()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !end.After(start) {
			errs = append(errs, fmt.Errorf("pair %s: end %s not after start %s", p.Name(), p.End, p.Start))
		}
	}
	if l := c.Analysis.SignificanceLevel; l <= 0 || l >= 1 {
		errs = append(errs, fmt.Errorf("significance level %v outside (0,1)", l))
	}
	if c.Analysis.AnnualizationFactor <= 0 {
		errs = append(errs, fmt.Errorf("annualization factor %d must be positive", c.Analysis.AnnualizationFactor))
	}
	if c.Analysis.MinSamples < 2 {
		errs = append(errs, fmt.Errorf("min samples %d must be at least 2", c.Analysis.MinSamples))
	}
	if c.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("parallelism %d must not be negative", c.Parallelism))
	}
	return errors.Join(errs...)
}
