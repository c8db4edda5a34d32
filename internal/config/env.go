package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment overrides applied on top of the YAML file.
const (
	EnvLogLevel        = "PAIRBOT_LOG_LEVEL"
	EnvMetricsAddr     = "PAIRBOT_METRICS_ADDR"
	EnvProvider        = "PAIRBOT_PROVIDER"
	EnvProviderBaseURL = "PAIRBOT_PROVIDER_BASE_URL"
	EnvProviderDir     = "PAIRBOT_PROVIDER_DIR"
	EnvParallelism     = "PAIRBOT_PARALLELISM"
)

// ApplyEnv loads an optional .env file and copies PAIRBOT_* variables into cfg.
func ApplyEnv(cfg *Config, files ...string) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	_ = godotenv.Load(files...) // best-effort

	override(&cfg.App.LogLevel, EnvLogLevel)
	override(&cfg.App.MetricsAddr, EnvMetricsAddr)
	override(&cfg.Provider.Name, EnvProvider)
	override(&cfg.Provider.BaseURL, EnvProviderBaseURL)
	override(&cfg.Provider.Dir, EnvProviderDir)
	if v := os.Getenv(EnvParallelism); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvParallelism, err)
		}
		cfg.Parallelism = n
	}
	return nil
}

func override(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
