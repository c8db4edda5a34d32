package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"pairbot-go/internal/config"
	"pairbot-go/internal/history"
	"pairbot-go/internal/metrics"
	"pairbot-go/internal/pipeline"
	"pairbot-go/internal/report"
	"pairbot-go/internal/util"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "internal/config/config.yaml", "path to the YAML config")
	envFile := flag.String("env", ".env", "optional dotenv file")
	hold := flag.Duration("hold", 0, "keep the websocket stream open this long after the run")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if err := config.ApplyEnv(cfg, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "apply env: %v\n", err)
		return 1
	}
	log := util.NewLogger(cfg.App.LogLevel, os.Stdout, cfg.App.PrettyLogs)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := history.New(cfg.Provider, log)
	if err != nil {
		log.Fatal().Err(err).Msg("history provider")
	}

	collector := report.NewCollector(len(cfg.Pairs))
	sinks := report.Multi{report.NewConsole(log), collector}
	if cfg.Report.JSONLPath != "" {
		jsonl, err := report.NewJSONL(cfg.Report.JSONLPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Report.JSONLPath).Msg("open jsonl sink")
		}
		defer jsonl.Close()
		sinks = append(sinks, jsonl)
	}
	var hub *report.Hub
	if cfg.Report.WSAddr != "" {
		hub = report.NewHub(log)
		srv := report.Serve(cfg.Report.WSAddr, hub)
		defer srv.Close()
		defer hub.Close()
		sinks = append(sinks, hub)
		log.Info().Str("addr", cfg.Report.WSAddr).Msg("report stream up")
	}

	log.Info().
		Str("provider", provider.Name()).
		Int("pairs", len(cfg.Pairs)).
		Str("policy", cfg.Signal.Policy).
		Msg("backtest started")

	outcomes, err := pipeline.RunPairs(ctx, provider, cfg, log)
	if err != nil && len(outcomes) == 0 {
		log.Fatal().Err(err).Msg("backtest aborted")
	}

	for _, o := range outcomes {
		if err := sinks.Publish(ctx, report.FromOutcome(o)); err != nil {
			log.Warn().Err(err).Str("pair", o.Pair.Name()).Msg("report delivery failed")
		}
	}
	ok, failed := collector.Summary()
	log.Info().Int("ok", ok).Int("failed", failed).Msg("backtest finished")

	if hub != nil && *hold > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(*hold):
		}
	}
	if failed > 0 {
		return 2
	}
	return 0
}
