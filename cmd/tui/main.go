package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"pairbot-go/internal/config"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== PairBot Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit pairs")
		fmt.Println("3) Edit spread and signal")
		fmt.Println("4) Edit analysis settings")
		fmt.Println("5) Save config")
		fmt.Println("6) Run backtest")
		fmt.Println("7) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editPairs(reader, cfg)
		case "3":
			editSignal(reader, cfg)
		case "4":
			editAnalysis(reader, cfg)
		case "5":
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "not saving, config invalid: %v\n", err)
			} else if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "6":
			runBacktest()
		case "7":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Provider: %s\n", cfg.Provider.Name)
	for i, p := range cfg.Pairs {
		fmt.Printf("Pair %d: %s  %s..%s\n", i+1, p.Name(), p.Start, p.End)
	}
	fmt.Printf("Spread: %s, z-score %s (window %d), dependent leg %s\n", cfg.Spread.Mode, cfg.Spread.ZScoreMode, cfg.Spread.Window, cfg.Spread.Dependent)
	switch cfg.Signal.Policy {
	case "threshold":
		fmt.Printf("Signal: threshold upper %.2f lower %.2f exit band %.2f\n", cfg.Signal.UpperThreshold, cfg.Signal.LowerThreshold, cfg.Signal.ExitBand)
	default:
		fmt.Printf("Signal: continuous scaling factor %.2f\n", cfg.Signal.ScalingFactor)
	}
	fmt.Printf("Analysis: significance %.3f, annualization %d, min samples %d, sharpe stddev %s\n",
		cfg.Analysis.SignificanceLevel, cfg.Analysis.AnnualizationFactor, cfg.Analysis.MinSamples, cfg.Analysis.SharpeStdDev)
}

func editPairs(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Pairs ---")
	fmt.Println("Enter pairs as A/B, one per line; blank line to finish (blank first line keeps current).")
	start := promptString(reader, "Start date", firstOr(cfg.Pairs, func(p config.Pair) string { return p.Start }, "2018-01-01"))
	end := promptString(reader, "End date", firstOr(cfg.Pairs, func(p config.Pair) string { return p.End }, "2023-01-01"))

	var pairs []config.Pair
	for {
		fmt.Print("Pair: ")
		line, _ := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		legs := strings.Split(line, "/")
		if len(legs) != 2 || strings.TrimSpace(legs[0]) == "" || strings.TrimSpace(legs[1]) == "" {
			fmt.Println("expected TICKER_A/TICKER_B")
			continue
		}
		pairs = append(pairs, config.Pair{
			TickerA: strings.ToUpper(strings.TrimSpace(legs[0])),
			TickerB: strings.ToUpper(strings.TrimSpace(legs[1])),
			Start:   start,
			End:     end,
		})
	}
	if len(pairs) == 0 {
		for i := range cfg.Pairs {
			cfg.Pairs[i].Start, cfg.Pairs[i].End = start, end
		}
		return
	}
	cfg.Pairs = pairs
}

func editSignal(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Spread / Signal ---")
	cfg.Spread.Mode = promptString(reader, "Spread mode (raw|hedge_adjusted)", cfg.Spread.Mode)
	cfg.Spread.ZScoreMode = promptString(reader, "Z-score mode (full|rolling)", cfg.Spread.ZScoreMode)
	cfg.Spread.Window = int(promptFloat(reader, "Rolling window", float64(cfg.Spread.Window)))
	cfg.Signal.Policy = promptString(reader, "Policy (threshold|continuous)", cfg.Signal.Policy)
	if cfg.Signal.Policy == "threshold" {
		cfg.Signal.UpperThreshold = promptFloat(reader, "Upper threshold", cfg.Signal.UpperThreshold)
		cfg.Signal.LowerThreshold = promptFloat(reader, "Lower threshold", cfg.Signal.LowerThreshold)
		cfg.Signal.ExitBand = promptFloat(reader, "Exit band", cfg.Signal.ExitBand)
		return
	}
	cfg.Signal.ScalingFactor = promptFloat(reader, "Scaling factor", cfg.Signal.ScalingFactor)
}

func editAnalysis(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Analysis ---")
	cfg.Analysis.SignificanceLevel = promptPercent(reader, "Significance level (%)", cfg.Analysis.SignificanceLevel)
	cfg.Analysis.AnnualizationFactor = int(promptFloat(reader, "Annualization factor", float64(cfg.Analysis.AnnualizationFactor)))
	cfg.Analysis.MinSamples = int(promptFloat(reader, "Minimum aligned samples", float64(cfg.Analysis.MinSamples)))
	cfg.Analysis.SharpeStdDev = promptString(reader, "Sharpe stddev (sample|population)", cfg.Analysis.SharpeStdDev)
}

func runBacktest() {
	fmt.Println("Running backtest with the saved config...")
	cmd := exec.CommandContext(context.Background(), "go", "run", "./cmd/backtest", "-config", locateConfig())
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "backtest exited: %v\n", err)
	}
}

func firstOr(pairs []config.Pair, field func(config.Pair) string, fallback string) string {
	if len(pairs) == 0 {
		return fallback
	}
	return field(pairs[0])
}

func promptString(reader *bufio.Reader, label, current string) string {
	fmt.Printf("%s [%s]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	return line
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func promptPercent(reader *bufio.Reader, label string, current float64) float64 {
	pct := promptFloat(reader, label, current*100)
	return pct / 100
}

func loadConfig() (*config.Config, error) {
	return config.Load(locateConfig())
}

func saveConfig(cfg *config.Config) error {
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if filepath.IsAbs(defaultConfigPath) {
		return defaultConfigPath
	}
	return filepath.Clean(defaultConfigPath)
}
