// Strategy evaluation CLI
// Evaluates closed-trade logs offline, without the API server or any backing
// service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/strateval/internal/config"
	"github.com/ajitpratap0/strateval/internal/source"
	"github.com/ajitpratap0/strateval/pkg/evaluation"
)

var (
	// Input
	configPath = flag.String("config", "", "Path to config file (default: ./configs/config.yaml)")
	tradesFile = flag.String("trades", "", "Path to JSON trades file (required)")
	strategy   = flag.String("strategy", "", "Strategy name for a bare trade array")

	// Engine overrides
	seed = flag.Int64("seed", 0, "Random seed override (0 keeps the configured seed)")

	// Output
	format      = flag.String("format", "text", "Output format (text, json)")
	outputFile  = flag.String("output", "", "Output file for the report (optional)")
	writeConfig = flag.String("write-config", "", "Write the default config as YAML to this path and exit")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if *writeConfig != "" {
		if err := writeDefaultConfig(*writeConfig); err != nil {
			log.Fatal().Err(err).Msg("Failed to write default config")
		}
		log.Info().Str("file", *writeConfig).Msg("Default config written")
		return
	}

	// Validate required flags
	if *tradesFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -trades flag is required")
		flag.Usage()
		os.Exit(1)
	}

	if *format != "text" && *format != "json" {
		fmt.Fprintf(os.Stderr, "Error: unknown format %q (available: text, json)\n", *format)
		flag.Usage()
		os.Exit(1)
	}

	if err := run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Evaluation failed")
	}
}

func run(ctx context.Context) error {
	// Engine settings come from the application config so CLI runs and API
	// runs of the same trades agree.
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	evalCfg := cfg.Evaluation
	if *seed != 0 {
		evalCfg.Seed = *seed
	}
	if err := evalCfg.Validate(); err != nil {
		return fmt.Errorf("invalid evaluation config: %w", err)
	}

	raw, err := source.NewFileSource(*tradesFile, *strategy).Load(ctx)
	if err != nil {
		return err
	}

	strategies := make(map[string][]evaluation.Trade, len(raw))
	total := 0
	for name, trades := range raw {
		normalized := evaluation.NormalizeTrades(trades)
		strategies[name] = normalized
		total += len(normalized)
	}

	log.Info().
		Int("strategies", len(strategies)).
		Int("trades", total).
		Int64("seed", evalCfg.Seed).
		Msg("Starting evaluation")

	report := evaluation.Evaluate(strategies, evalCfg)
	if !report.Success {
		return fmt.Errorf("evaluation failed: %s", report.Error)
	}

	var out []byte
	switch *format {
	case "json":
		out, err = json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
	default:
		out = []byte(evaluation.GenerateReport(report))
	}

	// Write to output file if specified, otherwise print
	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, out, 0644); err != nil {
			return fmt.Errorf("failed to write output file %s: %w", *outputFile, err)
		}
		log.Info().Str("file", *outputFile).Msg("Report written to file")
		return nil
	}

	fmt.Println(string(out))
	return nil
}

func writeDefaultConfig(path string) error {
	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}
