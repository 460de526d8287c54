package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/strateval/pkg/evaluation"
)

// FileSource reads trade histories from a JSON file. The file is either an
// object keyed by strategy name or a bare array of trades; a bare array is
// assigned to the configured fallback strategy.
type FileSource struct {
	path     string
	strategy string
}

// NewFileSource creates a file source. The strategy name is used only when
// the file holds a bare trade array; empty falls back to "default".
func NewFileSource(path, strategy string) *FileSource {
	if strategy == "" {
		strategy = "default"
	}
	return &FileSource{path: path, strategy: strategy}
}

// Load reads and decodes the trades file
func (s *FileSource) Load(ctx context.Context) (map[string][]evaluation.RawTrade, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trades file: %w", err)
	}

	strategies, err := decodeTrades(data, s.strategy)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trades file %s: %w", s.path, err)
	}

	total := 0
	for _, trades := range strategies {
		total += len(trades)
	}
	log.Debug().
		Str("path", s.path).
		Int("strategies", len(strategies)).
		Int("trades", total).
		Msg("Trades file loaded")

	return strategies, nil
}

// decodeTrades accepts either an object keyed by strategy or a bare array
func decodeTrades(data []byte, fallbackStrategy string) (map[string][]evaluation.RawTrade, error) {
	var keyed map[string][]evaluation.RawTrade
	if err := json.Unmarshal(data, &keyed); err == nil {
		return keyed, nil
	}

	var flat []evaluation.RawTrade
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("expected an object keyed by strategy or an array of trades")
	}

	return map[string][]evaluation.RawTrade{fallbackStrategy: flat}, nil
}
