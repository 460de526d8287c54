// Package source loads trade histories for evaluation. A source resolves to
// the same boundary shape the engine normalizes: raw trades keyed by strategy
// name.
package source

import (
	"context"

	"github.com/ajitpratap0/strateval/pkg/evaluation"
)

// Source loads trade histories keyed by strategy name
type Source interface {
	Load(ctx context.Context) (map[string][]evaluation.RawTrade, error)
}
