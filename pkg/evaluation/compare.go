package evaluation

import (
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ============================================================================
// STRATEGY COMPARATOR
// ============================================================================

// StrategyEvaluation bundles every stage's output for one strategy.
type StrategyEvaluation struct {
	Metrics     StrategyMetrics   `json:"metrics"`
	WalkForward WalkForwardResult `json:"walk_forward"`
	MonteCarlo  MonteCarloResult  `json:"monte_carlo"`
	Overfitting OverfitResult     `json:"overfitting"`
}

// StrategyRow is one line of the robustness ranking table.
type StrategyRow struct {
	Strategy        string  `json:"strategy"`
	InSampleSharpe  float64 `json:"in_sample_sharpe"`
	OutSampleSharpe float64 `json:"out_of_sample_sharpe"`
	RobustnessScore float64 `json:"robustness_score"`
	Unstable        bool    `json:"unstable"`
	OOSTradeCount   int     `json:"oos_trade_count"`
	TotalTrades     int     `json:"total_trades"`
	Rank            int     `json:"rank"`
}

// ComparisonResult holds the per-strategy evaluations and the ranking table,
// sorted descending by robustness score with out-of-sample Sharpe as the
// tiebreaker.
type ComparisonResult struct {
	Strategies map[string]*StrategyEvaluation `json:"strategies"`
	Ranking    []StrategyRow                  `json:"ranking_by_robustness"`
}

// CompareStrategies runs the full evaluation pipeline for every strategy and
// ranks them by robustness. Strategies are processed in sorted-name order so
// runs are reproducible; the per-strategy pipelines are independent and fan
// out over a bounded worker group.
func CompareStrategies(strategies map[string][]Trade, cfg Config) ComparisonResult {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)

	evals := make([]*StrategyEvaluation, len(names))

	var g errgroup.Group
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for i, name := range names {
		g.Go(func() error {
			evals[i] = evaluateStrategy(name, strategies[name], cfg)
			return nil
		})
	}
	// Workers never return errors; results land in distinct slice slots.
	_ = g.Wait()

	result := ComparisonResult{
		Strategies: make(map[string]*StrategyEvaluation, len(names)),
	}
	for i, name := range names {
		ev := evals[i]
		result.Strategies[name] = ev

		row := StrategyRow{
			Strategy:        name,
			InSampleSharpe:  ev.Overfitting.InSampleSharpe,
			OutSampleSharpe: ev.Overfitting.OutSampleSharpe,
			RobustnessScore: ev.Overfitting.RobustnessScore,
			Unstable:        !ev.Overfitting.IsStable || (ev.MonteCarlo.Success && ev.MonteCarlo.Unstable),
			OOSTradeCount:   ev.WalkForward.OOSTradeCount,
			TotalTrades:     ev.Metrics.TradeCount,
		}
		result.Ranking = append(result.Ranking, row)
	}

	rankRows(result.Ranking)

	if len(result.Ranking) > 0 {
		best := result.Ranking[0]
		log.Info().
			Int("strategies", len(names)).
			Str("best_strategy", best.Strategy).
			Float64("best_robustness", best.RobustnessScore).
			Msg("Strategy comparison complete")
	}

	return result
}

// rankRows sorts the ranking table descending by (robustness score,
// out-of-sample Sharpe) and assigns dense 1-based ranks; rows with equal keys
// share a rank. Strategies with no trades always sort last.
func rankRows(rows []StrategyRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if (rows[i].TotalTrades == 0) != (rows[j].TotalTrades == 0) {
			return rows[j].TotalTrades == 0
		}
		if rows[i].RobustnessScore != rows[j].RobustnessScore {
			return rows[i].RobustnessScore > rows[j].RobustnessScore
		}
		if rows[i].OutSampleSharpe != rows[j].OutSampleSharpe {
			return rows[i].OutSampleSharpe > rows[j].OutSampleSharpe
		}
		return rows[i].Strategy < rows[j].Strategy
	})

	rank := 0
	for i := range rows {
		if i == 0 ||
			rows[i].RobustnessScore != rows[i-1].RobustnessScore ||
			rows[i].OutSampleSharpe != rows[i-1].OutSampleSharpe {
			rank++
		}
		rows[i].Rank = rank
	}
}
