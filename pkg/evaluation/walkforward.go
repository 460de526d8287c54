package evaluation

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ============================================================================
// WALK-FORWARD VALIDATOR
// ============================================================================

// WalkForwardParams configures the rolling train/test partition. All window
// lengths are in calendar days.
type WalkForwardParams struct {
	TrainDays int `json:"train_days" yaml:"train_days" mapstructure:"train_days"`
	TestDays  int `json:"test_days" yaml:"test_days" mapstructure:"test_days"`
	StepDays  int `json:"step_days" yaml:"step_days" mapstructure:"step_days"`

	// MinFoldTrades is the smallest out-of-sample slice a fold may have.
	// Folds below it are skipped by advancing the window.
	MinFoldTrades int `json:"min_fold_trades" yaml:"min_fold_trades" mapstructure:"min_fold_trades"`
}

// Validate checks the walk-forward parameters.
func (p WalkForwardParams) Validate() error {
	if p.TrainDays <= 0 {
		return fmt.Errorf("train_days must be positive, got %d", p.TrainDays)
	}
	if p.TestDays <= 0 {
		return fmt.Errorf("test_days must be positive, got %d", p.TestDays)
	}
	if p.StepDays <= 0 {
		return fmt.Errorf("step_days must be positive, got %d", p.StepDays)
	}
	if p.MinFoldTrades < 0 {
		return fmt.Errorf("min_fold_trades must be >= 0, got %d", p.MinFoldTrades)
	}
	return nil
}

// Fold is one train/test pair. The train window covers [TrainStart, TrainEnd)
// and the test window [TrainEnd, TestEnd), both half-open. Train metrics are
// diagnostic only; nothing downstream scores on them.
type Fold struct {
	Index      int            `json:"index"`
	TrainStart time.Time      `json:"train_start"`
	TrainEnd   time.Time      `json:"train_end"`
	TestEnd    time.Time      `json:"test_end"`
	Train      SegmentMetrics `json:"train"`
	Test       SegmentMetrics `json:"test"`
}

// WalkForwardResult is the outcome of a walk-forward validation. Aggregate is
// computed exclusively from the pooled out-of-sample trades across folds;
// training data never feeds it. Its trade count always equals the sum of the
// folds' test trade counts.
type WalkForwardResult struct {
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
	Folds         []Fold         `json:"folds"`
	Aggregate     SegmentMetrics `json:"oos_aggregate"`
	OOSTradeCount int            `json:"oos_trade_count"`
}

// RunWalkForward partitions the trade history into rolling train/test windows
// and pools out-of-sample results. A history shorter than one train+test span
// yields success=false with an explanatory message and no folds.
func RunWalkForward(trades []Trade, params WalkForwardParams, initialCapital, riskFreeRate float64) WalkForwardResult {
	timed := sortedByTime(trades)
	if len(timed) == 0 {
		return WalkForwardResult{
			Success: false,
			Error:   "walk-forward requires trades with parseable timestamps",
		}
	}

	first := timed[0].Timestamp
	last := timed[len(timed)-1].Timestamp
	spanDays := last.Sub(first).Hours() / 24
	required := params.TrainDays + params.TestDays

	if first.AddDate(0, 0, required).After(last) {
		return WalkForwardResult{
			Success: false,
			Error: fmt.Sprintf("trade history spans %.1f days, walk-forward needs at least %d (train %d + test %d)",
				spanDays, required, params.TrainDays, params.TestDays),
		}
	}

	minFold := params.MinFoldTrades
	if minFold < 1 {
		minFold = 1
	}

	result := WalkForwardResult{Success: true}
	var pooled []Trade
	skipped := 0

	// The test window may overshoot the last trade by one day before the
	// partition stops.
	limit := last.AddDate(0, 0, 1)

	for trainStart := first; ; trainStart = trainStart.AddDate(0, 0, params.StepDays) {
		trainEnd := trainStart.AddDate(0, 0, params.TrainDays)
		testEnd := trainEnd.AddDate(0, 0, params.TestDays)
		if testEnd.After(limit) {
			break
		}

		trainSlice := tradesInWindow(timed, trainStart, trainEnd)
		testSlice := tradesInWindow(timed, trainEnd, testEnd)

		if len(testSlice) < minFold {
			skipped++
			continue
		}

		fold := Fold{
			Index:      len(result.Folds) + 1,
			TrainStart: trainStart,
			TrainEnd:   trainEnd,
			TestEnd:    testEnd,
			Train:      ComputeSegmentMetrics(trainSlice, fmt.Sprintf("fold_%d_train", len(result.Folds)+1), initialCapital, riskFreeRate),
			Test:       ComputeSegmentMetrics(testSlice, fmt.Sprintf("fold_%d_test", len(result.Folds)+1), initialCapital, riskFreeRate),
		}
		result.Folds = append(result.Folds, fold)
		pooled = append(pooled, testSlice...)
	}

	result.Aggregate = ComputeSegmentMetrics(pooled, "out_of_sample", initialCapital, riskFreeRate)
	result.OOSTradeCount = len(pooled)

	log.Info().
		Int("folds", len(result.Folds)).
		Int("skipped_windows", skipped).
		Int("oos_trades", result.OOSTradeCount).
		Float64("oos_sharpe", result.Aggregate.Sharpe).
		Msg("Walk-forward validation complete")

	return result
}

// tradesInWindow returns the trades whose timestamp falls in [from, to).
// The input must already be time-ordered.
func tradesInWindow(timed []Trade, from, to time.Time) []Trade {
	var out []Trade
	for _, t := range timed {
		if t.Timestamp.Before(from) {
			continue
		}
		if !t.Timestamp.Before(to) {
			break
		}
		out = append(out, t)
	}
	return out
}
