package evaluation

import (
	"math"

	"github.com/rs/zerolog/log"
)

// ============================================================================
// METRIC RECORDS
// ============================================================================

const (
	// profitFactorSentinel stands in for an infinite profit factor (no losing
	// trades) so that results stay finite and serializable.
	profitFactorSentinel = 999.0

	// minTierTrades is the smallest volatility tier worth reporting.
	minTierTrades = 3

	// minMomentReturns is the smallest return sample for which distribution
	// moments are reported.
	minMomentReturns = 4
)

// SegmentMetrics holds the performance statistics of one analyzed slice of
// trades: the full period, a walk-forward fold, or a volatility tier. Computed
// fresh on every call and never mutated afterwards.
type SegmentMetrics struct {
	Label          string  `json:"label,omitempty"`
	TradeCount     int     `json:"trade_count"`
	Sharpe         float64 `json:"sharpe"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	ProfitFactor   float64 `json:"profit_factor"`
	WinRatePct     float64 `json:"win_rate_pct"`
	Expectancy     float64 `json:"expectancy"`
	TotalReturnPct float64 `json:"total_return_pct"`
	VolatilityPct  float64 `json:"volatility_pct"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
}

// RollingSharpeStats summarizes the Sharpe ratio over every sliding window of
// WindowTrades consecutive trades.
type RollingSharpeStats struct {
	WindowTrades int     `json:"window_trades"`
	Min          float64 `json:"min"`
	Mean         float64 `json:"mean"`
	Max          float64 `json:"max"`
}

// ReturnMoments describes the shape of the per-trade return distribution.
type ReturnMoments struct {
	Median   float64 `json:"median"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
}

// VolatilityTiers holds segment metrics for trades bucketed by absolute
// implied return. A nil tier had fewer trades than minTierTrades.
type VolatilityTiers struct {
	Low  *SegmentMetrics `json:"low,omitempty"`
	Mid  *SegmentMetrics `json:"mid,omitempty"`
	High *SegmentMetrics `json:"high,omitempty"`
}

// StrategyMetrics is the full metric record for one strategy: full-period
// segment metrics plus the rolling-Sharpe summary, return-distribution
// moments, and volatility-tier breakdown where enough data exists.
type StrategyMetrics struct {
	Strategy string `json:"strategy"`
	SegmentMetrics

	RollingSharpe *RollingSharpeStats `json:"rolling_sharpe,omitempty"`
	Moments       *ReturnMoments      `json:"return_moments,omitempty"`
	Tiers         *VolatilityTiers    `json:"volatility_tiers,omitempty"`

	// KellyFraction is the sizing fraction implied by win rate and the
	// win/loss ratio, clamped to [0,1].
	KellyFraction float64 `json:"kelly_fraction"`
}

// ============================================================================
// METRICS ENGINE
// ============================================================================

// buildReturns derives the per-trade return series and the parallel equity
// curve from time-ordered trades. Returns are measured against the starting
// capital base, so a constant PnL stream produces a genuinely zero-variance
// return series; the equity curve compounds from initialCapital for total
// return and drawdown.
func buildReturns(timed []Trade, initialCapital float64) ([]float64, []float64) {
	if initialCapital <= 0 {
		return nil, nil
	}

	returns := make([]float64, 0, len(timed))
	equity := initialCapital
	curve := make([]float64, 0, len(timed)+1)
	curve = append(curve, equity)

	for _, t := range timed {
		returns = append(returns, t.PnL/initialCapital)
		equity += t.PnL
		curve = append(curve, equity)
	}

	return returns, curve
}

// ComputeSegmentMetrics computes the flat performance record for a slice of
// trades. Win/loss aggregates count every trade; time-ordered statistics
// (returns, drawdown, Sharpe) use only trades with a parseable timestamp.
func ComputeSegmentMetrics(trades []Trade, label string, initialCapital, riskFreeRate float64) SegmentMetrics {
	m := SegmentMetrics{
		Label:      label,
		TradeCount: len(trades),
	}
	if len(trades) == 0 {
		return m
	}

	var wins, losses int
	var grossProfit, grossLoss float64
	for _, t := range trades {
		switch {
		case t.PnL > 0:
			wins++
			grossProfit += t.PnL
		case t.PnL < 0:
			losses++
			grossLoss += -t.PnL
		}
	}

	n := float64(len(trades))
	m.WinRatePct = float64(wins) / n * 100
	if wins > 0 {
		m.AvgWin = grossProfit / float64(wins)
	}
	if losses > 0 {
		m.AvgLoss = grossLoss / float64(losses)
	}

	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		m.ProfitFactor = profitFactorSentinel
	}

	m.Expectancy = float64(wins)/n*m.AvgWin - float64(losses)/n*m.AvgLoss

	timed := sortedByTime(trades)
	returns, curve := buildReturns(timed, initialCapital)

	if len(curve) > 1 {
		m.TotalReturnPct = (curve[len(curve)-1] - initialCapital) / initialCapital * 100
	}
	m.MaxDrawdownPct = maxDrawdownPct(curve)
	m.Sharpe = annualizedSharpe(returns, riskFreeRate)
	m.VolatilityPct = sampleStdDev(returns) * math.Sqrt(tradingDaysPerYear) * 100

	return m
}

// ComputeStrategyMetrics computes the full metric record for one strategy.
// The rolling-Sharpe summary needs at least one full window of returns, the
// distribution moments at least minMomentReturns, and each volatility tier at
// least minTierTrades trades; anything below those thresholds is omitted
// rather than reported as noise.
func ComputeStrategyMetrics(trades []Trade, strategy string, cfg Config) StrategyMetrics {
	full := ComputeSegmentMetrics(trades, "full", cfg.InitialCapital, cfg.RiskFreeRate)
	sm := StrategyMetrics{
		Strategy:       strategy,
		SegmentMetrics: full,
		KellyFraction:  kellyFraction(full.WinRatePct/100, full.AvgWin, full.AvgLoss),
	}

	timed := sortedByTime(trades)
	returns, _ := buildReturns(timed, cfg.InitialCapital)

	if cfg.RollingWindowTrades >= 2 && len(returns) >= cfg.RollingWindowTrades {
		sm.RollingSharpe = rollingSharpe(returns, cfg.RollingWindowTrades, cfg.RiskFreeRate)
	}

	if len(returns) >= minMomentReturns {
		sm.Moments = &ReturnMoments{
			Median:   median(returns),
			Skewness: skewness(returns),
			Kurtosis: kurtosis(returns),
		}
	}

	sm.Tiers = volatilityTiers(trades, cfg)

	log.Debug().
		Str("strategy", strategy).
		Int("trades", full.TradeCount).
		Float64("sharpe", full.Sharpe).
		Float64("total_return_pct", full.TotalReturnPct).
		Float64("max_drawdown_pct", full.MaxDrawdownPct).
		Msg("Computed strategy metrics")

	return sm
}

// rollingSharpe computes the annualized Sharpe over every sliding window of
// the return series and summarizes min/mean/max.
func rollingSharpe(returns []float64, window int, riskFreeRate float64) *RollingSharpeStats {
	count := len(returns) - window + 1
	values := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		values = append(values, annualizedSharpe(returns[i:i+window], riskFreeRate))
	}

	stats := &RollingSharpeStats{
		WindowTrades: window,
		Min:          values[0],
		Max:          values[0],
		Mean:         mean(values),
	}
	for _, v := range values[1:] {
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
	}
	return stats
}

// impliedReturnPct estimates a trade's percentage return for volatility
// ranking: the explicit percentage return when present, else PnL over
// notional, else PnL over the account's starting capital.
func impliedReturnPct(t Trade, initialCapital float64) float64 {
	if t.PctReturn != 0 {
		return t.PctReturn
	}
	if t.Notional > 0 {
		return t.PnL / t.Notional * 100
	}
	if initialCapital > 0 {
		return t.PnL / initialCapital * 100
	}
	return 0
}

// volatilityTiers ranks trades by absolute implied return, splits them at the
// configured percentiles, and computes segment metrics for every tier with
// enough trades. Tier metrics go through the same pure segment computation,
// which performs no further rolling or tier work, so this never recurses.
func volatilityTiers(trades []Trade, cfg Config) *VolatilityTiers {
	if len(trades) < minTierTrades {
		return nil
	}

	absReturns := make([]float64, len(trades))
	for i, t := range trades {
		absReturns[i] = math.Abs(impliedReturnPct(t, cfg.InitialCapital))
	}
	lowCut := percentile(absReturns, cfg.VolTierLowPct)
	highCut := percentile(absReturns, cfg.VolTierHighPct)

	var low, mid, high []Trade
	for i, t := range trades {
		switch {
		case absReturns[i] <= lowCut:
			low = append(low, t)
		case absReturns[i] <= highCut:
			mid = append(mid, t)
		default:
			high = append(high, t)
		}
	}

	tiers := &VolatilityTiers{}
	populated := false
	if len(low) >= minTierTrades {
		m := ComputeSegmentMetrics(low, "volatility_low", cfg.InitialCapital, cfg.RiskFreeRate)
		tiers.Low = &m
		populated = true
	}
	if len(mid) >= minTierTrades {
		m := ComputeSegmentMetrics(mid, "volatility_mid", cfg.InitialCapital, cfg.RiskFreeRate)
		tiers.Mid = &m
		populated = true
	}
	if len(high) >= minTierTrades {
		m := ComputeSegmentMetrics(high, "volatility_high", cfg.InitialCapital, cfg.RiskFreeRate)
		tiers.High = &m
		populated = true
	}

	if !populated {
		return nil
	}
	return tiers
}

// kellyFraction derives a position-sizing fraction from the win probability
// and the average win/loss ratio, clamped to [0,1]. Degenerate inputs yield 0.
func kellyFraction(winProb, avgWin, avgLoss float64) float64 {
	if winProb <= 0 || avgWin <= 0 || avgLoss <= 0 {
		return 0
	}
	ratio := avgWin / avgLoss
	return clamp(winProb-(1-winProb)/ratio, 0, 1)
}
