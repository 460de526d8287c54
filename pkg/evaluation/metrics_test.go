package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStart anchors generated trade histories.
var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// dailyTrades builds one trade per day starting at testStart, with the given
// PnL sequence.
func dailyTrades(pnls ...float64) []Trade {
	trades := make([]Trade, len(pnls))
	for i, p := range pnls {
		trades[i] = Trade{Timestamp: testStart.AddDate(0, 0, i), PnL: p}
	}
	return trades
}

// repeat returns n copies of v.
func repeat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// alternating returns n values cycling through the given pair.
func alternating(n int, a, b float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = a
		} else {
			out[i] = b
		}
	}
	return out
}

func TestComputeSegmentMetrics_ConstantWins(t *testing.T) {
	// 10 trades of +100 on 10,000 starting capital: every per-trade return is
	// exactly 1%, so the zero-std rule pins Sharpe to 0, and the equity curve
	// ends at 11,000 for a 10% total return.
	trades := dailyTrades(repeat(10, 100)...)

	m := ComputeSegmentMetrics(trades, "full", 10000, 0.04)

	assert.Equal(t, 10, m.TradeCount)
	assert.Equal(t, 0.0, m.Sharpe)
	assert.InDelta(t, 10.0, m.TotalReturnPct, 0.0001)
	assert.InDelta(t, 100.0, m.WinRatePct, 0.0001)
	assert.Equal(t, 0.0, m.MaxDrawdownPct)
	assert.Equal(t, 0.0, m.VolatilityPct)
}

func TestComputeSegmentMetrics_WinLossAggregates(t *testing.T) {
	// 5 wins of +50 and 5 losses of -20:
	// win rate = 50%, avg win = 50, avg loss = 20,
	// profit factor = 250/100 = 2.5,
	// expectancy = 0.5*50 - 0.5*20 = 15.
	trades := dailyTrades(alternating(10, 50, -20)...)

	m := ComputeSegmentMetrics(trades, "full", 10000, 0)

	assert.InDelta(t, 50.0, m.WinRatePct, 0.0001)
	assert.InDelta(t, 50.0, m.AvgWin, 0.0001)
	assert.InDelta(t, 20.0, m.AvgLoss, 0.0001)
	assert.InDelta(t, 2.5, m.ProfitFactor, 0.0001)
	assert.InDelta(t, 15.0, m.Expectancy, 0.0001)
	// Net +150 on 10,000.
	assert.InDelta(t, 1.5, m.TotalReturnPct, 0.0001)
}

func TestComputeSegmentMetrics_ProfitFactorSentinel(t *testing.T) {
	// No losing trades: profit factor must stay finite.
	trades := dailyTrades(10, 20, 30)

	m := ComputeSegmentMetrics(trades, "full", 10000, 0)

	assert.Equal(t, profitFactorSentinel, m.ProfitFactor)
	assert.False(t, m.ProfitFactor > profitFactorSentinel)
}

func TestComputeSegmentMetrics_Empty(t *testing.T) {
	m := ComputeSegmentMetrics(nil, "full", 10000, 0)

	assert.Equal(t, 0, m.TradeCount)
	assert.Equal(t, 0.0, m.Sharpe)
	assert.Equal(t, 0.0, m.ProfitFactor)
	assert.Equal(t, 0.0, m.TotalReturnPct)
}

func TestComputeSegmentMetrics_MaxDrawdown(t *testing.T) {
	// Equity walks 10000 -> 10500 -> 9500 -> 10000: peak 10500, trough 9500,
	// drawdown = 1000/10500 = 9.5238%.
	trades := dailyTrades(500, -1000, 500)

	m := ComputeSegmentMetrics(trades, "full", 10000, 0)

	assert.InDelta(t, 9.5238, m.MaxDrawdownPct, 0.001)
}

func TestComputeSegmentMetrics_UntimedTradesCountedInAggregates(t *testing.T) {
	// Two timed winners plus two untimed losers: the losers stay out of the
	// equity curve but still count in win/loss statistics.
	trades := dailyTrades(100, 100)
	trades = append(trades, Trade{PnL: -50}, Trade{PnL: -50})

	m := ComputeSegmentMetrics(trades, "full", 10000, 0)

	assert.Equal(t, 4, m.TradeCount)
	assert.InDelta(t, 50.0, m.WinRatePct, 0.0001)
	assert.InDelta(t, 50.0, m.AvgLoss, 0.0001)
	// Only the timed trades feed the equity curve: +200 on 10,000.
	assert.InDelta(t, 2.0, m.TotalReturnPct, 0.0001)
}

func TestComputeStrategyMetrics_RollingSharpe(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RollingWindowTrades = 5
	trades := dailyTrades(alternating(30, 80, -30)...)

	sm := ComputeStrategyMetrics(trades, "momentum", cfg)

	require.NotNil(t, sm.RollingSharpe)
	assert.Equal(t, 5, sm.RollingSharpe.WindowTrades)
	assert.LessOrEqual(t, sm.RollingSharpe.Min, sm.RollingSharpe.Mean)
	assert.LessOrEqual(t, sm.RollingSharpe.Mean, sm.RollingSharpe.Max)
}

func TestComputeStrategyMetrics_RollingSharpeNeedsFullWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RollingWindowTrades = 50

	sm := ComputeStrategyMetrics(dailyTrades(repeat(10, 25)...), "momentum", cfg)

	assert.Nil(t, sm.RollingSharpe)
}

func TestComputeStrategyMetrics_MomentsRequireFourReturns(t *testing.T) {
	cfg := DefaultConfig()

	three := ComputeStrategyMetrics(dailyTrades(10, -5, 15), "m", cfg)
	assert.Nil(t, three.Moments)

	four := ComputeStrategyMetrics(dailyTrades(10, -5, 15, 20), "m", cfg)
	require.NotNil(t, four.Moments)
	// Returns: 0.001, -0.0005, 0.0015, 0.002 -> median = (0.001+0.0015)/2.
	assert.InDelta(t, 0.00125, four.Moments.Median, 1e-9)
}

func TestComputeStrategyMetrics_VolatilityTiers(t *testing.T) {
	cfg := DefaultConfig()

	// Three trades per tier, separated by explicit percentage returns.
	var trades []Trade
	for i, pct := range []float64{1, 1, 1, 5, 5, 5, 10, 10, 10} {
		trades = append(trades, Trade{
			Timestamp: testStart.AddDate(0, 0, i),
			PnL:       pct * 10,
			PctReturn: pct,
		})
	}

	sm := ComputeStrategyMetrics(trades, "tiered", cfg)

	require.NotNil(t, sm.Tiers)
	require.NotNil(t, sm.Tiers.Low)
	require.NotNil(t, sm.Tiers.Mid)
	require.NotNil(t, sm.Tiers.High)
	assert.Equal(t, 3, sm.Tiers.Low.TradeCount)
	assert.Equal(t, 3, sm.Tiers.Mid.TradeCount)
	assert.Equal(t, 3, sm.Tiers.High.TradeCount)
	assert.Equal(t, "volatility_low", sm.Tiers.Low.Label)
}

func TestComputeStrategyMetrics_TiersOmittedWhenThin(t *testing.T) {
	cfg := DefaultConfig()

	sm := ComputeStrategyMetrics(dailyTrades(10, -5), "thin", cfg)

	assert.Nil(t, sm.Tiers)
}

func TestKellyFraction(t *testing.T) {
	tests := []struct {
		name     string
		winProb  float64
		avgWin   float64
		avgLoss  float64
		expected float64
	}{
		// 50% wins at 2.5x payoff: 0.5 - 0.5/2.5 = 0.3.
		{"favorable", 0.5, 50, 20, 0.3},
		// Even odds, even payoff: no edge.
		{"no edge", 0.5, 20, 20, 0},
		{"no losses recorded", 0.6, 50, 0, 0},
		{"never wins", 0, 0, 20, 0},
		// Strong edge clamps into [0,1].
		{"clamped", 0.99, 1000, 1, 0.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, kellyFraction(tt.winProb, tt.avgWin, tt.avgLoss), 0.0001)
		})
	}
}
