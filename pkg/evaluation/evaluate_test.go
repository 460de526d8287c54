package evaluation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_NoStrategies(t *testing.T) {
	report := Evaluate(map[string][]Trade{}, DefaultConfig())

	require.NotNil(t, report)
	assert.False(t, report.Success)
	assert.Equal(t, "no strategies provided", report.Error)
	assert.Nil(t, report.Metrics)
	assert.Nil(t, report.Comparison)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestEvaluate_SingleStrategy(t *testing.T) {
	cfg := comparisonConfig()

	report := Evaluate(map[string][]Trade{"momentum": steadyHistory()}, cfg)

	require.NotNil(t, report)
	assert.True(t, report.Success)
	assert.Equal(t, "momentum", report.Strategy)
	require.NotNil(t, report.Metrics)
	require.NotNil(t, report.WalkForward)
	require.NotNil(t, report.MonteCarlo)
	require.NotNil(t, report.Overfitting)
	// Single-strategy reports stay flat.
	assert.Nil(t, report.Comparison)

	assert.Equal(t, "momentum", report.Metrics.Strategy)
	assert.Equal(t, 240, report.Metrics.TradeCount)
	assert.True(t, report.WalkForward.Success)
	assert.True(t, report.MonteCarlo.Success)
}

func TestEvaluate_ShortHistoryDegradesGracefully(t *testing.T) {
	cfg := comparisonConfig()

	// Five days of history: walk-forward cannot run, everything else can.
	report := Evaluate(map[string][]Trade{"scalper": dailyTrades(40, -10, 25, 60, -5)}, cfg)

	require.NotNil(t, report)
	assert.True(t, report.Success)
	assert.False(t, report.WalkForward.Success)
	assert.NotEmpty(t, report.WalkForward.Error)
	assert.True(t, report.MonteCarlo.Success)
	require.NotNil(t, report.Overfitting)
	// No out-of-sample evidence: the guard sees a zero OOS Sharpe.
	assert.Equal(t, 0.0, report.Overfitting.OutSampleSharpe)
}

func TestEvaluate_MultiStrategy(t *testing.T) {
	cfg := comparisonConfig()

	report := Evaluate(map[string][]Trade{
		"steady":  steadyHistory(),
		"churner": churnHistory(),
	}, cfg)

	require.NotNil(t, report)
	assert.True(t, report.Success)
	require.NotNil(t, report.Comparison)
	assert.Len(t, report.Comparison.Ranking, 2)

	// The flat fields mirror the first strategy in name order, not the
	// best-ranked one.
	assert.Equal(t, "churner", report.Strategy)
	require.NotNil(t, report.Metrics)
	assert.Equal(t, "churner", report.Metrics.Strategy)
	assert.Equal(t, report.Comparison.Strategies["churner"].Metrics, *report.Metrics)
}

func TestEvaluate_UntimedTradesOnly(t *testing.T) {
	cfg := comparisonConfig()

	trades := []Trade{{PnL: 100}, {PnL: -40}, {PnL: 60}}
	report := Evaluate(map[string][]Trade{"journal": trades}, cfg)

	require.NotNil(t, report)
	assert.True(t, report.Success)
	assert.Equal(t, 3, report.Metrics.TradeCount)
	// Nothing carries a timestamp, so time-based validation cannot run.
	assert.False(t, report.WalkForward.Success)
	// Monte Carlo only needs the PnL sequence.
	assert.True(t, report.MonteCarlo.Success)
}

func TestReportJSONRoundTrip(t *testing.T) {
	cfg := comparisonConfig()
	report := Evaluate(map[string][]Trade{"momentum": steadyHistory()}, cfg)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"success":true`)
	assert.Contains(t, string(data), `"strategy":"momentum"`)

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.Success, decoded.Success)
	assert.Equal(t, report.Strategy, decoded.Strategy)
	assert.InDelta(t, report.Metrics.Sharpe, decoded.Metrics.Sharpe, 1e-9)
}
