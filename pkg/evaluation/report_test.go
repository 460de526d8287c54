package evaluation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReport_SingleStrategy(t *testing.T) {
	cfg := comparisonConfig()
	report := Evaluate(map[string][]Trade{"momentum": steadyHistory()}, cfg)

	text := GenerateReport(report)

	assert.Contains(t, text, "STRATEGY EVALUATION REPORT")
	assert.Contains(t, text, "Strategy:  momentum")
	assert.Contains(t, text, "PERFORMANCE")
	assert.Contains(t, text, "WALK-FORWARD VALIDATION")
	assert.Contains(t, text, "MONTE CARLO SIMULATION")
	assert.Contains(t, text, "ROBUSTNESS")
	assert.NotContains(t, text, "FAILED")
	// Single-strategy reports carry no ranking table.
	assert.NotContains(t, text, "RANKING BY ROBUSTNESS")
}

func TestGenerateReport_MultiStrategyRanking(t *testing.T) {
	cfg := comparisonConfig()
	report := Evaluate(map[string][]Trade{
		"steady":  steadyHistory(),
		"churner": churnHistory(),
	}, cfg)

	text := GenerateReport(report)

	require.Contains(t, text, "RANKING BY ROBUSTNESS")

	// Within the table, the robust strategy is listed before the flagged one.
	table := text[strings.Index(text, "RANKING BY ROBUSTNESS"):]
	steadyAt := strings.Index(table, "steady")
	churnerAt := strings.Index(table, "churner")
	require.Positive(t, steadyAt)
	require.Positive(t, churnerAt)
	assert.Less(t, steadyAt, churnerAt)
}

func TestGenerateReport_Failed(t *testing.T) {
	report := Evaluate(map[string][]Trade{}, DefaultConfig())

	text := GenerateReport(report)

	assert.Contains(t, text, "Status:    FAILED")
	assert.Contains(t, text, "no strategies provided")
	assert.NotContains(t, text, "PERFORMANCE")
}

func TestGenerateReport_SkippedStagesNoted(t *testing.T) {
	cfg := comparisonConfig()
	report := Evaluate(map[string][]Trade{"thin": dailyTrades(40, -10, 25)}, cfg)

	text := GenerateReport(report)

	assert.Contains(t, text, "Skipped:")
	assert.Contains(t, text, "WALK-FORWARD VALIDATION")
}
