package evaluation

import (
	"fmt"
	"strings"
)

// ============================================================================
// TEXT REPORT
// ============================================================================

const reportRule = "============================================================"

// GenerateReport renders an evaluation report as a plain-text block suitable
// for terminals and log attachments.
func GenerateReport(r *Report) string {
	var b strings.Builder

	b.WriteString(reportRule + "\n")
	b.WriteString("STRATEGY EVALUATION REPORT\n")
	b.WriteString(reportRule + "\n")
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	if !r.Success {
		fmt.Fprintf(&b, "Status:    FAILED\nError:     %s\n", r.Error)
		b.WriteString(reportRule + "\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Strategy:  %s\n\n", r.Strategy)

	if r.Metrics != nil {
		writeSegment(&b, "PERFORMANCE", &r.Metrics.SegmentMetrics)
		fmt.Fprintf(&b, "  Kelly Fraction:   %.3f\n", r.Metrics.KellyFraction)

		if rs := r.Metrics.RollingSharpe; rs != nil {
			fmt.Fprintf(&b, "\nROLLING SHARPE (%d-trade window)\n", rs.WindowTrades)
			fmt.Fprintf(&b, "  Min: %.2f   Mean: %.2f   Max: %.2f\n", rs.Min, rs.Mean, rs.Max)
		}
		if mo := r.Metrics.Moments; mo != nil {
			b.WriteString("\nRETURN DISTRIBUTION\n")
			fmt.Fprintf(&b, "  Median: %.4f   Skewness: %.2f   Kurtosis: %.2f\n",
				mo.Median, mo.Skewness, mo.Kurtosis)
		}
		if tiers := r.Metrics.Tiers; tiers != nil {
			b.WriteString("\nVOLATILITY TIERS\n")
			writeTier(&b, "low", tiers.Low)
			writeTier(&b, "mid", tiers.Mid)
			writeTier(&b, "high", tiers.High)
		}
	}

	if wf := r.WalkForward; wf != nil {
		b.WriteString("\nWALK-FORWARD VALIDATION\n")
		if !wf.Success {
			fmt.Fprintf(&b, "  Skipped: %s\n", wf.Error)
		} else {
			fmt.Fprintf(&b, "  Folds: %d   Out-of-sample trades: %d\n", len(wf.Folds), wf.OOSTradeCount)
			for _, f := range wf.Folds {
				fmt.Fprintf(&b, "  #%d  %s -> %s  train sharpe %.2f  test sharpe %.2f (%d trades)\n",
					f.Index,
					f.TrainStart.Format("2006-01-02"),
					f.TestEnd.Format("2006-01-02"),
					f.Train.Sharpe, f.Test.Sharpe, f.Test.TradeCount)
			}
			fmt.Fprintf(&b, "  Aggregate OOS: sharpe %.2f  return %.2f%%  max drawdown %.2f%%\n",
				wf.Aggregate.Sharpe, wf.Aggregate.TotalReturnPct, wf.Aggregate.MaxDrawdownPct)
		}
	}

	if mc := r.MonteCarlo; mc != nil {
		b.WriteString("\nMONTE CARLO SIMULATION\n")
		if !mc.Success {
			fmt.Fprintf(&b, "  Skipped: %s\n", mc.Error)
		} else {
			fmt.Fprintf(&b, "  Trials: %d\n", mc.Trials)
			fmt.Fprintf(&b, "  Return: median %.2f%%  95%% CI [%.2f%%, %.2f%%]\n",
				mc.ReturnMedian, mc.ReturnCILow, mc.ReturnCIHigh)
			fmt.Fprintf(&b, "  Sharpe: median %.2f   95%% CI [%.2f, %.2f]\n",
				mc.SharpeMedian, mc.SharpeCILow, mc.SharpeCIHigh)
			if mc.Unstable {
				fmt.Fprintf(&b, "  UNSTABLE: %s\n", mc.Reason)
			}
		}
	}

	if of := r.Overfitting; of != nil {
		b.WriteString("\nROBUSTNESS\n")
		fmt.Fprintf(&b, "  In-sample Sharpe:     %.2f\n", of.InSampleSharpe)
		fmt.Fprintf(&b, "  Out-of-sample Sharpe: %.2f\n", of.OutSampleSharpe)
		fmt.Fprintf(&b, "  Sharpe drop:          %.2f\n", of.SharpeDrop)
		verdict := "STABLE"
		if !of.IsStable {
			verdict = "NOT STABLE"
		}
		fmt.Fprintf(&b, "  Verdict:              %s\n", verdict)
		fmt.Fprintf(&b, "  Robustness score:     %.1f / 100\n", of.RobustnessScore)
	}

	if cmp := r.Comparison; cmp != nil && len(cmp.Ranking) > 0 {
		b.WriteString("\nRANKING BY ROBUSTNESS\n")
		fmt.Fprintf(&b, "  %-4s %-20s %10s %10s %10s %8s\n",
			"Rank", "Strategy", "Robust", "OOS Sharpe", "IS Sharpe", "Trades")
		for _, row := range cmp.Ranking {
			flag := ""
			if row.Unstable {
				flag = "  unstable"
			}
			fmt.Fprintf(&b, "  %-4d %-20s %10.1f %10.2f %10.2f %8d%s\n",
				row.Rank, row.Strategy, row.RobustnessScore,
				row.OutSampleSharpe, row.InSampleSharpe, row.TotalTrades, flag)
		}
	}

	b.WriteString("\n" + reportRule + "\n")
	return b.String()
}

func writeSegment(b *strings.Builder, title string, m *SegmentMetrics) {
	fmt.Fprintf(b, "%s\n", title)
	fmt.Fprintf(b, "  Trades:           %d\n", m.TradeCount)
	fmt.Fprintf(b, "  Total Return:     %.2f%%\n", m.TotalReturnPct)
	fmt.Fprintf(b, "  Sharpe Ratio:     %.2f\n", m.Sharpe)
	fmt.Fprintf(b, "  Max Drawdown:     %.2f%%\n", m.MaxDrawdownPct)
	fmt.Fprintf(b, "  Win Rate:         %.1f%%\n", m.WinRatePct)
	fmt.Fprintf(b, "  Profit Factor:    %.2f\n", m.ProfitFactor)
	fmt.Fprintf(b, "  Expectancy:       %.2f\n", m.Expectancy)
	fmt.Fprintf(b, "  Volatility:       %.2f%%\n", m.VolatilityPct)
	fmt.Fprintf(b, "  Avg Win / Loss:   %.2f / %.2f\n", m.AvgWin, m.AvgLoss)
}

func writeTier(b *strings.Builder, name string, m *SegmentMetrics) {
	if m == nil {
		fmt.Fprintf(b, "  %-5s (insufficient trades)\n", name)
		return
	}
	fmt.Fprintf(b, "  %-5s trades %-4d sharpe %6.2f  win rate %5.1f%%  expectancy %8.2f\n",
		name, m.TradeCount, m.Sharpe, m.WinRatePct, m.Expectancy)
}
