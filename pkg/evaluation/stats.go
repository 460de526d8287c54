package evaluation

import (
	"math"
	"sort"
)

// tradingDaysPerYear is the annualization base for Sharpe and volatility.
const tradingDaysPerYear = 252

// ============================================================================
// DESCRIPTIVE STATISTICS
// ============================================================================

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev returns the sample (n-1) standard deviation, 0 for fewer than
// two values.
func sampleStdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

func median(values []float64) float64 {
	return percentile(values, 50)
}

// percentile returns the p-th percentile (0-100) using linear interpolation
// between closest ranks. The input is not modified.
func percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}

	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// skewness returns the population skewness (third standardized moment).
// Zero when the distribution is degenerate.
func skewness(values []float64) float64 {
	n := float64(len(values))
	if n < 3 {
		return 0
	}
	m := mean(values)
	var m2, m3 float64
	for _, v := range values {
		d := v - m
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return 0
	}
	return m3 / math.Pow(m2, 1.5)
}

// kurtosis returns the population excess kurtosis (fourth standardized moment
// minus 3), so a normal distribution scores 0.
func kurtosis(values []float64) float64 {
	n := float64(len(values))
	if n < 4 {
		return 0
	}
	m := mean(values)
	var m2, m4 float64
	for _, v := range values {
		d := v - m
		d2 := d * d
		m2 += d2
		m4 += d2 * d2
	}
	m2 /= n
	m4 /= n
	if m2 == 0 {
		return 0
	}
	return m4/(m2*m2) - 3
}

// ============================================================================
// PERFORMANCE HELPERS
// ============================================================================

// annualizedSharpe computes the Sharpe ratio of a per-trade return series
// against an annual risk-free rate, annualized by sqrt(252). A zero standard
// deviation yields 0 rather than NaN so the value stays usable downstream.
func annualizedSharpe(returns []float64, annualRiskFree float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	std := sampleStdDev(returns)
	if std == 0 {
		return 0
	}
	dailyRiskFree := annualRiskFree / tradingDaysPerYear
	return (mean(returns) - dailyRiskFree) / std * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdownPct walks an equity curve left to right and returns the largest
// peak-to-trough decline as a positive percentage of the peak.
func maxDrawdownPct(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			dd := (peak - e) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// scaleLinear maps v from [fromLo, fromHi] onto [toLo, toHi] without clamping;
// values outside the source domain extrapolate.
func scaleLinear(v, fromLo, fromHi, toLo, toHi float64) float64 {
	if fromHi == fromLo {
		return toLo
	}
	return toLo + (v-fromLo)/(fromHi-fromLo)*(toHi-toLo)
}
