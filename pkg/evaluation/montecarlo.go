package evaluation

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ============================================================================
// MONTE CARLO SIMULATOR
// ============================================================================

const (
	// mcRuinReturnPct and mcRuinSharpe are the penalty values recorded for a
	// trial whose equity curve reaches zero or below.
	mcRuinReturnPct = -100.0
	mcRuinSharpe    = -10.0

	// ciLowPct and ciHighPct bound the two-sided 95% confidence interval.
	ciLowPct  = 2.5
	ciHighPct = 97.5

	// Instability thresholds on the simulated distributions.
	mcMaxReturnCIWidth = 50.0
	mcMaxSharpeCIWidth = 3.0
)

// MonteCarloParams configures the randomized resampling of a trade sequence.
type MonteCarloParams struct {
	// Trials is the number of simulations to run.
	Trials int `json:"n_simulations" yaml:"trials" mapstructure:"trials"`

	// SlippageMinBps and SlippageMaxBps bound the uniform slippage draw
	// applied per trial.
	SlippageMinBps float64 `json:"slippage_min_bps" yaml:"slippage_min_bps" mapstructure:"slippage_min_bps"`
	SlippageMaxBps float64 `json:"slippage_max_bps" yaml:"slippage_max_bps" mapstructure:"slippage_max_bps"`

	// Shuffle randomizes trade execution order per trial, testing sequencing
	// sensitivity independently of timestamps.
	Shuffle bool `json:"shuffle" yaml:"shuffle" mapstructure:"shuffle"`

	// StoreDistributions retains the full per-trial arrays on the result.
	// When false, memory stays bounded regardless of the trial count.
	StoreDistributions bool `json:"store_distributions" yaml:"store_distributions" mapstructure:"store_distributions"`
}

// Validate checks the Monte Carlo parameters.
func (p MonteCarloParams) Validate() error {
	if p.Trials < 0 {
		return fmt.Errorf("trials must be >= 0, got %d", p.Trials)
	}
	if p.SlippageMinBps < 0 || p.SlippageMinBps > p.SlippageMaxBps {
		return fmt.Errorf("slippage bounds must satisfy 0 <= min <= max, got min=%f max=%f",
			p.SlippageMinBps, p.SlippageMaxBps)
	}
	return nil
}

// MonteCarloResult summarizes the simulated outcome distributions. The
// confidence intervals are the 2.5th to 97.5th percentile range. Distribution
// arrays are populated only when StoreDistributions was set.
type MonteCarloResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Trials  int    `json:"n_simulations"`

	ReturnMean   float64 `json:"return_mean"`
	ReturnStd    float64 `json:"return_std"`
	ReturnMedian float64 `json:"return_median"`
	ReturnCILow  float64 `json:"return_ci_low"`
	ReturnCIHigh float64 `json:"return_ci_high"`

	SharpeMean   float64 `json:"sharpe_mean"`
	SharpeStd    float64 `json:"sharpe_std"`
	SharpeMedian float64 `json:"sharpe_median"`
	SharpeCILow  float64 `json:"sharpe_ci_low"`
	SharpeCIHigh float64 `json:"sharpe_ci_high"`

	Unstable bool   `json:"unstable"`
	Reason   string `json:"instability_reason,omitempty"`

	ReturnDistribution []float64 `json:"return_distribution,omitempty"`
	SharpeDistribution []float64 `json:"sharpe_distribution,omitempty"`
}

// RunMonteCarlo repeatedly resimulates the trade list under a randomly drawn
// slippage (and optionally a shuffled execution order), rebuilding the equity
// curve each trial and recording total return and Sharpe. friction supplies
// the baseline commission and spread; the drawn slippage replaces its
// slippage each trial. seed makes the run reproducible; zero seeds from the
// clock.
func RunMonteCarlo(trades []Trade, params MonteCarloParams, friction FrictionParams, initialCapital, riskFreeRate float64, seed int64) MonteCarloResult {
	if params.Trials <= 0 {
		return MonteCarloResult{Success: false, Error: "monte carlo requires a positive trial count"}
	}
	if len(trades) == 0 {
		return MonteCarloResult{Success: false, Error: "monte carlo requires at least one trade"}
	}
	if initialCapital <= 0 {
		return MonteCarloResult{Success: false, Error: "monte carlo requires positive initial capital"}
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed)) // #nosec G404 -- Non-cryptographic use: outcome resampling

	returnDist := make([]float64, 0, params.Trials)
	sharpeDist := make([]float64, 0, params.Trials)
	rets := make([]float64, 0, len(trades))

	for trial := 0; trial < params.Trials; trial++ {
		slippage := params.SlippageMinBps + rng.Float64()*(params.SlippageMaxBps-params.SlippageMinBps)
		fp := friction
		fp.SlippageBps = slippage

		sim := ApplyFriction(trades, fp, rng)
		if params.Shuffle {
			rng.Shuffle(len(sim), func(i, j int) { sim[i], sim[j] = sim[j], sim[i] })
		}

		equity := initialCapital
		rets = rets[:0]
		ruined := false
		for _, t := range sim {
			rets = append(rets, t.PnL/initialCapital)
			equity += t.PnL
			if equity <= 0 {
				ruined = true
				break
			}
		}

		if ruined {
			returnDist = append(returnDist, mcRuinReturnPct)
			sharpeDist = append(sharpeDist, mcRuinSharpe)
			continue
		}

		returnDist = append(returnDist, (equity-initialCapital)/initialCapital*100)
		sharpeDist = append(sharpeDist, annualizedSharpe(rets, riskFreeRate))
	}

	result := MonteCarloResult{
		Success:      true,
		Trials:       params.Trials,
		ReturnMean:   mean(returnDist),
		ReturnStd:    sampleStdDev(returnDist),
		ReturnMedian: median(returnDist),
		ReturnCILow:  percentile(returnDist, ciLowPct),
		ReturnCIHigh: percentile(returnDist, ciHighPct),
		SharpeMean:   mean(sharpeDist),
		SharpeStd:    sampleStdDev(sharpeDist),
		SharpeMedian: median(sharpeDist),
		SharpeCILow:  percentile(sharpeDist, ciLowPct),
		SharpeCIHigh: percentile(sharpeDist, ciHighPct),
	}

	var reasons []string
	if result.ReturnMedian < 0 {
		reasons = append(reasons, "negative median simulated return")
	}
	if result.ReturnCIHigh-result.ReturnCILow > mcMaxReturnCIWidth {
		reasons = append(reasons, fmt.Sprintf("return confidence interval wider than %.0f points", mcMaxReturnCIWidth))
	}
	if result.SharpeCIHigh-result.SharpeCILow > mcMaxSharpeCIWidth {
		reasons = append(reasons, fmt.Sprintf("Sharpe confidence interval wider than %.0f", mcMaxSharpeCIWidth))
	}
	if len(reasons) > 0 {
		result.Unstable = true
		result.Reason = strings.Join(reasons, "; ")
	}

	if params.StoreDistributions {
		result.ReturnDistribution = returnDist
		result.SharpeDistribution = sharpeDist
	}

	log.Info().
		Int("trials", params.Trials).
		Float64("return_median", result.ReturnMedian).
		Float64("sharpe_median", result.SharpeMedian).
		Bool("unstable", result.Unstable).
		Msg("Monte Carlo simulation complete")

	return result
}
