package evaluation

import "github.com/rs/zerolog/log"

// ============================================================================
// OVERFITTING GUARD
// ============================================================================

const (
	// smallSampleOOSTrades is the out-of-sample trade count below which the
	// robustness score is discounted.
	smallSampleOOSTrades = 20

	// smallSamplePenalty is the multiplier applied to small-sample scores.
	smallSamplePenalty = 0.8
)

// OverfitResult compares in-sample against out-of-sample performance.
// SharpeDrop is never negative and RobustnessScore is always in [0,100].
type OverfitResult struct {
	InSampleSharpe  float64 `json:"in_sample_sharpe"`
	OutSampleSharpe float64 `json:"out_of_sample_sharpe"`
	SharpeDrop      float64 `json:"sharpe_drop"`
	IsStable        bool    `json:"is_stable"`
	RobustnessScore float64 `json:"robustness_score"`
}

// AssessOverfitting derives the stability flag and the bounded robustness
// score. Out-of-sample outperforming in-sample is never penalized: the drop
// floors at zero. The score maps out-of-sample Sharpe from [-1,1] onto
// [0,50], adds a flat 50 for stability, discounts thin out-of-sample samples
// (fewer than smallSampleOOSTrades trades, but more than none), and clamps to
// [0,100].
func AssessOverfitting(inSampleSharpe, outSampleSharpe, dropThreshold float64, monteCarloUnstable bool, oosTradeCount int) OverfitResult {
	drop := inSampleSharpe - outSampleSharpe
	if drop < 0 {
		drop = 0
	}

	stable := drop <= dropThreshold && !monteCarloUnstable

	score := scaleLinear(outSampleSharpe, -1, 1, 0, 50)
	if stable {
		score += 50
	}
	if oosTradeCount > 0 && oosTradeCount < smallSampleOOSTrades {
		score *= smallSamplePenalty
	}
	score = clamp(score, 0, 100)

	result := OverfitResult{
		InSampleSharpe:  inSampleSharpe,
		OutSampleSharpe: outSampleSharpe,
		SharpeDrop:      drop,
		IsStable:        stable,
		RobustnessScore: score,
	}

	log.Debug().
		Float64("in_sample_sharpe", inSampleSharpe).
		Float64("out_of_sample_sharpe", outSampleSharpe).
		Float64("sharpe_drop", drop).
		Bool("is_stable", stable).
		Float64("robustness_score", score).
		Msg("Assessed overfitting")

	return result
}
