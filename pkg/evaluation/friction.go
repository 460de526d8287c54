package evaluation

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// ============================================================================
// FRICTION MODEL
// ============================================================================

// FrictionParams configures the transaction cost model applied to raw trade
// PnL. Rates are fractions, spread and slippage are basis points.
type FrictionParams struct {
	// CommissionRate is the commission per side as a fraction of notional.
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate" mapstructure:"commission_rate"`

	// SpreadBps is the bid/ask spread in basis points, paid once per round trip.
	SpreadBps float64 `json:"spread_bps" yaml:"spread_bps" mapstructure:"spread_bps"`

	// SlippageBps is the slippage in basis points, paid on entry and exit.
	SlippageBps float64 `json:"slippage_bps" yaml:"slippage_bps" mapstructure:"slippage_bps"`

	// PartialFillProb is the probability that a trade only partially fills.
	PartialFillProb float64 `json:"partial_fill_prob" yaml:"partial_fill_prob" mapstructure:"partial_fill_prob"`

	// FillRatioMin and FillRatioMax bound the uniform fill ratio drawn when a
	// partial fill occurs.
	FillRatioMin float64 `json:"fill_ratio_min" yaml:"fill_ratio_min" mapstructure:"fill_ratio_min"`
	FillRatioMax float64 `json:"fill_ratio_max" yaml:"fill_ratio_max" mapstructure:"fill_ratio_max"`
}

// DefaultFrictionParams returns cost assumptions suitable for a liquid spot
// market: 5 bps commission per side, 1 bp spread, 2 bps slippage, 5% partial
// fills no smaller than half the order.
func DefaultFrictionParams() FrictionParams {
	return FrictionParams{
		CommissionRate:  0.0005,
		SpreadBps:       1.0,
		SlippageBps:     2.0,
		PartialFillProb: 0.05,
		FillRatioMin:    0.5,
		FillRatioMax:    1.0,
	}
}

// Validate checks the friction parameters.
func (p FrictionParams) Validate() error {
	if p.CommissionRate < 0 {
		return fmt.Errorf("commission_rate must be >= 0, got %f", p.CommissionRate)
	}
	if p.SpreadBps < 0 {
		return fmt.Errorf("spread_bps must be >= 0, got %f", p.SpreadBps)
	}
	if p.SlippageBps < 0 {
		return fmt.Errorf("slippage_bps must be >= 0, got %f", p.SlippageBps)
	}
	if p.PartialFillProb < 0 || p.PartialFillProb > 1 {
		return fmt.Errorf("partial_fill_prob must be in [0,1], got %f", p.PartialFillProb)
	}
	if p.FillRatioMin < 0 || p.FillRatioMax > 1 || p.FillRatioMin > p.FillRatioMax {
		return fmt.Errorf("fill ratio bounds must satisfy 0 <= min <= max <= 1, got min=%f max=%f",
			p.FillRatioMin, p.FillRatioMax)
	}
	return nil
}

const (
	// notionalPnLMultiple sizes a position from its PnL when nothing better is
	// available. This is an approximation carried over from live usage, not a
	// calibrated estimator: it assumes a typical trade moves a few percent of
	// its notional.
	notionalPnLMultiple = 20.0

	// notionalFloor is the assumed position size when a trade carries neither
	// size, percentage return, nor PnL to infer from.
	notionalFloor = 1000.0
)

// ApplyFriction returns a new trade list with transaction costs subtracted
// from each trade's PnL and the cost breakdown itemized on the copy. The
// input slice is never modified. With all costs and the partial-fill
// probability at zero, the output PnL equals the input PnL exactly.
//
// rng drives the partial-fill draw; pass a seeded generator for reproducible
// runs. A nil rng falls back to a clock-seeded one.
func ApplyFriction(trades []Trade, params FrictionParams, rng *rand.Rand) []Trade {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec G404 -- Non-cryptographic use: cost simulation
	}

	adjusted := make([]Trade, len(trades))
	totalCost := 0.0

	for i, t := range trades {
		out := t
		out.GrossPnL = t.PnL
		out.FillRatio = 1.0

		notional := estimateNotional(t)

		if params.PartialFillProb > 0 && rng.Float64() < params.PartialFillProb {
			ratio := params.FillRatioMin + rng.Float64()*(params.FillRatioMax-params.FillRatioMin)
			out.FillRatio = ratio
			notional *= ratio
			out.PnL = t.PnL * ratio
			if out.Notional > 0 {
				out.Notional = t.Notional * ratio
			}
		}

		out.Commission = 2 * params.CommissionRate * notional
		out.SpreadCost = params.SpreadBps / 10000 * notional
		out.SlippageCost = 2 * params.SlippageBps / 10000 * notional

		cost := out.Commission + out.SpreadCost + out.SlippageCost
		out.PnL -= cost
		totalCost += cost

		adjusted[i] = out
	}

	log.Debug().
		Int("trades", len(adjusted)).
		Float64("total_cost", totalCost).
		Float64("commission_rate", params.CommissionRate).
		Float64("spread_bps", params.SpreadBps).
		Float64("slippage_bps", params.SlippageBps).
		Msg("Applied friction model")

	return adjusted
}

// estimateNotional infers the dollar size of a trade through a fallback chain:
// explicit size, then size implied by PnL and percentage return, then a fixed
// multiple of |PnL|, then a flat floor.
func estimateNotional(t Trade) float64 {
	if t.Notional > 0 {
		return t.Notional
	}
	if t.PctReturn != 0 && t.PnL != 0 {
		return math.Abs(t.PnL / (t.PctReturn / 100))
	}
	if t.PnL != 0 {
		return math.Abs(t.PnL) * notionalPnLMultiple
	}
	return notionalFloor
}
