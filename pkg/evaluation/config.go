package evaluation

import "fmt"

// Config is the single configuration surface for the evaluation engine. Every
// tunable used by the components below lives here; callers construct it once
// (typically from the application config) and it is read-only for the run.
type Config struct {
	// InitialCapital is the starting equity for return and drawdown math.
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital" mapstructure:"initial_capital"`

	// RiskFreeRate is the annual risk-free rate as a fraction (0.04 = 4%).
	RiskFreeRate float64 `json:"risk_free_rate" yaml:"risk_free_rate" mapstructure:"risk_free_rate"`

	// RollingWindowTrades is the sliding window size, in trades, for the
	// rolling Sharpe summary. Zero disables rolling and tier computation.
	RollingWindowTrades int `json:"rolling_window_trades" yaml:"rolling_window_trades" mapstructure:"rolling_window_trades"`

	// VolTierLowPct and VolTierHighPct are the percentile cut points, in
	// [0,100], splitting trades into low/mid/high volatility tiers by
	// absolute implied return.
	VolTierLowPct  float64 `json:"vol_tier_low_pct" yaml:"vol_tier_low_pct" mapstructure:"vol_tier_low_pct"`
	VolTierHighPct float64 `json:"vol_tier_high_pct" yaml:"vol_tier_high_pct" mapstructure:"vol_tier_high_pct"`

	// SharpeDropThreshold is the largest tolerated in-sample minus
	// out-of-sample Sharpe decay before a strategy is flagged unstable.
	SharpeDropThreshold float64 `json:"sharpe_drop_threshold" yaml:"sharpe_drop_threshold" mapstructure:"sharpe_drop_threshold"`

	// Seed makes every randomized component reproducible. Zero means seed
	// from the clock.
	Seed int64 `json:"seed" yaml:"seed" mapstructure:"seed"`

	// Workers bounds the comparator's per-strategy parallelism.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	Friction    FrictionParams    `json:"friction" yaml:"friction" mapstructure:"friction"`
	WalkForward WalkForwardParams `json:"walk_forward" yaml:"walk_forward" mapstructure:"walk_forward"`
	MonteCarlo  MonteCarloParams  `json:"monte_carlo" yaml:"monte_carlo" mapstructure:"monte_carlo"`
}

// DefaultConfig returns the engine defaults used when the caller supplies
// nothing. The values mirror the shipped configuration file.
func DefaultConfig() Config {
	return Config{
		InitialCapital:      10000,
		RiskFreeRate:        0.04,
		RollingWindowTrades: 20,
		VolTierLowPct:       33,
		VolTierHighPct:      66,
		SharpeDropThreshold: 0.5,
		Workers:             4,
		Friction:            DefaultFrictionParams(),
		WalkForward: WalkForwardParams{
			TrainDays:     90,
			TestDays:      30,
			StepDays:      30,
			MinFoldTrades: 5,
		},
		MonteCarlo: MonteCarloParams{
			Trials:             500,
			SlippageMinBps:     0,
			SlippageMaxBps:     10,
			Shuffle:            true,
			StoreDistributions: false,
		},
	}
}

// Validate checks the configuration for values the engine cannot work with.
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive, got %f", c.InitialCapital)
	}
	if c.RollingWindowTrades < 0 {
		return fmt.Errorf("rolling_window_trades must be >= 0, got %d", c.RollingWindowTrades)
	}
	if c.VolTierLowPct < 0 || c.VolTierHighPct > 100 || c.VolTierLowPct > c.VolTierHighPct {
		return fmt.Errorf("volatility tier percentiles must satisfy 0 <= low <= high <= 100, got low=%f high=%f",
			c.VolTierLowPct, c.VolTierHighPct)
	}
	if c.SharpeDropThreshold < 0 {
		return fmt.Errorf("sharpe_drop_threshold must be >= 0, got %f", c.SharpeDropThreshold)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if err := c.Friction.Validate(); err != nil {
		return fmt.Errorf("friction: %w", err)
	}
	if err := c.WalkForward.Validate(); err != nil {
		return fmt.Errorf("walk_forward: %w", err)
	}
	if err := c.MonteCarlo.Validate(); err != nil {
		return fmt.Errorf("monte_carlo: %w", err)
	}
	return nil
}
