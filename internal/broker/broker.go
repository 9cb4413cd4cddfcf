// Package broker simulates order execution for historical replays. It
// approximates fills with a proportional slippage and commission model and
// never talks to a live venue.
package broker

import (
	"vecbt/internal/domain"
)

// Config holds the execution and capital model for a simulated run.
type Config struct {
	InitialCapital float64 `yaml:"initial_capital"`
	// Commission is charged on every fill as a fraction of its notional.
	Commission float64 `yaml:"commission"`
	// Slippage moves every signal-driven fill against the trader by this
	// fraction of the close.
	Slippage float64 `yaml:"slippage"`
	// PositionSizePct is the fraction of available cash committed to each
	// new position, in (0, 1].
	PositionSizePct float64 `yaml:"position_size_pct"`
	AllowShort      bool    `yaml:"allow_short"`
	// EquitySampleEvery records an equity snapshot every N bars. The final
	// bar is always recorded.
	EquitySampleEvery int `yaml:"equity_sample_every"`
}

// DefaultConfig returns a 10,000 capital, 0.1% commission, 0.05% slippage,
// long-only, fully invested configuration.
func DefaultConfig() Config {
	return Config{
		InitialCapital:    10000,
		Commission:        0.001,
		Slippage:          0.0005,
		PositionSizePct:   1,
		EquitySampleEvery: 1,
	}
}

// WithDefaults fills zero-valued sizing fields from DefaultConfig. Zero
// commission and slippage are legitimate and left alone.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.InitialCapital == 0 {
		c.InitialCapital = d.InitialCapital
	}
	if c.PositionSizePct == 0 {
		c.PositionSizePct = d.PositionSizePct
	}
	if c.EquitySampleEvery == 0 {
		c.EquitySampleEvery = d.EquitySampleEvery
	}
	return c
}

// Validate checks the execution parameters.
func (c Config) Validate() error {
	switch {
	case c.InitialCapital <= 0:
		return &domain.ConfigError{Field: "initial_capital", Reason: "must be positive"}
	case c.Commission < 0 || c.Commission >= 1:
		return &domain.ConfigError{Field: "commission", Reason: "must be in [0, 1)"}
	case c.Slippage < 0 || c.Slippage >= 1:
		return &domain.ConfigError{Field: "slippage", Reason: "must be in [0, 1)"}
	case c.PositionSizePct <= 0 || c.PositionSizePct > 1:
		return &domain.ConfigError{Field: "position_size_pct", Reason: "must be in (0, 1]"}
	case c.EquitySampleEvery < 1:
		return &domain.ConfigError{Field: "equity_sample_every", Reason: "must be at least 1"}
	}
	return nil
}

// DrawdownTracker follows peak equity and the worst absolute and
// percentage declines from it in a single pass.
type DrawdownTracker struct {
	peak     float64
	maxDD    float64
	maxDDPct float64
	started  bool
}

// Update feeds the next equity value and returns the current drawdown from
// peak, absolute and in percent.
func (t *DrawdownTracker) Update(equity float64) (float64, float64) {
	if !t.started || equity > t.peak {
		t.peak = equity
		t.started = true
	}
	dd := t.peak - equity
	var ddPct float64
	if t.peak > 0 {
		ddPct = dd / t.peak * 100
	}
	if dd > t.maxDD {
		t.maxDD = dd
	}
	if ddPct > t.maxDDPct {
		t.maxDDPct = ddPct
	}
	return dd, ddPct
}

// Max returns the largest absolute and percentage drawdown seen so far.
func (t *DrawdownTracker) Max() (float64, float64) {
	return t.maxDD, t.maxDDPct
}

// Peak returns the highest equity seen so far.
func (t *DrawdownTracker) Peak() float64 {
	return t.peak
}
