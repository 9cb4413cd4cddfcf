package engine

import (
	"errors"
	"sort"
	"strings"

	"vecbt/internal/analytics"
	"vecbt/internal/broker"
	"vecbt/internal/domain"
	"vecbt/internal/strategy"
	"vecbt/internal/util"
)

// RunConfig is everything one backtest needs besides its data.
type RunConfig struct {
	Strategy  strategy.Config   `yaml:"strategy"`
	Execution broker.Config     `yaml:"execution"`
	Analytics analytics.Options `yaml:"analytics"`
}

// DefaultRunConfig pairs cfg with the default execution model.
func DefaultRunConfig(cfg strategy.Config) RunConfig {
	return RunConfig{
		Strategy:  cfg,
		Execution: broker.DefaultConfig(),
		Analytics: analytics.Options{PeriodsPerYear: analytics.DefaultPeriodsPerYear},
	}
}

// Validate checks the strategy and the execution model.
func (c RunConfig) Validate() error {
	if err := c.Strategy.WithDefaults().Validate(); err != nil {
		return err
	}
	if err := c.Execution.WithDefaults().Validate(); err != nil {
		return err
	}
	if c.Analytics.PeriodsPerYear < 0 {
		return &domain.ConfigError{Field: "periods_per_year", Reason: "must not be negative"}
	}
	return nil
}

// WithParams applies sweep parameters. Names matching an execution field
// (commission, slippage, position_size_pct, ...) go to the execution model;
// the rest must name strategy fields.
func (c RunConfig) WithParams(params map[string]any) (RunConfig, error) {
	out := c
	rest, err := util.ApplyParams(&out.Execution, params)
	if err != nil {
		return c, err
	}
	if len(rest) == 0 {
		return out, nil
	}

	sub := make(map[string]any, len(rest))
	for _, k := range rest {
		sub[k] = params[k]
	}
	if out.Strategy, err = out.Strategy.WithParams(sub); err != nil {
		var cerr *domain.ConfigError
		if errors.As(err, &cerr) {
			sort.Strings(rest)
			return c, &domain.ConfigError{Field: strings.Join(rest, ","), Reason: "unknown parameter"}
		}
		return c, err
	}
	return out, nil
}
