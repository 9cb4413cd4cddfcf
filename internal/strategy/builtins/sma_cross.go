// Package builtins provides the strategy kinds that ship with vecbt.
package builtins

import (
	"vecbt/internal/dataset"
	"vecbt/internal/domain"
	"vecbt/internal/indicator"
	"vecbt/internal/signal"
	"vecbt/internal/strategy"
)

// Compile-time interface checks.
var (
	_ strategy.Strategy = (*SMACross)(nil)
	_ strategy.Strategy = (*EMACross)(nil)
)

// SMACross implements a simple moving average crossover strategy. It generates
// a long signal when the fast SMA crosses above the slow SMA, and a short
// signal when it crosses below.
type SMACross struct {
	name   string
	source dataset.Column
	fast   int
	slow   int
}

// NewSMACross creates a new SMACross strategy with the specified fast and
// slow moving average periods over the close.
func NewSMACross(fast, slow int) *SMACross {
	return &SMACross{name: string(strategy.KindSMACross), source: dataset.ColumnClose, fast: fast, slow: slow}
}

func newSMACross(cfg strategy.Config, _ *strategy.Registry) (strategy.Strategy, error) {
	src, err := dataset.ParseColumn(cfg.Source)
	if err != nil {
		return nil, err
	}
	return &SMACross{name: cfg.DisplayName(), source: src, fast: cfg.FastPeriod, slow: cfg.SlowPeriod}, nil
}

// Name returns the configured name, "sma-cross" by default.
func (s *SMACross) Name() string {
	return s.name
}

// Generate computes both averages and detects their crossings.
func (s *SMACross) Generate(ds *dataset.Dataset) ([]domain.Signal, error) {
	in, err := ds.Column(s.source)
	if err != nil {
		return nil, err
	}
	return signal.Cross(indicator.SMA(in, s.fast), indicator.SMA(in, s.slow), ds.Timestamps), nil
}

// EMACross is SMACross over exponential moving averages.
type EMACross struct {
	name   string
	source dataset.Column
	fast   int
	slow   int
}

func newEMACross(cfg strategy.Config, _ *strategy.Registry) (strategy.Strategy, error) {
	src, err := dataset.ParseColumn(cfg.Source)
	if err != nil {
		return nil, err
	}
	return &EMACross{name: cfg.DisplayName(), source: src, fast: cfg.FastPeriod, slow: cfg.SlowPeriod}, nil
}

// Name returns the configured name, "ema-cross" by default.
func (s *EMACross) Name() string {
	return s.name
}

// Generate computes both averages and detects their crossings.
func (s *EMACross) Generate(ds *dataset.Dataset) ([]domain.Signal, error) {
	in, err := ds.Column(s.source)
	if err != nil {
		return nil, err
	}
	return signal.Cross(indicator.EMA(in, s.fast), indicator.EMA(in, s.slow), ds.Timestamps), nil
}
