package builtins

import (
	"vecbt/internal/dataset"
	"vecbt/internal/domain"
	"vecbt/internal/indicator"
	"vecbt/internal/signal"
	"vecbt/internal/strategy"
)

var (
	_ strategy.Strategy = (*MACD)(nil)
	_ strategy.Strategy = (*RSI)(nil)
	_ strategy.Strategy = (*Bollinger)(nil)
)

// MACD goes long when the MACD line crosses above its signal line and short
// when it crosses below.
type MACD struct {
	name                 string
	source               dataset.Column
	fast, slow, smoothed int
}

func newMACD(cfg strategy.Config, _ *strategy.Registry) (strategy.Strategy, error) {
	src, err := dataset.ParseColumn(cfg.Source)
	if err != nil {
		return nil, err
	}
	return &MACD{name: cfg.DisplayName(), source: src, fast: cfg.FastPeriod, slow: cfg.SlowPeriod, smoothed: cfg.SignalPeriod}, nil
}

func (s *MACD) Name() string { return s.name }

func (s *MACD) Generate(ds *dataset.Dataset) ([]domain.Signal, error) {
	in, err := ds.Column(s.source)
	if err != nil {
		return nil, err
	}
	m := indicator.MACD(in, s.fast, s.slow, s.smoothed)
	return signal.Cross(m.MACD, m.Signal, ds.Timestamps), nil
}

// RSI goes long below the oversold level and short above the overbought
// level.
type RSI struct {
	name                 string
	source               dataset.Column
	period               int
	oversold, overbought float64
}

func newRSI(cfg strategy.Config, _ *strategy.Registry) (strategy.Strategy, error) {
	src, err := dataset.ParseColumn(cfg.Source)
	if err != nil {
		return nil, err
	}
	return &RSI{name: cfg.DisplayName(), source: src, period: cfg.Period, oversold: cfg.Oversold, overbought: cfg.Overbought}, nil
}

func (s *RSI) Name() string { return s.name }

func (s *RSI) Generate(ds *dataset.Dataset) ([]domain.Signal, error) {
	in, err := ds.Column(s.source)
	if err != nil {
		return nil, err
	}
	return signal.RSIThreshold(indicator.RSI(in, s.period), s.oversold, s.overbought, ds.Timestamps), nil
}

// Bollinger is a mean-reversion strategy: a close under the lower band is a
// long opinion and a close over the upper band a short one.
type Bollinger struct {
	name   string
	source dataset.Column
	period int
	numStd float64
}

func newBollinger(cfg strategy.Config, _ *strategy.Registry) (strategy.Strategy, error) {
	src, err := dataset.ParseColumn(cfg.Source)
	if err != nil {
		return nil, err
	}
	return &Bollinger{name: cfg.DisplayName(), source: src, period: cfg.Period, numStd: cfg.NumStd}, nil
}

func (s *Bollinger) Name() string { return s.name }

func (s *Bollinger) Generate(ds *dataset.Dataset) ([]domain.Signal, error) {
	in, err := ds.Column(s.source)
	if err != nil {
		return nil, err
	}
	b := indicator.Bollinger(in, s.period, s.numStd)
	return signal.BandBreach(in, b.Upper, b.Lower, ds.Timestamps), nil
}
