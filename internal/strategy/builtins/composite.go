package builtins

import (
	"fmt"

	"vecbt/internal/dataset"
	"vecbt/internal/domain"
	"vecbt/internal/signal"
	"vecbt/internal/strategy"
)

var (
	_ strategy.Strategy = (*Vote)(nil)
	_ strategy.Strategy = (*Custom)(nil)
)

// Vote combines the opinions of its member strategies by majority.
type Vote struct {
	name    string
	members []strategy.Strategy
}

func newVote(cfg strategy.Config, reg *strategy.Registry) (strategy.Strategy, error) {
	members := make([]strategy.Strategy, 0, len(cfg.Members))
	for i, m := range cfg.Members {
		s, err := reg.Build(m)
		if err != nil {
			return nil, fmt.Errorf("vote member %d: %w", i, err)
		}
		members = append(members, s)
	}
	return &Vote{name: cfg.DisplayName(), members: members}, nil
}

func (s *Vote) Name() string { return s.name }

func (s *Vote) Generate(ds *dataset.Dataset) ([]domain.Signal, error) {
	opinions := make([][]domain.Signal, len(s.members))
	for i, m := range s.members {
		sig, err := m.Generate(ds)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", m.Name(), err)
		}
		opinions[i] = sig
	}
	return signal.Vote(opinions...)
}

// Custom adapts a caller-supplied SignalFunc.
type Custom struct {
	name string
	fn   strategy.SignalFunc
}

// NewCustom wraps fn as a named strategy.
func NewCustom(name string, fn strategy.SignalFunc) *Custom {
	return &Custom{name: name, fn: fn}
}

func newCustom(cfg strategy.Config, _ *strategy.Registry) (strategy.Strategy, error) {
	return NewCustom(cfg.DisplayName(), cfg.Signal), nil
}

func (s *Custom) Name() string { return s.name }

// Generate calls the wrapped function and checks its output is aligned with
// ds.
func (s *Custom) Generate(ds *dataset.Dataset) ([]domain.Signal, error) {
	sig, err := s.fn(ds)
	if err != nil {
		return nil, err
	}
	if len(sig) != ds.Len() {
		return nil, fmt.Errorf("custom signal function returned %d signals for %d bars", len(sig), ds.Len())
	}
	return sig, nil
}

// Register adds every built-in kind to reg.
func Register(reg *strategy.Registry) {
	reg.Register(strategy.KindSMACross, newSMACross)
	reg.Register(strategy.KindEMACross, newEMACross)
	reg.Register(strategy.KindMACD, newMACD)
	reg.Register(strategy.KindRSI, newRSI)
	reg.Register(strategy.KindBollinger, newBollinger)
	reg.Register(strategy.KindVote, newVote)
	reg.Register(strategy.KindCustom, newCustom)
}

// NewRegistry returns a registry holding every built-in kind.
func NewRegistry() *strategy.Registry {
	reg := strategy.NewRegistry()
	Register(reg)
	return reg
}
