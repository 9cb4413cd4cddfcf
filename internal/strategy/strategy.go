// Package strategy defines the Strategy interface for signal generators, their
// YAML configuration, and a Registry of factories keyed by strategy kind.
package strategy

import (
	"fmt"
	"sort"
	"strings"

	"vecbt/internal/dataset"
	"vecbt/internal/domain"
	"vecbt/internal/util"
)

// Strategy is the interface that all signal generators must implement.
type Strategy interface {
	// Name returns the identifier used in logs, metrics and run summaries.
	Name() string

	// Generate derives one directional opinion per bar of ds. The returned
	// slice always has ds.Len() entries.
	Generate(ds *dataset.Dataset) ([]domain.Signal, error)
}

// SignalFunc computes signals directly from a dataset. It backs the custom
// kind and can only be supplied from code.
type SignalFunc func(ds *dataset.Dataset) ([]domain.Signal, error)

// ConfigError reports an invalid strategy parameter.
type ConfigError = domain.ConfigError

// Kind selects a built-in strategy implementation.
type Kind string

const (
	KindSMACross  Kind = "sma-cross"
	KindEMACross  Kind = "ema-cross"
	KindMACD      Kind = "macd"
	KindRSI       Kind = "rsi"
	KindBollinger Kind = "bollinger"
	KindVote      Kind = "vote"
	KindCustom    Kind = "custom"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindSMACross, KindEMACross, KindMACD, KindRSI, KindBollinger, KindVote, KindCustom}

// Config parameterises one strategy. Fields irrelevant to Kind are ignored.
type Config struct {
	Name   string `yaml:"name"`
	Kind   Kind   `yaml:"kind"`
	Source string `yaml:"source"`

	FastPeriod   int `yaml:"fast_period"`
	SlowPeriod   int `yaml:"slow_period"`
	SignalPeriod int `yaml:"signal_period"`

	Period     int     `yaml:"period"`
	NumStd     float64 `yaml:"num_std"`
	Oversold   float64 `yaml:"oversold"`
	Overbought float64 `yaml:"overbought"`

	Members []Config `yaml:"members"`

	Signal SignalFunc `yaml:"-"`
}

// DisplayName returns Name, or the kind when no name was given.
func (c Config) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return string(c.Kind)
}

// WithDefaults fills unset periods and thresholds with the conventional
// values for Kind.
func (c Config) WithDefaults() Config {
	setInt := func(p *int, v int) {
		if *p == 0 {
			*p = v
		}
	}
	switch c.Kind {
	case KindSMACross:
		setInt(&c.FastPeriod, 10)
		setInt(&c.SlowPeriod, 30)
	case KindEMACross, KindMACD:
		setInt(&c.FastPeriod, 12)
		setInt(&c.SlowPeriod, 26)
		if c.Kind == KindMACD {
			setInt(&c.SignalPeriod, 9)
		}
	case KindRSI:
		setInt(&c.Period, 14)
		if c.Oversold == 0 && c.Overbought == 0 {
			c.Oversold, c.Overbought = 30, 70
		}
	case KindBollinger:
		setInt(&c.Period, 20)
		if c.NumStd == 0 {
			c.NumStd = 2
		}
	case KindVote:
		members := make([]Config, len(c.Members))
		for i, m := range c.Members {
			members[i] = m.WithDefaults()
		}
		c.Members = members
	}
	return c
}

// Validate checks the configuration without touching any data.
func (c Config) Validate() error {
	if _, err := dataset.ParseColumn(c.Source); err != nil {
		return &ConfigError{Field: "source", Reason: err.Error()}
	}

	switch c.Kind {
	case KindSMACross, KindEMACross, KindMACD:
		if c.FastPeriod < 1 {
			return &ConfigError{Field: "fast_period", Reason: "must be at least 1"}
		}
		if c.SlowPeriod < 1 {
			return &ConfigError{Field: "slow_period", Reason: "must be at least 1"}
		}
		if c.FastPeriod >= c.SlowPeriod {
			return &ConfigError{Field: "fast_period", Reason: fmt.Sprintf("must be less than slow_period (%d >= %d)", c.FastPeriod, c.SlowPeriod)}
		}
		if c.Kind == KindMACD && c.SignalPeriod < 1 {
			return &ConfigError{Field: "signal_period", Reason: "must be at least 1"}
		}
	case KindRSI:
		if c.Period < 1 {
			return &ConfigError{Field: "period", Reason: "must be at least 1"}
		}
		if c.Oversold < 0 || c.Overbought > 100 {
			return &ConfigError{Field: "oversold", Reason: "thresholds must lie in [0, 100]"}
		}
		if c.Oversold >= c.Overbought {
			return &ConfigError{Field: "oversold", Reason: "must be below overbought"}
		}
	case KindBollinger:
		if c.Period < 1 {
			return &ConfigError{Field: "period", Reason: "must be at least 1"}
		}
		if c.NumStd <= 0 {
			return &ConfigError{Field: "num_std", Reason: "must be positive"}
		}
	case KindVote:
		if len(c.Members) == 0 {
			return &ConfigError{Field: "members", Reason: "vote needs at least one member"}
		}
		for i, m := range c.Members {
			if err := m.Validate(); err != nil {
				if ce, ok := err.(*ConfigError); ok {
					return &ConfigError{Field: fmt.Sprintf("members[%d].%s", i, ce.Field), Reason: ce.Reason}
				}
				return err
			}
		}
	case KindCustom:
		if c.Signal == nil {
			return &ConfigError{Field: "signal", Reason: "custom strategy requires a signal function"}
		}
	case "":
		return &ConfigError{Field: "kind", Reason: "is required"}
	default:
		return &ConfigError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", c.Kind)}
	}
	return nil
}

// WithParams returns a copy of c with params applied by YAML field name.
// Unknown names are an error.
func (c Config) WithParams(params map[string]any) (Config, error) {
	out := c
	unknown, err := util.ApplyParams(&out, params)
	if err != nil {
		return c, err
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return c, &ConfigError{Field: strings.Join(unknown, ","), Reason: "unknown strategy parameter"}
	}
	out.Signal = c.Signal
	return out, nil
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Factory builds a Strategy from a validated Config. reg is passed through
// so composite kinds can build their members.
type Factory func(cfg Config, reg *Registry) (Strategy, error)

// Registry holds the strategy factories available to a backtester.
type Registry struct {
	factories map[Kind]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Kind]Factory),
	}
}

// Register adds a factory for kind, replacing any previous one.
func (r *Registry) Register(kind Kind, f Factory) {
	r.factories[kind] = f
}

// Get retrieves the factory for kind. The second return value indicates
// whether it was found.
func (r *Registry) Get(kind Kind) (Factory, bool) {
	f, ok := r.factories[kind]
	return f, ok
}

// List returns a sorted slice of all registered kinds.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		names = append(names, string(kind))
	}
	sort.Strings(names)
	return names
}

// Build applies defaults, validates cfg and constructs the strategy.
func (r *Registry) Build(cfg Config) (Strategy, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f, ok := r.factories[cfg.Kind]
	if !ok {
		return nil, &ConfigError{Field: "kind", Reason: fmt.Sprintf("no strategy registered for %q", cfg.Kind)}
	}
	return f(cfg, r)
}
