package strategy

import (
	"errors"
	"testing"

	"vecbt/internal/dataset"
	"vecbt/internal/domain"
)

// stubStrategy is a minimal Strategy implementation used in registry tests.
type stubStrategy struct {
	name string
}

func (s *stubStrategy) Name() string { return s.name }
func (s *stubStrategy) Generate(ds *dataset.Dataset) ([]domain.Signal, error) {
	return make([]domain.Signal, ds.Len()), nil
}

func stubFactory(cfg Config, _ *Registry) (Strategy, error) {
	return &stubStrategy{name: cfg.DisplayName()}, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(KindSMACross, stubFactory)

	f, ok := r.Get(KindSMACross)
	if !ok {
		t.Fatal("Get returned false for registered kind")
	}
	s, err := f(Config{Name: "test-strategy"}, r)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "test-strategy" {
		t.Errorf("factory built strategy with Name() = %q, want %q", s.Name(), "test-strategy")
	}
}

func TestRegistryGet_NotFound(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nonexistent")
	if ok {
		t.Error("Get returned true for unregistered kind")
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	r.Register(KindRSI, stubFactory)
	r.Register(KindMACD, stubFactory)

	names := r.List()
	if len(names) != 2 {
		t.Fatalf("List returned %d names, want 2", len(names))
	}
	// List returns sorted names.
	if names[0] != "macd" || names[1] != "rsi" {
		t.Errorf("List returned %v, want [macd rsi]", names)
	}
}

func TestRegistryBuild(t *testing.T) {
	r := NewRegistry()
	r.Register(KindSMACross, stubFactory)

	s, err := r.Build(Config{Kind: KindSMACross})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if s.Name() != "sma-cross" {
		t.Errorf("Name() = %q, want sma-cross", s.Name())
	}

	// Valid config, but nothing registered for the kind.
	var cerr *ConfigError
	if _, err := r.Build(Config{Kind: KindRSI}); !errors.As(err, &cerr) || cerr.Field != "kind" {
		t.Errorf("Build(rsi) = %v, want ConfigError on kind", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"missing kind", Config{}, "kind"},
		{"unknown kind", Config{Kind: "turtle"}, "kind"},
		{"fast not below slow", Config{Kind: KindSMACross, FastPeriod: 30, SlowPeriod: 10}, "fast_period"},
		{"equal periods", Config{Kind: KindEMACross, FastPeriod: 10, SlowPeriod: 10}, "fast_period"},
		{"zero signal period", Config{Kind: KindMACD, FastPeriod: 12, SlowPeriod: 26, SignalPeriod: -1}, "signal_period"},
		{"rsi bad period", Config{Kind: KindRSI, Period: -3, Oversold: 30, Overbought: 70}, "period"},
		{"rsi inverted thresholds", Config{Kind: KindRSI, Period: 14, Oversold: 80, Overbought: 20}, "oversold"},
		{"bollinger num_std", Config{Kind: KindBollinger, Period: 20, NumStd: -1}, "num_std"},
		{"custom without func", Config{Kind: KindCustom}, "signal"},
		{"bad source", Config{Kind: KindSMACross, Source: "vwap", FastPeriod: 1, SlowPeriod: 2}, "source"},
		{"empty vote", Config{Kind: KindVote}, "members"},
		{"bad vote member", Config{Kind: KindVote, Members: []Config{{Kind: KindRSI, Period: 0, Oversold: 1, Overbought: 2}}}, "members[0].period"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cerr.Field, tt.field)
			}
		})
	}
}

func TestConfigWithDefaultsValidates(t *testing.T) {
	for _, kind := range Kinds {
		cfg := Config{Kind: kind}
		switch kind {
		case KindVote:
			cfg.Members = []Config{{Kind: KindRSI}, {Kind: KindBollinger}}
		case KindCustom:
			cfg.Signal = func(ds *dataset.Dataset) ([]domain.Signal, error) { return nil, nil }
		}
		if err := cfg.WithDefaults().Validate(); err != nil {
			t.Errorf("%s defaults invalid: %v", kind, err)
		}
	}
}

func TestConfigWithParams(t *testing.T) {
	base := Config{Name: "x", Kind: KindSMACross, FastPeriod: 5, SlowPeriod: 20}

	got, err := base.WithParams(map[string]any{"fast_period": 8, "slow_period": 40.0})
	if err != nil {
		t.Fatalf("WithParams: %v", err)
	}
	if got.FastPeriod != 8 || got.SlowPeriod != 40 || got.Name != "x" {
		t.Errorf("WithParams result = %+v", got)
	}
	if base.FastPeriod != 5 {
		t.Error("WithParams modified the receiver")
	}

	got, err = Config{Kind: KindRSI}.WithParams(map[string]any{"oversold": 25.5})
	if err != nil {
		t.Fatal(err)
	}
	if got.Oversold != 25.5 {
		t.Errorf("Oversold = %v, want 25.5", got.Oversold)
	}

	if _, err := base.WithParams(map[string]any{"lookback": 3}); err == nil {
		t.Error("expected error for unknown parameter")
	}
}
