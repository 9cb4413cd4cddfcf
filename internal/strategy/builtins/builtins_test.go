package builtins

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecbt/internal/dataset"
	"vecbt/internal/domain"
	"vecbt/internal/strategy"
)

func TestNewRegistryListsAllKinds(t *testing.T) {
	reg := NewRegistry()
	want := make([]string, 0, len(strategy.Kinds))
	for _, k := range strategy.Kinds {
		want = append(want, string(k))
	}
	assert.ElementsMatch(t, want, reg.List())
}

func TestEveryKindGeneratesAlignedSignals(t *testing.T) {
	ds := dataset.Synthetic(dataset.SyntheticOptions{Bars: 2000, Seed: 11})
	reg := NewRegistry()

	configs := []strategy.Config{
		{Kind: strategy.KindSMACross},
		{Kind: strategy.KindEMACross, Source: "open"},
		{Kind: strategy.KindMACD},
		{Kind: strategy.KindRSI},
		{Kind: strategy.KindBollinger},
		{Kind: strategy.KindVote, Members: []strategy.Config{{Kind: strategy.KindRSI}, {Kind: strategy.KindBollinger}, {Kind: strategy.KindSMACross}}},
		{Kind: strategy.KindCustom, Signal: func(ds *dataset.Dataset) ([]domain.Signal, error) {
			return make([]domain.Signal, ds.Len()), nil
		}},
	}
	for _, cfg := range configs {
		t.Run(string(cfg.Kind), func(t *testing.T) {
			s, err := reg.Build(cfg)
			require.NoError(t, err)
			assert.Equal(t, string(cfg.Kind), s.Name())

			sig, err := s.Generate(ds)
			require.NoError(t, err)
			require.Len(t, sig, ds.Len())
			for i, sg := range sig {
				assert.GreaterOrEqual(t, sg.Strength, 0.0, "bar %d", i)
				assert.LessOrEqual(t, sg.Strength, 1.0, "bar %d", i)
			}
		})
	}
}

func TestSMACrossDetectsTrendChange(t *testing.T) {
	// Falling then rising closes: the fast average crosses above the slow
	// one exactly once.
	closes := make([]float64, 0, 60)
	for i := 0; i < 30; i++ {
		closes = append(closes, 100-float64(i))
	}
	for i := 0; i < 30; i++ {
		closes = append(closes, 71+float64(i)*2)
	}
	ds := dataset.FromCloses(closes, 0, 60)

	sig, err := NewSMACross(3, 10).Generate(ds)
	require.NoError(t, err)

	var longs, shorts int
	for _, s := range sig {
		switch s.Direction {
		case domain.Long:
			longs++
		case domain.Short:
			shorts++
		}
	}
	assert.Equal(t, 1, longs)
	assert.Equal(t, 0, shorts)
}

func TestNamedStrategy(t *testing.T) {
	s, err := NewRegistry().Build(strategy.Config{Name: "fast-trend", Kind: strategy.KindEMACross, FastPeriod: 5, SlowPeriod: 15})
	require.NoError(t, err)
	assert.Equal(t, "fast-trend", s.Name())
}

func TestCustomLengthMismatch(t *testing.T) {
	ds := dataset.FromCloses([]float64{1, 2, 3}, 0, 60)
	s := NewCustom("short", func(*dataset.Dataset) ([]domain.Signal, error) {
		return make([]domain.Signal, 1), nil
	})
	_, err := s.Generate(ds)
	assert.Error(t, err)

	boom := errors.New("boom")
	s = NewCustom("fails", func(*dataset.Dataset) ([]domain.Signal, error) { return nil, boom })
	_, err = s.Generate(ds)
	assert.ErrorIs(t, err, boom)
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	_, err := NewRegistry().Build(strategy.Config{Kind: strategy.KindSMACross, FastPeriod: 50, SlowPeriod: 20})
	var cerr *strategy.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "fast_period", cerr.Field)
}
