package sweep

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecbt/internal/dataset"
	"vecbt/internal/domain"
	"vecbt/internal/engine"
	"vecbt/internal/metrics"
	"vecbt/internal/strategy"
)

var mixed = []Param{
	{Name: "fast_period", Type: ParamInt, Min: 5, Max: 15, Step: 5},
	{Name: "commission", Type: ParamFloat, Min: 0.001, Max: 0.003, Step: 0.001},
	{Name: "allow_short", Type: ParamBool},
	{Name: "source", Type: ParamChoice, Values: []any{"close", "open"}},
	{Name: "slow_period", Type: ParamInt, Values: []any{20, 30, 40, 50}},
}

func TestCountMatchesGenerateAll(t *testing.T) {
	want := []int{3, 9, 18, 36, 144}
	for n := 1; n <= len(mixed); n++ {
		grid := Grid(mixed[:n])
		count, err := CountCombinations(grid)
		require.NoError(t, err)
		all, err := GenerateAll(grid)
		require.NoError(t, err)

		assert.Equal(t, want[n-1], count, "%d params", n)
		assert.Len(t, all, count, "%d params", n)

		seen := map[string]bool{}
		for _, c := range all {
			require.Len(t, c, n)
			key := ""
			for _, p := range grid {
				key += fmt.Sprintf("|%v", c[p.Name])
			}
			assert.False(t, seen[key], "duplicate combination %s", key)
			seen[key] = true
		}
	}
}

func TestGenerateAllOrder(t *testing.T) {
	all, err := GenerateAll(Grid{
		{Name: "a", Type: ParamInt, Min: 1, Max: 2},
		{Name: "b", Type: ParamBool},
	})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"a": 1, "b": false},
		{"a": 1, "b": true},
		{"a": 2, "b": false},
		{"a": 2, "b": true},
	}, all)
}

func TestFloatRangeEndsOnStep(t *testing.T) {
	pts, err := Param{Name: "x", Type: ParamFloat, Min: 0.1, Max: 0.3, Step: 0.1}.Points()
	require.NoError(t, err)
	require.Len(t, pts, 3)
	assert.InDelta(t, 0.3, pts[2].(float64), 1e-12)
}

func TestEmptyGrid(t *testing.T) {
	n, err := CountCombinations(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	all, err := GenerateAll(nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGridErrors(t *testing.T) {
	bad := []Grid{
		{{Name: "", Type: ParamInt, Min: 1, Max: 2}},
		{{Name: "x", Type: ParamChoice}},
		{{Name: "x", Type: ParamInt, Min: 5, Max: 1}},
		{{Name: "x", Type: ParamFloat, Min: 0, Max: 1, Step: -1}},
		{{Name: "x", Type: "complex"}},
		{{Name: "x", Type: ParamBool}, {Name: "x", Type: ParamBool}},
	}
	for i, g := range bad {
		_, err := CountCombinations(g)
		assert.Error(t, err, "grid %d", i)
		_, err = GenerateAll(g)
		assert.Error(t, err, "grid %d", i)
	}
}

func sweepFixture() (*dataset.Dataset, engine.RunConfig, Grid) {
	ds := dataset.Synthetic(dataset.SyntheticOptions{Bars: 3000, Seed: 21})
	base := engine.DefaultRunConfig(strategy.Config{Kind: strategy.KindSMACross})
	grid := Grid{
		{Name: "fast_period", Type: ParamInt, Min: 5, Max: 25, Step: 10},
		{Name: "slow_period", Type: ParamInt, Values: []any{20, 40}},
	}
	return ds, base, grid
}

func TestRunnerRecordsInvalidCombinations(t *testing.T) {
	ds, base, grid := sweepFixture()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	r := NewRunner(engine.NewBacktester(nil, nil, nil), 4, nil, m)
	out, err := r.Run(context.Background(), ds, base, grid)
	require.NoError(t, err)
	require.Len(t, out, 6)

	// fast 5,15,25 x slow 20,40: (25,20) has fast >= slow.
	for i, o := range out {
		assert.Equal(t, i, o.Index)
		fast, slow := o.Params["fast_period"].(int), o.Params["slow_period"].(int)
		if fast >= slow {
			var cerr *domain.ConfigError
			assert.ErrorAs(t, o.Err, &cerr, "combination %v", o.Params)
			assert.Nil(t, o.Result)
			continue
		}
		require.NoError(t, o.Err, "combination %v", o.Params)
		assert.Equal(t, ds.Len(), o.Result.Bars)
		assert.Equal(t, o.Params, o.Result.Params)
		assert.Nil(t, o.Result.Equity, "curves are released by default")
	}

	assert.Equal(t, 5.0, sweepCount(t, reg, metrics.StatusOK))
	assert.Equal(t, 1.0, sweepCount(t, reg, metrics.StatusInvalid))
}

// sweepCount reads vecbt_sweep_combinations_total{status} from reg.
func sweepCount(t *testing.T, reg *prometheus.Registry, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "vecbt_sweep_combinations_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" && l.GetValue() == status {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRunnerMatchesSequentialRuns(t *testing.T) {
	ds, base, grid := sweepFixture()
	bt := engine.NewBacktester(nil, nil, nil)

	parallel, err := NewRunner(bt, 8, nil, nil).Run(context.Background(), ds, base, grid)
	require.NoError(t, err)
	sequential, err := NewRunner(bt, 1, nil, nil).Run(context.Background(), ds, base, grid)
	require.NoError(t, err)

	for i := range parallel {
		if parallel[i].Err != nil {
			assert.Error(t, sequential[i].Err)
			continue
		}
		assert.Equal(t, sequential[i].Result.FinalCapital, parallel[i].Result.FinalCapital)
		assert.Equal(t, sequential[i].Result.TotalTrades, parallel[i].Result.TotalTrades)
	}
}

func TestRunnerCanceledContext(t *testing.T) {
	ds, base, grid := sweepFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := NewRunner(engine.NewBacktester(nil, nil, nil), 2, nil, nil).Run(ctx, ds, base, grid)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, out, 6)
	for _, o := range out {
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
}

func TestBest(t *testing.T) {
	outcomes := []Outcome{
		{Index: 0, Result: &engine.Result{SharpeRatio: 0.5, MaxDrawdownPct: 10}},
		{Index: 1, Err: assert.AnError},
		{Index: 2, Result: &engine.Result{SharpeRatio: 1.5, MaxDrawdownPct: 30}},
		{Index: 3, Result: &engine.Result{SharpeRatio: 1.5, MaxDrawdownPct: 5}},
	}

	best, ok := Best(outcomes, ObjectiveSharpe)
	require.True(t, ok)
	assert.Equal(t, 2, best.Index)

	best, ok = Best(outcomes, ObjectiveDrawdown)
	require.True(t, ok)
	assert.Equal(t, 3, best.Index)

	_, ok = Best(outcomes[1:2], ObjectiveSharpe)
	assert.False(t, ok)
}

func TestParseObjective(t *testing.T) {
	o, err := ParseObjective("")
	require.NoError(t, err)
	assert.Equal(t, ObjectiveSharpe, o)

	o, err = ParseObjective("sortino")
	require.NoError(t, err)
	assert.Equal(t, ObjectiveSortino, o)

	_, err = ParseObjective("calmar")
	assert.Error(t, err)
}
