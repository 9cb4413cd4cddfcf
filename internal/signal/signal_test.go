package signal

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecbt/internal/domain"
	"vecbt/internal/indicator"
)

func stamps(n int) []int64 {
	ts := make([]int64, n)
	for i := range ts {
		ts[i] = int64(1000 + i)
	}
	return ts
}

func directions(s []domain.Signal) []domain.Direction {
	out := make([]domain.Direction, len(s))
	for i := range s {
		out[i] = s[i].Direction
	}
	return out
}

const (
	L = domain.Long
	S = domain.Short
	N = domain.Neutral
)

func TestCrossNeverCrossingIsNeutral(t *testing.T) {
	n := 200
	a, b := make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = 100 + float64(i)
		b[i] = 50 + float64(i)*0.5
	}

	got := Cross(a, b, stamps(n))
	require.Len(t, got, n)
	for i, s := range got {
		assert.Equal(t, N, s.Direction, "bar %d", i)
	}
}

func TestCrossTransitions(t *testing.T) {
	a := []float64{1, 3, 3, 1, 1, 4}
	b := []float64{2, 2, 2, 2, 2, 2}

	got := Cross(a, b, stamps(6))
	assert.Equal(t, []domain.Direction{N, L, N, S, N, L}, directions(got))
	assert.Equal(t, 1.0, got[1].Strength)
	assert.Equal(t, int64(1001), got[1].Timestamp)
}

func TestCrossSentinelHoldsState(t *testing.T) {
	u := indicator.Undefined

	// Leading sentinels: the first defined bar initialises the state.
	got := Cross([]float64{u, 3, 3}, []float64{2, 2, 2}, stamps(3))
	assert.Equal(t, []domain.Direction{N, N, N}, directions(got))

	// A gap neither triggers nor resets the carried comparison.
	got = Cross([]float64{1, u, 3, u, 3}, []float64{2, 2, 2, 2, u}, stamps(5))
	assert.Equal(t, []domain.Direction{N, N, L, N, N}, directions(got))
}

func TestRSIThreshold(t *testing.T) {
	rsi := []float64{indicator.Undefined, 50, 20, 10, 0, 85, 100, 30, 70}

	got := RSIThreshold(rsi, 30, 70, stamps(len(rsi)))
	assert.Equal(t, []domain.Direction{N, N, L, L, L, S, S, N, N}, directions(got))
	assert.InDelta(t, 1.0/3, got[2].Strength, 1e-12)
	assert.InDelta(t, 2.0/3, got[3].Strength, 1e-12)
	assert.Equal(t, 1.0, got[4].Strength)
	assert.InDelta(t, 0.5, got[5].Strength, 1e-12)
	assert.Equal(t, 1.0, got[6].Strength)
}

func TestBandBreach(t *testing.T) {
	u := indicator.Undefined
	price := []float64{10, 8, 13, 10, 20}
	upper := []float64{u, 12, 12, 12, 12}
	lower := []float64{u, 8.5, 8, 8, 8}

	got := BandBreach(price, upper, lower, stamps(5))
	assert.Equal(t, []domain.Direction{N, L, S, N, S}, directions(got))
	for _, s := range got {
		assert.GreaterOrEqual(t, s.Strength, 0.0)
		assert.LessOrEqual(t, s.Strength, 1.0)
	}
	assert.Equal(t, 1.0, got[4].Strength)
}

func TestFilterConsecutive(t *testing.T) {
	in := []domain.Signal{{Direction: L}, {Direction: L}, {Direction: N}, {Direction: L}, {Direction: S}, {Direction: S}, {Direction: L}}
	got := FilterConsecutive(in)
	assert.Equal(t, []domain.Direction{L, N, N, N, S, N, L}, directions(got))
	// Input is not modified.
	assert.Equal(t, L, in[1].Direction)
}

func TestFilterConsecutiveProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 50; trial++ {
		in := make([]domain.Signal, 500)
		for i := range in {
			in[i].Direction = domain.Direction(rng.IntN(3) - 1)
		}
		out := FilterConsecutive(in)
		require.Len(t, out, len(in))

		last := N
		for i, s := range out {
			if s.Direction == N {
				continue
			}
			assert.NotEqual(t, last, s.Direction, "trial %d bar %d repeats direction", trial, i)
			last = s.Direction
		}
	}
}

func TestVote(t *testing.T) {
	a := []domain.Signal{{Direction: L, Strength: 0.4}, {Direction: L, Strength: 1}, {Direction: S, Strength: 1}, {}}
	b := []domain.Signal{{Direction: L, Strength: 0.8}, {Direction: S, Strength: 1}, {Direction: S, Strength: 0.5}, {}}
	c := []domain.Signal{{Direction: S, Strength: 1}, {}, {}, {Direction: L, Strength: 0.2}}

	got, err := Vote(a, b, c)
	require.NoError(t, err)
	// Bar 3 has one long opinion against two neutral ones.
	assert.Equal(t, []domain.Direction{L, N, S, N}, directions(got))
	assert.InDelta(t, 0.6, got[0].Strength, 1e-12)
	assert.InDelta(t, 0.75, got[2].Strength, 1e-12)
	assert.Zero(t, got[3].Strength)

	// Two longs outvote one short and one neutral; a 2-2 split is a tie.
	d := []domain.Signal{{Direction: L, Strength: 0.5}, {Direction: S, Strength: 1}}
	e := []domain.Signal{{Direction: L, Strength: 1}, {Direction: S, Strength: 1}}
	f := []domain.Signal{{Direction: S, Strength: 1}, {}}
	g := []domain.Signal{{}, {}}
	got, err = Vote(d, e, f, g)
	require.NoError(t, err)
	assert.Equal(t, []domain.Direction{L, N}, directions(got))
	assert.InDelta(t, 0.75, got[0].Strength, 1e-12)

	_, err = Vote(a, b[:2])
	assert.Error(t, err)
	_, err = Vote()
	assert.Error(t, err)
}
