package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecbt/internal/dataset"
)

const tolerance = 1e-9

func closes(n int) []float64 {
	return dataset.Synthetic(dataset.SyntheticOptions{Bars: n, Seed: 11}).Closes
}

func assertSeriesClose(t *testing.T, want, got []float64, label string) {
	t.Helper()
	require.Len(t, got, len(want), label)
	for i := range want {
		if IsUndefined(want[i]) {
			assert.True(t, IsUndefined(got[i]), "%s[%d] = %v, want undefined", label, i, got[i])
			continue
		}
		assert.InDelta(t, want[i], got[i], tolerance, "%s[%d]", label, i)
	}
}

func TestSMALanesMatchScalar(t *testing.T) {
	for _, n := range []int{1, 3, 4, 5, 17, 250, 1001} {
		in := closes(n)
		for period := 1; period <= 40; period++ {
			assertSeriesClose(t, SMAScalar(in, period), SMA(in, period), "sma")
		}
	}
}

func TestBollingerLanesMatchScalar(t *testing.T) {
	for _, n := range []int{2, 7, 64, 333} {
		in := closes(n)
		for period := 1; period <= 30; period++ {
			want := BollingerScalar(in, period, 2)
			got := Bollinger(in, period, 2)
			assertSeriesClose(t, want.Middle, got.Middle, "middle")
			assertSeriesClose(t, want.Upper, got.Upper, "upper")
			assertSeriesClose(t, want.Lower, got.Lower, "lower")
		}
	}
}

func TestSMAValuesAndSentinel(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5, 6}, 3)

	require.Len(t, got, 6)
	assert.True(t, IsUndefined(got[0]))
	assert.True(t, IsUndefined(got[1]))
	assert.NotEqual(t, 0.0, got[1], "sentinel must not be zero")
	assert.InDelta(t, 2.0, got[2], tolerance)
	assert.InDelta(t, 5.0, got[5], tolerance)
}

func TestKernelsBadPeriod(t *testing.T) {
	in := []float64{1, 2, 3}
	for _, s := range [][]float64{SMA(in, 0), SMA(in, 4), RSI(in, 3), Bollinger(in, 5, 2).Middle, EMA(in, 0)} {
		require.Len(t, s, 3)
		for _, v := range s {
			assert.True(t, IsUndefined(v))
		}
	}
}

func TestEMARecurrence(t *testing.T) {
	in := []float64{10, 11, 12, 11, 13}
	got := EMA(in, 3)

	alpha := 2.0 / 4.0
	want := []float64{10, 0, 0, 0, 0}
	for i := 1; i < len(in); i++ {
		want[i] = want[i-1] + (in[i]-want[i-1])*alpha
	}
	assertSeriesClose(t, want, got, "ema")
}

func TestEMASkipsLeadingUndefined(t *testing.T) {
	got := EMA([]float64{Undefined, Undefined, 4, 6}, 1)
	assert.True(t, IsUndefined(got[0]))
	assert.True(t, IsUndefined(got[1]))
	assert.Equal(t, 4.0, got[2])
	assert.Equal(t, 6.0, got[3])
}

func TestRSI(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6}
	got := RSI(up, 3)
	assert.True(t, IsUndefined(got[2]))
	for i := 3; i < len(up); i++ {
		assert.Equal(t, 100.0, got[i], "rising series has no losses")
	}

	// Gains 2, losses 1 over the seed window: RS = (2/3)/(1/3) = 2.
	mixed := []float64{10, 11, 10, 11}
	got = RSI(mixed, 3)
	assert.InDelta(t, 100-100/3.0, got[3], tolerance)

	for _, v := range RSI(closes(500), 14)[14:] {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestMACDIdentity(t *testing.T) {
	in := closes(300)
	res := MACD(in, 12, 26, 9)

	fast, slow := EMA(in, 12), EMA(in, 26)
	require.Len(t, res.MACD, len(in))
	require.Len(t, res.Signal, len(in))
	require.Len(t, res.Histogram, len(in))
	for i := range in {
		assert.InDelta(t, fast[i]-slow[i], res.MACD[i], tolerance)
		assert.InDelta(t, res.MACD[i]-res.Signal[i], res.Histogram[i], tolerance)
	}
}

func TestBollingerConstantSeries(t *testing.T) {
	in := []float64{5, 5, 5, 5, 5, 5, 5}
	res := Bollinger(in, 3, 2)
	for i := 2; i < len(in); i++ {
		assert.Equal(t, 5.0, res.Middle[i])
		assert.Equal(t, 5.0, res.Upper[i])
		assert.Equal(t, 5.0, res.Lower[i])
	}

	res = Bollinger([]float64{1, 3, 1, 3}, 2, 1)
	assert.InDelta(t, 3.0, res.Upper[1], tolerance)
	assert.InDelta(t, 1.0, res.Lower[1], tolerance)
	assert.False(t, math.IsNaN(res.Upper[3]))
}

func BenchmarkSMA(b *testing.B) {
	in := closes(100_000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SMA(in, 30)
	}
}

func BenchmarkSMAScalar(b *testing.B) {
	in := closes(100_000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SMAScalar(in, 30)
	}
}

func BenchmarkEMA(b *testing.B) {
	in := closes(100_000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		EMA(in, 30)
	}
}
