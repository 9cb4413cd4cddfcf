// Package indicator implements batch technical-indicator kernels over a
// single dataset column. Every kernel returns a series of the same length as
// its input; positions before the lookback window hold Undefined.
//
// Window kernels (SMA, Bollinger) evaluate Lanes independent windows per
// step so the inner loop carries no cross-iteration dependency between
// accumulators. Recurrences (EMA, RSI smoothing) are inherently sequential
// and run as tight scalar loops.
package indicator

import "math"

// Lanes is the number of independent windows evaluated together.
const Lanes = 4

// Undefined marks series positions without enough history. It is NaN, so
// comparisons against it are always false.
var Undefined = math.NaN()

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v float64) bool {
	return v != v
}

func undefinedSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = Undefined
	}
	return out
}

// ---------------------------------------------------------------------------
// Simple moving average
// ---------------------------------------------------------------------------

// SMA returns the simple moving average of in over period bars.
func SMA(in []float64, period int) []float64 {
	out := undefinedSeries(len(in))
	if period < 1 || period > len(in) {
		return out
	}
	smaLanes(in, out, period)
	return out
}

// SMAScalar is the one-window-at-a-time reference for SMA.
func SMAScalar(in []float64, period int) []float64 {
	out := undefinedSeries(len(in))
	if period < 1 || period > len(in) {
		return out
	}
	p := float64(period)
	for i := period - 1; i < len(in); i++ {
		var s float64
		for _, v := range in[i-period+1 : i+1] {
			s += v
		}
		out[i] = s / p
	}
	return out
}

func smaLanes(in, out []float64, period int) {
	p := float64(period)
	first := period - 1
	i := first
	for ; i+Lanes <= len(in); i += Lanes {
		w := in[i-first : i-first+period+Lanes-1]
		var s0, s1, s2, s3 float64
		for j := 0; j < period; j++ {
			s0 += w[j]
			s1 += w[j+1]
			s2 += w[j+2]
			s3 += w[j+3]
		}
		out[i] = s0 / p
		out[i+1] = s1 / p
		out[i+2] = s2 / p
		out[i+3] = s3 / p
	}
	for ; i < len(in); i++ {
		var s float64
		for _, v := range in[i-first : i+1] {
			s += v
		}
		out[i] = s / p
	}
}

// ---------------------------------------------------------------------------
// Exponential moving average
// ---------------------------------------------------------------------------

// EMA returns the exponential moving average with smoothing 2/(period+1),
// seeded with the first defined input. Undefined inputs yield Undefined
// outputs and leave the running average untouched.
func EMA(in []float64, period int) []float64 {
	out := undefinedSeries(len(in))
	if period < 1 {
		return out
	}
	alpha := 2 / float64(period+1)

	start := 0
	for start < len(in) && IsUndefined(in[start]) {
		start++
	}
	if start == len(in) {
		return out
	}

	prev := in[start]
	out[start] = prev
	for i := start + 1; i < len(in); i++ {
		x := in[i]
		if x != x {
			continue
		}
		prev += (x - prev) * alpha
		out[i] = prev
	}
	return out
}

// ---------------------------------------------------------------------------
// Relative strength index
// ---------------------------------------------------------------------------

// RSI returns Wilder's relative strength index. The first value, at index
// period, uses the simple mean of the first period gains and losses.
func RSI(in []float64, period int) []float64 {
	n := len(in)
	out := undefinedSeries(n)
	if period < 1 || n <= period {
		return out
	}
	p := float64(period)

	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := in[i] - in[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain, avgLoss := gain/p, loss/p
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < n; i++ {
		d := in[i] - in[i-1]
		var g, l float64
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*(p-1) + g) / p
		avgLoss = (avgLoss*(p-1) + l) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// ---------------------------------------------------------------------------
// MACD
// ---------------------------------------------------------------------------

// MACDResult holds the three MACD output series.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD returns EMA(fast)-EMA(slow), its EMA over signal bars, and their
// difference.
func MACD(in []float64, fast, slow, signal int) MACDResult {
	fastEMA := EMA(in, fast)
	slowEMA := EMA(in, slow)

	line := make([]float64, len(in))
	for i := range line {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig := EMA(line, signal)

	hist := make([]float64, len(in))
	for i := range hist {
		hist[i] = line[i] - sig[i]
	}
	return MACDResult{MACD: line, Signal: sig, Histogram: hist}
}

// ---------------------------------------------------------------------------
// Bollinger bands
// ---------------------------------------------------------------------------

// BollingerResult holds the band series.
type BollingerResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger returns SMA(period) bands at numStd population standard
// deviations.
func Bollinger(in []float64, period int, numStd float64) BollingerResult {
	n := len(in)
	res := BollingerResult{Upper: undefinedSeries(n), Middle: undefinedSeries(n), Lower: undefinedSeries(n)}
	if period < 1 || period > n {
		return res
	}
	smaLanes(in, res.Middle, period)

	p := float64(period)
	first := period - 1
	i := first
	for ; i+Lanes <= n; i += Lanes {
		w := in[i-first : i-first+period+Lanes-1]
		m0, m1, m2, m3 := res.Middle[i], res.Middle[i+1], res.Middle[i+2], res.Middle[i+3]
		var v0, v1, v2, v3 float64
		for j := 0; j < period; j++ {
			d0 := w[j] - m0
			d1 := w[j+1] - m1
			d2 := w[j+2] - m2
			d3 := w[j+3] - m3
			v0 += d0 * d0
			v1 += d1 * d1
			v2 += d2 * d2
			v3 += d3 * d3
		}
		setBand(&res, i, numStd*math.Sqrt(v0/p))
		setBand(&res, i+1, numStd*math.Sqrt(v1/p))
		setBand(&res, i+2, numStd*math.Sqrt(v2/p))
		setBand(&res, i+3, numStd*math.Sqrt(v3/p))
	}
	for ; i < n; i++ {
		setBand(&res, i, numStd*windowStd(in[i-first:i+1], res.Middle[i]))
	}
	return res
}

// BollingerScalar is the one-window-at-a-time reference for Bollinger.
func BollingerScalar(in []float64, period int, numStd float64) BollingerResult {
	n := len(in)
	res := BollingerResult{Upper: undefinedSeries(n), Middle: SMAScalar(in, period), Lower: undefinedSeries(n)}
	if period < 1 || period > n {
		return res
	}
	for i := period - 1; i < n; i++ {
		setBand(&res, i, numStd*windowStd(in[i-period+1:i+1], res.Middle[i]))
	}
	return res
}

func windowStd(w []float64, mean float64) float64 {
	var v float64
	for _, x := range w {
		d := x - mean
		v += d * d
	}
	return math.Sqrt(v / float64(len(w)))
}

func setBand(res *BollingerResult, i int, half float64) {
	res.Upper[i] = res.Middle[i] + half
	res.Lower[i] = res.Middle[i] - half
}
