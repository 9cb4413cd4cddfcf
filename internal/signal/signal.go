// Package signal turns indicator series into per-bar directional opinions
// and reduces opinions to trigger edges for the order simulator.
//
// Generators return opinions: an RSI strategy says "long" for every bar the
// oscillator stays oversold. FilterConsecutive converts opinions to edges so
// only direction changes reach the simulator.
package signal

import (
	"fmt"

	"vecbt/internal/domain"
	"vecbt/internal/indicator"
)

// Neutral returns an all-neutral signal array stamped with ts.
func Neutral(ts []int64) []domain.Signal {
	out := make([]domain.Signal, len(ts))
	for i, t := range ts {
		out[i].Timestamp = t
	}
	return out
}

// Cross tracks whether a is above b. The first bar where both inputs are
// defined initialises the state without emitting. Afterwards a false->true
// transition emits Long and true->false emits Short, each with strength 1.
// Bars where either input is undefined are neutral and leave the carried
// state untouched. a, b and ts must share one length.
func Cross(a, b []float64, ts []int64) []domain.Signal {
	out := Neutral(ts)

	resolved := false
	above := false
	for i := range out {
		x, y := a[i], b[i]
		if indicator.IsUndefined(x) || indicator.IsUndefined(y) {
			continue
		}
		now := x > y
		if !resolved {
			resolved = true
			above = now
			continue
		}
		if now == above {
			continue
		}
		above = now
		if now {
			out[i].Direction = domain.Long
		} else {
			out[i].Direction = domain.Short
		}
		out[i].Strength = 1
	}
	return out
}

// Threshold emits Long where values fall below low and Short where they rise
// above high. Strength is the distance beyond the threshold divided by
// lowScale (or highScale), clamped to [0, 1]. Undefined values are neutral.
func Threshold(values []float64, low, high, lowScale, highScale float64, ts []int64) []domain.Signal {
	out := Neutral(ts)
	n := len(out)

	i := 0
	for ; i+indicator.Lanes <= n; i += indicator.Lanes {
		out[i].Direction, out[i].Strength = classify(values[i], low, high, lowScale, highScale)
		out[i+1].Direction, out[i+1].Strength = classify(values[i+1], low, high, lowScale, highScale)
		out[i+2].Direction, out[i+2].Strength = classify(values[i+2], low, high, lowScale, highScale)
		out[i+3].Direction, out[i+3].Strength = classify(values[i+3], low, high, lowScale, highScale)
	}
	for ; i < n; i++ {
		out[i].Direction, out[i].Strength = classify(values[i], low, high, lowScale, highScale)
	}
	return out
}

func classify(v, low, high, lowScale, highScale float64) (domain.Direction, float64) {
	switch {
	case v < low:
		return domain.Long, normalized(low-v, lowScale)
	case v > high:
		return domain.Short, normalized(v-high, highScale)
	default:
		// Covers the undefined sentinel: NaN fails both comparisons.
		return domain.Neutral, 0
	}
}

// RSIThreshold is Threshold on the 0-100 oscillator scale: oversold readings
// are Long, overbought readings Short.
func RSIThreshold(rsi []float64, oversold, overbought float64, ts []int64) []domain.Signal {
	return Threshold(rsi, oversold, overbought, oversold, 100-overbought, ts)
}

// BandBreach emits Long where price closes below the lower band and Short
// where it closes above the upper band. Strength is the breach distance in
// units of the band half-width.
func BandBreach(price, upper, lower []float64, ts []int64) []domain.Signal {
	out := Neutral(ts)
	for i := range out {
		p, u, l := price[i], upper[i], lower[i]
		if indicator.IsUndefined(p) || indicator.IsUndefined(u) || indicator.IsUndefined(l) {
			continue
		}
		half := (u - l) / 2
		switch {
		case p < l:
			out[i].Direction, out[i].Strength = domain.Long, normalized(l-p, half)
		case p > u:
			out[i].Direction, out[i].Strength = domain.Short, normalized(p-u, half)
		}
	}
	return out
}

func normalized(distance, scale float64) float64 {
	if scale <= 0 {
		return 1
	}
	s := distance / scale
	if s > 1 {
		return 1
	}
	if s < 0 {
		return 0
	}
	return s
}

// FilterConsecutive returns a copy of in where every non-neutral signal that
// repeats the direction of the previous non-neutral signal is replaced by a
// neutral one.
func FilterConsecutive(in []domain.Signal) []domain.Signal {
	out := make([]domain.Signal, len(in))
	last := domain.Neutral
	for i, s := range in {
		out[i].Timestamp = s.Timestamp
		if s.Direction == domain.Neutral || s.Direction == last {
			continue
		}
		last = s.Direction
		out[i] = s
	}
	return out
}

// Vote merges opinion arrays by majority of direction. Neutral counts as a
// direction, so Long wins only with more members than both Short and
// Neutral. The winning strength is the mean strength of the members that
// voted for it. Any tie for first place is neutral.
func Vote(arrays ...[]domain.Signal) ([]domain.Signal, error) {
	if len(arrays) == 0 {
		return nil, fmt.Errorf("vote needs at least one signal array")
	}
	n := len(arrays[0])
	for k, a := range arrays[1:] {
		if len(a) != n {
			return nil, fmt.Errorf("signal array %d has length %d, want %d", k+1, len(a), n)
		}
	}

	out := make([]domain.Signal, n)
	for i := 0; i < n; i++ {
		out[i].Timestamp = arrays[0][i].Timestamp

		var longs, shorts, neutrals int
		var longStrength, shortStrength float64
		for _, a := range arrays {
			switch s := a[i]; s.Direction {
			case domain.Long:
				longs++
				longStrength += s.Strength
			case domain.Short:
				shorts++
				shortStrength += s.Strength
			default:
				neutrals++
			}
		}
		switch {
		case longs > shorts && longs > neutrals:
			out[i].Direction = domain.Long
			out[i].Strength = longStrength / float64(longs)
		case shorts > longs && shorts > neutrals:
			out[i].Direction = domain.Short
			out[i].Strength = shortStrength / float64(shorts)
		}
	}
	return out, nil
}
