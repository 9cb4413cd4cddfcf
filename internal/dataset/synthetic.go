package dataset

import (
	"bufio"
	"io"
	"math"
	"math/rand/v2"
	"strconv"

	"vecbt/internal/domain"
)

// SyntheticOptions parameterises the seeded random-walk generator. Zero
// fields take the defaults noted on each field.
type SyntheticOptions struct {
	Bars       int
	Seed       uint64
	StartPrice float64 // default 100
	StartTime  int64   // default 2024-01-01T00:00:00Z
	Interval   int64   // seconds between bars, default 60
	Volatility float64 // per-bar log-return stddev, default 0.01
}

// Synthetic generates an OHLC-consistent geometric random walk. The same
// options always produce the same Dataset.
func Synthetic(opts SyntheticOptions) *Dataset {
	if opts.StartPrice <= 0 {
		opts.StartPrice = 100
	}
	if opts.StartTime == 0 {
		opts.StartTime = 1704067200
	}
	if opts.Interval <= 0 {
		opts.Interval = 60
	}
	if opts.Volatility <= 0 {
		opts.Volatility = 0.01
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	ds := New(opts.Bars)

	prev := opts.StartPrice
	for i := 0; i < opts.Bars; i++ {
		open := prev
		close := prev * math.Exp(opts.Volatility*rng.NormFloat64())

		// Wicks are bounded to keep Low strictly positive.
		upWick := math.Min(math.Abs(rng.NormFloat64())*opts.Volatility/2, 0.5)
		downWick := math.Min(math.Abs(rng.NormFloat64())*opts.Volatility/2, 0.5)

		ds.Append(domain.Bar{
			Timestamp: opts.StartTime + int64(i)*opts.Interval,
			Open:      open,
			High:      math.Max(open, close) * (1 + upWick),
			Low:       math.Min(open, close) * (1 - downWick),
			Close:     close,
			Volume:    1000 + rng.Float64()*9000,
		})
		prev = close
	}
	return ds
}

// WriteCSV writes ds in the loader's format, header included.
func WriteCSV(w io.Writer, ds *Dataset) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("timestamp,open,high,low,close,volume\n"); err != nil {
		return err
	}

	buf := make([]byte, 0, 128)
	for i := 0; i < ds.Len(); i++ {
		buf = buf[:0]
		buf = strconv.AppendInt(buf, ds.Timestamps[i], 10)
		for _, v := range [...]float64{ds.Opens[i], ds.Highs[i], ds.Lows[i], ds.Closes[i], ds.Volumes[i]} {
			buf = append(buf, ',')
			buf = strconv.AppendFloat(buf, v, 'f', -1, 64)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}
