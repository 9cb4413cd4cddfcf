// Package dataset holds the columnar (struct-of-arrays) bar store consumed
// by every pipeline stage, together with its text loader and a seeded
// synthetic generator.
package dataset

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"vecbt/internal/domain"
)

// Column names a numeric column of a Dataset.
type Column string

const (
	ColumnOpen   Column = "open"
	ColumnHigh   Column = "high"
	ColumnLow    Column = "low"
	ColumnClose  Column = "close"
	ColumnVolume Column = "volume"
)

// ParseColumn maps a case-insensitive name to a Column. The empty string
// selects close.
func ParseColumn(s string) (Column, error) {
	switch c := Column(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return ColumnClose, nil
	case ColumnOpen, ColumnHigh, ColumnLow, ColumnClose, ColumnVolume:
		return c, nil
	default:
		return "", fmt.Errorf("unknown column %q", s)
	}
}

// Dataset stores N bars as parallel slices; index i across all slices
// describes the same bar. A Dataset is read-only once loaded and may be
// shared by concurrent runs.
type Dataset struct {
	Timestamps []int64
	Opens      []float64
	Highs      []float64
	Lows       []float64
	Closes     []float64
	Volumes    []float64

	skipped int

	backing   io.Closer
	closeOnce sync.Once
	closeErr  error
}

// New returns an empty Dataset with room for capacity bars.
func New(capacity int) *Dataset {
	if capacity < 0 {
		capacity = 0
	}
	return &Dataset{
		Timestamps: make([]int64, 0, capacity),
		Opens:      make([]float64, 0, capacity),
		Highs:      make([]float64, 0, capacity),
		Lows:       make([]float64, 0, capacity),
		Closes:     make([]float64, 0, capacity),
		Volumes:    make([]float64, 0, capacity),
	}
}

// FromBars builds a Dataset from a row-oriented slice of bars.
func FromBars(bars []domain.Bar) *Dataset {
	d := New(len(bars))
	for _, b := range bars {
		d.Append(b)
	}
	return d
}

// FromCloses builds a Dataset where every price column equals the given
// closes. Timestamps start at start and advance by interval seconds.
func FromCloses(closes []float64, start, interval int64) *Dataset {
	d := New(len(closes))
	for i, c := range closes {
		d.Append(domain.Bar{
			Timestamp: start + int64(i)*interval,
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
		})
	}
	return d
}

// Append adds one bar. It is intended for construction only.
func (d *Dataset) Append(b domain.Bar) {
	d.Timestamps = append(d.Timestamps, b.Timestamp)
	d.Opens = append(d.Opens, b.Open)
	d.Highs = append(d.Highs, b.High)
	d.Lows = append(d.Lows, b.Low)
	d.Closes = append(d.Closes, b.Close)
	d.Volumes = append(d.Volumes, b.Volume)
}

// Len returns the number of bars.
func (d *Dataset) Len() int {
	return len(d.Closes)
}

// Bar reassembles bar i.
func (d *Dataset) Bar(i int) domain.Bar {
	return domain.Bar{
		Timestamp: d.Timestamps[i],
		Open:      d.Opens[i],
		High:      d.Highs[i],
		Low:       d.Lows[i],
		Close:     d.Closes[i],
		Volume:    d.Volumes[i],
	}
}

// Column returns the backing slice for c. Callers must not modify it.
func (d *Dataset) Column(c Column) ([]float64, error) {
	switch c {
	case ColumnOpen:
		return d.Opens, nil
	case ColumnHigh:
		return d.Highs, nil
	case ColumnLow:
		return d.Lows, nil
	case ColumnClose, "":
		return d.Closes, nil
	case ColumnVolume:
		return d.Volumes, nil
	default:
		return nil, fmt.Errorf("unknown column %q", c)
	}
}

// Validate checks the OHLC invariant for every bar and that all columns
// share one length.
func (d *Dataset) Validate() error {
	n := len(d.Closes)
	if len(d.Timestamps) != n || len(d.Opens) != n || len(d.Highs) != n || len(d.Lows) != n || len(d.Volumes) != n {
		return fmt.Errorf("dataset columns have mismatched lengths")
	}
	for i := 0; i < n; i++ {
		if !d.Bar(i).Valid() {
			return fmt.Errorf("bar %d violates the OHLC invariant", i)
		}
	}
	return nil
}

// Skipped returns how many malformed rows the loader dropped.
func (d *Dataset) Skipped() int {
	return d.skipped
}

// Mapped reports whether the Dataset owns a memory-mapped backing region.
func (d *Dataset) Mapped() bool {
	return d.backing != nil
}

// Close releases the backing region, if any. It is safe to call more than
// once and from several goroutines; the region is released exactly once.
func (d *Dataset) Close() error {
	d.closeOnce.Do(func() {
		if d.backing != nil {
			d.closeErr = d.backing.Close()
		}
	})
	return d.closeErr
}
