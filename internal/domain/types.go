// Package domain defines the core value types shared by every stage of the
// backtesting pipeline: bars, signals, trades and equity snapshots.
package domain

import (
	"math"
	"time"
)

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is a single OHLCV observation. Timestamp is Unix epoch seconds.
type Bar struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Valid reports whether the bar satisfies the OHLC invariant: High is the
// largest price, Low the smallest, and Volume is non-negative. Every field
// must be finite.
func (b Bar) Valid() bool {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if b.High < math.Max(math.Max(b.Open, b.Close), b.Low) {
		return false
	}
	if b.Low > math.Min(math.Min(b.Open, b.Close), b.High) {
		return false
	}
	return b.Volume >= 0
}

// Time returns the bar timestamp as a UTC time.Time.
func (b Bar) Time() time.Time {
	return time.Unix(b.Timestamp, 0).UTC()
}

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

// Direction is the directional opinion carried by a signal.
type Direction int8

const (
	Short   Direction = -1
	Neutral Direction = 0
	Long    Direction = 1
)

// String returns "long", "short" or "neutral".
func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "neutral"
	}
}

// Signal is one directional opinion aligned with a dataset bar. Strength is
// in [0, 1].
type Signal struct {
	Direction Direction
	Strength  float64
	Timestamp int64
}

// ---------------------------------------------------------------------------
// Simulation output
// ---------------------------------------------------------------------------

// PositionSide identifies which way a simulated position was held.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// Trade is one completed round trip recorded by the order simulator.
type Trade struct {
	EntryIndex int
	ExitIndex  int
	EntryTime  int64
	ExitTime   int64
	EntryPrice float64
	ExitPrice  float64
	Side       PositionSide
	Size       float64
	PnL        float64
	PnLPct     float64 // percent of the entry cost basis
	Commission float64 // entry + exit
}

// EquitySnapshot is one sampled point of the equity curve.
type EquitySnapshot struct {
	Timestamp   int64
	Equity      float64
	Drawdown    float64
	DrawdownPct float64
}

// RunSummary is the flat, persistable digest of one backtest run.
type RunSummary struct {
	ID             string
	Strategy       string
	Params         map[string]any
	Bars           int
	Elapsed        time.Duration
	BarsPerSecond  float64
	InitialCapital float64
	FinalCapital   float64
	TotalReturn    float64
	TotalReturnPct float64
	SharpeRatio    float64
	SortinoRatio   float64
	MaxDrawdown    float64
	MaxDrawdownPct float64
	TotalTrades    int
	WinRate        float64
	ProfitFactor   float64
	CreatedAt      time.Time
}
