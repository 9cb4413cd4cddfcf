package domain

import (
	"math"
	"testing"
	"time"
)

func TestTypesExist(t *testing.T) {
	// Verify Bar can be instantiated with zero values.
	bar := Bar{}
	if bar.Timestamp != 0 {
		t.Error("expected zero Timestamp for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 {
		t.Error("expected zero OHLC values for zero-value Bar")
	}
	if bar.Volume != 0 {
		t.Error("expected zero Volume for zero-value Bar")
	}

	// Zero-value signal is a neutral opinion.
	sig := Signal{}
	if sig.Direction != Neutral {
		t.Errorf("zero Signal.Direction = %v, want neutral", sig.Direction)
	}

	trade := Trade{}
	if trade.Side != "" {
		t.Error("expected empty Side for zero-value Trade")
	}
	if trade.PnL != 0 || trade.Size != 0 || trade.Commission != 0 {
		t.Error("expected zero PnL/Size/Commission for zero-value Trade")
	}

	// Verify enum constants are defined correctly.
	if PositionSideLong != "long" || PositionSideShort != "short" {
		t.Error("PositionSide constants have unexpected values")
	}
	if Long.String() != "long" || Short.String() != "short" || Neutral.String() != "neutral" {
		t.Error("Direction.String returned unexpected values")
	}
}

func TestBarValid(t *testing.T) {
	tests := []struct {
		name string
		bar  Bar
		want bool
	}{
		{"ok", Bar{Open: 10, High: 12, Low: 9, Close: 11, Volume: 100}, true},
		{"flat", Bar{Open: 10, High: 10, Low: 10, Close: 10}, true},
		{"high below close", Bar{Open: 10, High: 10.5, Low: 9, Close: 11, Volume: 1}, false},
		{"low above open", Bar{Open: 9, High: 12, Low: 9.5, Close: 11, Volume: 1}, false},
		{"negative volume", Bar{Open: 10, High: 12, Low: 9, Close: 11, Volume: -1}, false},
		{"nan close", Bar{Open: 10, High: 12, Low: 9, Close: math.NaN(), Volume: 1}, false},
		{"inf high", Bar{Open: 10, High: math.Inf(1), Low: 9, Close: 11, Volume: 1}, false},
		{"inf everything", Bar{Open: math.Inf(1), High: math.Inf(1), Low: math.Inf(1), Close: math.Inf(1), Volume: 1}, false},
		{"-inf low", Bar{Open: 10, High: 12, Low: math.Inf(-1), Close: 11, Volume: 1}, false},
		{"inf volume", Bar{Open: 10, High: 12, Low: 9, Close: 11, Volume: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		if got := tt.bar.Valid(); got != tt.want {
			t.Errorf("%s: Valid() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestBarTime(t *testing.T) {
	b := Bar{Timestamp: 1704067200}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !b.Time().Equal(want) {
		t.Errorf("Time() = %v, want %v", b.Time(), want)
	}
}
