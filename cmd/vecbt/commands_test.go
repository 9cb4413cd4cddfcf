package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"vecbt/internal/engine"
	"vecbt/internal/sweep"
)

func TestParamFlag(t *testing.T) {
	p := paramFlag{}
	for _, s := range []string{"fast_period=5", "allow_short=true", "num_std=2.5", "source=open"} {
		if err := p.Set(s); err != nil {
			t.Fatalf("Set(%q): %v", s, err)
		}
	}
	if v, ok := p["fast_period"].(int); !ok || v != 5 {
		t.Errorf("fast_period = %#v, want int 5", p["fast_period"])
	}
	if v, ok := p["allow_short"].(bool); !ok || !v {
		t.Errorf("allow_short = %#v, want true", p["allow_short"])
	}
	if v, ok := p["num_std"].(float64); !ok || v != 2.5 {
		t.Errorf("num_std = %#v, want 2.5", p["num_std"])
	}
	if got := p.String(); got != "allow_short=true,fast_period=5,num_std=2.5,source=open" {
		t.Errorf("String() = %q", got)
	}

	for _, bad := range []string{"fast_period", "=5"} {
		if err := p.Set(bad); err == nil {
			t.Errorf("Set(%q) should fail", bad)
		}
	}
}

func TestPrintOutcomes(t *testing.T) {
	outcomes := []sweep.Outcome{
		{Index: 0, Params: map[string]any{"fast_period": 5}, Result: &engine.Result{SharpeRatio: 0.5, TotalTrades: 3}},
		{Index: 1, Params: map[string]any{"fast_period": 10}, Result: &engine.Result{SharpeRatio: 1.5, TotalTrades: 2}},
		{Index: 2, Params: map[string]any{"fast_period": 40}, Err: errors.New("fast_period: must be less than slow_period")},
	}

	var buf bytes.Buffer
	printOutcomes(&buf, outcomes, sweep.ObjectiveSharpe, 10, 0)
	out := buf.String()

	if !strings.Contains(out, "Combinations: 3  ok: 2  failed: 1") {
		t.Errorf("missing counts line:\n%s", out)
	}
	if !strings.Contains(out, "Best: fast_period=10 (sharpe=1.5000)") {
		t.Errorf("missing best line:\n%s", out)
	}
	if !strings.Contains(out, "failed 2 (fast_period=40)") {
		t.Errorf("missing failure line:\n%s", out)
	}
	// Rank 1 is the higher Sharpe.
	first := strings.Index(out, "fast_period=10")
	second := strings.Index(out, "fast_period=5")
	if first < 0 || second < 0 || first > second {
		t.Errorf("outcomes not ranked by score:\n%s", out)
	}
}
