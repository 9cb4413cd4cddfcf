package engine

import (
	"fmt"
	"io"
	"maps"
	"math"
	"time"

	"vecbt/internal/domain"
)

// PerformanceTarget is the throughput, in bars per second, a run is
// expected to sustain.
const PerformanceTarget = 100_000

// Result holds the outcome of one backtest run.
type Result struct {
	RunID    string
	Strategy string
	// Params records the sweep parameters that produced this run, if any.
	Params map[string]any

	Bars          int
	Elapsed       time.Duration
	BarsPerSecond float64

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
	AvgWin         float64
	AvgLoss        float64
	Commission     float64

	Trades []domain.Trade
	Equity []domain.EquitySnapshot

	CreatedAt time.Time
}

// MeetsPerformanceTarget reports whether the run reached PerformanceTarget.
func (r *Result) MeetsPerformanceTarget() bool {
	return r.BarsPerSecond >= PerformanceTarget
}

// Release drops the trade log and equity curve. Summary fields stay valid.
func (r *Result) Release() {
	r.Trades = nil
	r.Equity = nil
}

// Summary flattens the result for persistence.
func (r *Result) Summary() domain.RunSummary {
	return domain.RunSummary{
		ID:             r.RunID,
		Strategy:       r.Strategy,
		Params:         maps.Clone(r.Params),
		Bars:           r.Bars,
		Elapsed:        r.Elapsed,
		BarsPerSecond:  r.BarsPerSecond,
		InitialCapital: r.InitialCapital,
		FinalCapital:   r.FinalCapital,
		TotalReturn:    r.TotalReturn,
		TotalReturnPct: r.TotalReturnPct,
		SharpeRatio:    r.SharpeRatio,
		SortinoRatio:   r.SortinoRatio,
		MaxDrawdown:    r.MaxDrawdown,
		MaxDrawdownPct: r.MaxDrawdownPct,
		TotalTrades:    r.TotalTrades,
		WinRate:        r.WinRate,
		ProfitFactor:   r.ProfitFactor,
		CreatedAt:      r.CreatedAt,
	}
}

// PrintSummary writes a human-readable report to w.
func (r *Result) PrintSummary(w io.Writer) error {
	target := "below target"
	if r.MeetsPerformanceTarget() {
		target = "meets target"
	}
	pf := fmt.Sprintf("%.2f", r.ProfitFactor)
	if math.IsInf(r.ProfitFactor, 1) {
		pf = "inf"
	}

	_, err := fmt.Fprintf(w, `=== Backtest %s ===
Run ID:          %s
Bars:            %d
Elapsed:         %s
Throughput:      %.0f bars/s (%s)

Initial capital: %.2f
Final capital:   %.2f
Total return:    %.2f (%.2f%%)
Sharpe ratio:    %.3f
Sortino ratio:   %.3f
Max drawdown:    %.2f (%.2f%%)

Trades:          %d
Win rate:        %.1f%%
Profit factor:   %s
Avg win:         %.2f
Avg loss:        %.2f
Commission:      %.2f
`,
		r.Strategy, r.RunID, r.Bars, r.Elapsed.Round(time.Microsecond), r.BarsPerSecond, target,
		r.InitialCapital, r.FinalCapital, r.TotalReturn, r.TotalReturnPct,
		r.SharpeRatio, r.SortinoRatio, r.MaxDrawdown, r.MaxDrawdownPct,
		r.TotalTrades, r.WinRate*100, pf, r.AvgWin, r.AvgLoss, r.Commission,
	)
	return err
}
