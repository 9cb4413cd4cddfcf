// Package engine runs the backtest pipeline: it validates a run, generates
// and filters signals, simulates execution, and analyses the outcome.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vecbt/internal/analytics"
	"vecbt/internal/broker"
	"vecbt/internal/dataset"
	"vecbt/internal/domain"
	"vecbt/internal/metrics"
	"vecbt/internal/signal"
	"vecbt/internal/strategy"
	"vecbt/internal/strategy/builtins"
	"vecbt/internal/util"
)

// Stage names a pipeline step reported through progress callbacks.
type Stage string

const (
	StageValidate Stage = "validate"
	StageGenerate Stage = "generate"
	StageFilter   Stage = "filter"
	StageSimulate Stage = "simulate"
	StageAnalyze  Stage = "analyze"
)

// Progress is one milestone of a run.
type Progress struct {
	Stage         Stage
	BarsProcessed int
	TotalBars     int
}

// Percent returns the share of bars simulated so far.
func (p Progress) Percent() float64 {
	if p.TotalBars == 0 {
		return 100
	}
	return float64(p.BarsProcessed) / float64(p.TotalBars) * 100
}

// ProgressFunc receives run milestones. It is called on the run's goroutine.
type ProgressFunc func(Progress)

// RunError reports a failed run with the strategy and how far it got.
type RunError struct {
	Strategy      string
	BarsProcessed int
	Err           error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("backtest %s failed after %d bars: %v", e.Strategy, e.BarsProcessed, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Backtester replays datasets through strategies built from its registry.
// It holds no per-run state and is safe for concurrent use.
type Backtester struct {
	registry *strategy.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewBacktester creates a Backtester. A nil registry uses the built-in
// kinds; a nil logger uses slog.Default(); a nil m disables metrics.
func NewBacktester(registry *strategy.Registry, logger *slog.Logger, m *metrics.Metrics) *Backtester {
	if registry == nil {
		registry = builtins.NewRegistry()
	}
	return &Backtester{
		registry: registry,
		logger:   util.OrDefault(logger),
		metrics:  m,
	}
}

// RunFile loads path and runs cfg over it. The configuration is validated
// before the file is touched. The dataset is released before returning.
func (bt *Backtester) RunFile(path string, opts dataset.LoadOptions, cfg RunConfig, progress ProgressFunc) (*Result, error) {
	name := cfg.Strategy.DisplayName()
	if err := cfg.Validate(); err != nil {
		return nil, bt.fail(name, 0, metrics.StatusInvalid, err)
	}

	if opts.Logger == nil {
		opts.Logger = bt.logger
	}
	ds, err := dataset.Load(path, opts)
	if err != nil {
		return nil, bt.fail(name, 0, metrics.StatusError, err)
	}
	defer ds.Close()

	return bt.Run(ds, cfg, progress)
}

// Run executes one backtest of cfg over ds. ds is only read.
func (bt *Backtester) Run(ds *dataset.Dataset, cfg RunConfig, progress ProgressFunc) (res *Result, err error) {
	start := time.Now()
	name := cfg.Strategy.DisplayName()
	n := ds.Len()
	processed := 0

	defer func() {
		if r := recover(); r != nil {
			bt.logger.Error("backtest aborted",
				"strategy", name,
				"bars_processed", processed,
				"total_bars", n,
				"panic", r,
			)
			bt.metrics.RecordFailure(name, metrics.StatusError)
			panic(r)
		}
	}()

	emit := func(stage Stage) {
		if progress != nil {
			progress(Progress{Stage: stage, BarsProcessed: processed, TotalBars: n})
		}
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, bt.fail(name, 0, metrics.StatusInvalid, err)
	}
	strat, err := bt.registry.Build(cfg.Strategy)
	if err != nil {
		return nil, bt.fail(name, 0, metrics.StatusInvalid, err)
	}
	exec := cfg.Execution.WithDefaults()
	name = strat.Name()
	emit(StageValidate)

	// Generate opinions.
	opinions, err := strat.Generate(ds)
	if err != nil {
		return nil, bt.fail(name, 0, metrics.StatusError, fmt.Errorf("generating signals: %w", err))
	}
	if len(opinions) != n {
		return nil, bt.fail(name, 0, metrics.StatusError,
			fmt.Errorf("strategy returned %d signals for %d bars", len(opinions), n))
	}
	emit(StageGenerate)

	// Reduce opinions to entry/exit triggers.
	triggers := signal.FilterConsecutive(opinions)
	emit(StageFilter)

	// Simulate.
	sim := broker.NewSimulator(exec)
	if step := n / 10; step > 0 {
		sim.OnProgress(step, func(p int) {
			processed = p
			emit(StageSimulate)
		})
	}
	out, err := sim.Run(ds, triggers)
	if err != nil {
		return nil, bt.fail(name, processed, metrics.StatusError, err)
	}
	if processed != n {
		processed = n
		emit(StageSimulate)
	}

	// Analyse.
	stats := analytics.Compute(out.InitialCapital, out.Equity, out.Trades, cfg.Analytics)
	elapsed := time.Since(start)
	emit(StageAnalyze)

	res = &Result{
		RunID:          uuid.NewString(),
		Strategy:       name,
		Bars:           n,
		Elapsed:        elapsed,
		InitialCapital: out.InitialCapital,
		FinalCapital:   out.FinalCapital,
		TotalReturn:    out.FinalCapital - out.InitialCapital,
		TotalReturnPct: (out.FinalCapital - out.InitialCapital) / out.InitialCapital * 100,
		SharpeRatio:    stats.SharpeRatio,
		SortinoRatio:   stats.SortinoRatio,
		MaxDrawdown:    out.MaxDrawdown,
		MaxDrawdownPct: out.MaxDrawdownPct,
		TotalTrades:    stats.Trades.Total,
		WinRate:        stats.Trades.WinRate,
		ProfitFactor:   stats.Trades.ProfitFactor,
		AvgWin:         stats.Trades.AvgWin,
		AvgLoss:        stats.Trades.AvgLoss,
		Commission:     stats.Trades.Commission,
		Trades:         out.Trades,
		Equity:         out.Equity,
		CreatedAt:      start,
	}
	if s := elapsed.Seconds(); s > 0 {
		res.BarsPerSecond = float64(n) / s
	}

	bt.metrics.RecordRun(name, n, res.TotalTrades, elapsed)
	bt.logger.Info("backtest complete",
		"run_id", res.RunID,
		"strategy", name,
		"bars", n,
		"trades", res.TotalTrades,
		"return_pct", res.TotalReturnPct,
		"elapsed", elapsed,
		"bars_per_second", res.BarsPerSecond,
	)
	return res, nil
}

func (bt *Backtester) fail(name string, processed int, status string, err error) error {
	var cerr *domain.ConfigError
	if errors.As(err, &cerr) {
		status = metrics.StatusInvalid
	}
	bt.metrics.RecordFailure(name, status)
	bt.logger.Error("backtest failed",
		"strategy", name,
		"bars_processed", processed,
		"error", err,
	)
	return &RunError{Strategy: name, BarsProcessed: processed, Err: err}
}
