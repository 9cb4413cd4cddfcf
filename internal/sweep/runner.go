package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"vecbt/internal/dataset"
	"vecbt/internal/domain"
	"vecbt/internal/engine"
	"vecbt/internal/metrics"
	"vecbt/internal/util"
)

// Outcome is the result of one grid combination. Exactly one of Result and
// Err is set.
type Outcome struct {
	Index  int
	Params map[string]any
	Result *engine.Result
	Err    error
}

// Runner evaluates grids against one shared, read-only dataset.
type Runner struct {
	bt      *engine.Backtester
	workers int
	logger  *slog.Logger
	metrics *metrics.Metrics

	// KeepCurves retains each result's trade log and equity curve. By default
	// they are released as soon as a run completes.
	KeepCurves bool
}

// NewRunner creates a Runner with the given worker count. workers < 1 uses
// runtime.NumCPU().
func NewRunner(bt *engine.Backtester, workers int, logger *slog.Logger, m *metrics.Metrics) *Runner {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Runner{
		bt:      bt,
		workers: workers,
		logger:  util.OrDefault(logger),
		metrics: m,
	}
}

// Run executes one backtest per combination of grid applied over base.
// Combinations that fail validation or execution are recorded in their
// Outcome and do not stop the sweep. ctx is checked between runs; runs in
// flight complete. Outcomes are ordered by combination index.
func (r *Runner) Run(ctx context.Context, ds *dataset.Dataset, base engine.RunConfig, grid Grid) ([]Outcome, error) {
	combos, err := GenerateAll(grid)
	if err != nil {
		return nil, fmt.Errorf("expanding grid: %w", err)
	}

	start := time.Now()
	r.logger.Info("sweep starting",
		"strategy", base.Strategy.DisplayName(),
		"combinations", len(combos),
		"workers", r.workers,
		"bars", ds.Len(),
	)

	outcomes := make([]Outcome, len(combos))
	g := new(errgroup.Group)
	g.SetLimit(r.workers)

	for i, params := range combos {
		outcomes[i] = Outcome{Index: i, Params: params}
		if ctx.Err() != nil {
			outcomes[i].Err = ctx.Err()
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err
				return nil
			}
			outcomes[i].Result, outcomes[i].Err = r.runOne(ds, base, params)
			return nil
		})
	}
	_ = g.Wait()

	var ok, failed int
	for _, o := range outcomes {
		if o.Err == nil {
			ok++
		} else {
			failed++
		}
	}
	r.logger.Info("sweep complete",
		"combinations", len(combos),
		"ok", ok,
		"failed", failed,
		"elapsed", time.Since(start),
	)

	if err := ctx.Err(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func (r *Runner) runOne(ds *dataset.Dataset, base engine.RunConfig, params map[string]any) (*engine.Result, error) {
	cfg, err := base.WithParams(params)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		r.metrics.RecordCombination(metrics.StatusInvalid)
		r.logger.Debug("sweep combination rejected", "params", params, "error", err)
		return nil, err
	}

	res, err := r.bt.Run(ds, cfg, nil)
	if err != nil {
		status := metrics.StatusError
		var cerr *domain.ConfigError
		if errors.As(err, &cerr) {
			status = metrics.StatusInvalid
		}
		r.metrics.RecordCombination(status)
		return nil, err
	}
	res.Params = params
	if !r.KeepCurves {
		res.Release()
	}
	r.metrics.RecordCombination(metrics.StatusOK)
	return res, nil
}
