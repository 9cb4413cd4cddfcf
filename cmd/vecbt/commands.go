package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"vecbt/internal/config"
	"vecbt/internal/dataset"
	"vecbt/internal/engine"
	"vecbt/internal/metrics"
	"vecbt/internal/store"
	"vecbt/internal/strategy"
	"vecbt/internal/strategy/builtins"
	"vecbt/internal/sweep"
	"vecbt/internal/util"
)

const defaultConfigPath = "config/vecbt.yaml"

// ---------------------------------------------------------------------------
// Shared setup
// ---------------------------------------------------------------------------

// paramFlag collects repeated -set name=value flags. Values are decoded as
// YAML scalars so "5" becomes an int and "true" a bool.
type paramFlag map[string]any

func (p paramFlag) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, p[k])
	}
	return strings.Join(parts, ",")
}

func (p paramFlag) Set(s string) error {
	name, raw, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return fmt.Errorf("value of %s: %w", name, err)
	}
	p[name] = v
	return nil
}

// commonFlags are accepted by every command that touches config or data.
type commonFlags struct {
	config *string
	data   *string
	mmap   *bool
	strict *bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		config: fs.String("config", "", "config file (default $VECBT_CONFIG or "+defaultConfigPath+" when present)"),
		data:   fs.String("data", "", "bar file to replay (.csv or .parquet); overrides data.path"),
		mmap:   fs.Bool("mmap", false, "memory-map CSV input"),
		strict: fs.Bool("strict", false, "fail on the first malformed CSV row"),
	}
}

// loadConfig resolves the config file and applies flags that were set
// explicitly on the command line.
func loadConfig(fs *flag.FlagSet, c *commonFlags) (*config.Config, error) {
	path := *c.config
	if path == "" {
		path = os.Getenv("VECBT_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	var cfg *config.Config
	if path == "" {
		cfg = config.Default()
	} else {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.Data.Path = *c.data
		case "mmap":
			cfg.Data.Mmap = *c.mmap
		case "strict":
			cfg.Data.Strict = *c.strict
		}
	})
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr so stdout stays
// clean for reports; a configured file receives a rotated copy.
func newLogger(cfg config.Logging) (*slog.Logger, func()) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.File != "" {
		fw := util.NewFileWriter(cfg.File)
		w = io.MultiWriter(os.Stderr, fw)
		closeFn = func() { fw.Close() }
	}
	logger := util.NewLoggerWithFormat(cfg.Level, cfg.Format, w)
	util.SetDefault(logger)
	return logger, closeFn
}

// loadDataset picks the bar source: data.path, then data.dataset from the
// Parquet store, then synthetic bars.
func loadDataset(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dataset.Dataset, error) {
	var (
		ds  *dataset.Dataset
		err error
		src string
	)
	switch {
	case strings.EqualFold(filepath.Ext(cfg.Data.Path), ".parquet"):
		src = cfg.Data.Path
		ds, err = store.ReadDatasetFile(cfg.Data.Path)
	case cfg.Data.Path != "":
		src = cfg.Data.Path
		ds, err = dataset.Load(cfg.Data.Path, dataset.LoadOptions{
			Mmap:   cfg.Data.Mmap,
			Strict: cfg.Data.Strict,
			Logger: logger,
		})
	case cfg.Data.Dataset != "":
		src = "store:" + cfg.Data.Dataset
		ds, err = store.NewParquetStore(cfg.Storage.DataDir).ReadDataset(ctx, cfg.Data.Dataset)
	default:
		src = "synthetic"
		ds = dataset.Synthetic(dataset.SyntheticOptions{
			Bars: cfg.Data.Synthetic.Bars,
			Seed: cfg.Data.Synthetic.Seed,
		})
	}
	if err != nil {
		return nil, err
	}
	logger.Info("dataset loaded", "source", src, "bars", ds.Len(), "skipped", ds.Skipped(), "mapped", ds.Mapped())
	return ds, nil
}

// serveMetrics exposes /metrics on addr until the returned stop function is
// called. An empty addr is a no-op.
func serveMetrics(addr string, logger *slog.Logger) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(prometheus.DefaultGatherer))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("metrics shutdown error", "error", err)
		}
	}
}

// openRunStore opens the SQLite run database, creating its directory.
func openRunStore(cfg *config.Config) (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(cfg.Storage.SQLitePath)
}

// persistResult saves the run summary and trades to SQLite and, when the
// curves are still attached, the trade log and equity curve to Parquet.
func persistResult(ctx context.Context, db *store.SQLiteStore, ps *store.ParquetStore, res *engine.Result) error {
	if err := db.SaveRun(ctx, res.Summary(), res.Trades); err != nil {
		return err
	}
	if res.Equity == nil {
		return nil
	}
	if err := ps.WriteTrades(ctx, res.RunID, res.Trades); err != nil {
		return err
	}
	return ps.WriteEquity(ctx, res.RunID, res.Equity)
}

func progressLogger(logger *slog.Logger) engine.ProgressFunc {
	return func(p engine.Progress) {
		logger.Debug("progress", "stage", p.Stage, "bars", p.BarsProcessed, "total", p.TotalBars,
			"pct", fmt.Sprintf("%.0f", p.Percent()))
	}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	common := addCommonFlags(fs)
	kind := fs.String("strategy", "", "strategy kind; overrides backtest.strategy.kind")
	persist := fs.Bool("persist", false, "save the run to SQLite and Parquet")
	params := paramFlag{}
	fs.Var(params, "set", "override a parameter, name=value (repeatable)")
	fs.Parse(args)

	cfg, err := loadConfig(fs, common)
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(cfg.Logging)
	defer closeLog()

	rc := cfg.Backtest
	if *kind != "" {
		rc.Strategy.Kind = strategy.Kind(*kind)
	}
	if len(params) > 0 {
		if rc, err = rc.WithParams(params); err != nil {
			return err
		}
	}
	// Reject bad configs before loading a potentially large file.
	if err := rc.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stopMetrics := serveMetrics(cfg.Metrics.Addr, logger)
	defer stopMetrics()

	ds, err := loadDataset(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ds.Close()

	bt := engine.NewBacktester(nil, logger, metrics.New(nil))
	res, err := bt.Run(ds, rc, progressLogger(logger))
	if err != nil {
		return err
	}
	if len(params) > 0 {
		res.Params = map[string]any(params)
	}
	if err := res.PrintSummary(os.Stdout); err != nil {
		return err
	}

	if *persist || cfg.Storage.Persist {
		db, err := openRunStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := persistResult(ctx, db, store.NewParquetStore(cfg.Storage.DataDir), res); err != nil {
			return fmt.Errorf("persisting run %s: %w", res.RunID, err)
		}
		logger.Info("run persisted", "run_id", res.RunID, "db", cfg.Storage.SQLitePath)
	}
	return nil
}

func sweepCommand(args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	common := addCommonFlags(fs)
	workers := fs.Int("workers", 0, "parallel runs (default sweep.workers, then NumCPU)")
	objective := fs.String("objective", "", "ranking objective: sharpe, sortino, return, profit_factor, win_rate, drawdown")
	top := fs.Int("top", 10, "number of ranked combinations to print")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	persist := fs.Bool("persist", false, "save every successful combination to SQLite")
	fs.Parse(args)

	cfg, err := loadConfig(fs, common)
	if err != nil {
		return err
	}
	if *workers > 0 {
		cfg.Sweep.Workers = *workers
	}
	if *objective != "" {
		cfg.Sweep.Objective = *objective
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	obj, _ := sweep.ParseObjective(cfg.Sweep.Objective)

	logger, closeLog := newLogger(cfg.Logging)
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stopMetrics := serveMetrics(cfg.Metrics.Addr, logger)
	defer stopMetrics()

	ds, err := loadDataset(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ds.Close()

	m := metrics.New(nil)
	runner := sweep.NewRunner(engine.NewBacktester(nil, logger, m), cfg.Sweep.Workers, logger, m)
	runner.KeepCurves = cfg.Sweep.KeepCurves

	start := time.Now()
	outcomes, err := runner.Run(ctx, ds, cfg.Backtest, cfg.Sweep.Grid)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		logger.Warn("sweep interrupted", "completed", len(outcomes))
	}

	if *persist || cfg.Storage.Persist {
		db, err := openRunStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		ps := store.NewParquetStore(cfg.Storage.DataDir)
		// Completed combinations are saved even after an interrupt.
		for _, o := range outcomes {
			if o.Result == nil {
				continue
			}
			if err := persistResult(context.Background(), db, ps, o.Result); err != nil {
				return fmt.Errorf("persisting combination %d: %w", o.Index, err)
			}
		}
	}

	printOutcomes(os.Stdout, outcomes, obj, *top, time.Since(start))
	return nil
}

func printOutcomes(w io.Writer, outcomes []sweep.Outcome, obj sweep.Objective, top int, elapsed time.Duration) {
	var ok []sweep.Outcome
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil || o.Result == nil {
			failed++
			continue
		}
		ok = append(ok, o)
	}
	sort.SliceStable(ok, func(i, j int) bool {
		return scoreOrNegInf(obj, ok[i]) > scoreOrNegInf(obj, ok[j])
	})

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("=== Sweep (%s) ===", obj)))
	fmt.Fprintf(w, "Combinations: %d  ok: %d  failed: %d  elapsed: %s\n\n",
		len(outcomes), len(ok), failed, elapsed.Round(time.Millisecond))
	fmt.Fprintln(w, colHeaderStyle.Render(fmt.Sprintf("%-5s %-6s %10s %10s %10s %8s %8s  %s",
		"rank", "index", "score", "return%", "maxdd%", "trades", "win%", "params")))
	for i, o := range ok {
		if top > 0 && i >= top {
			break
		}
		r := o.Result
		fmt.Fprintf(w, "%-5d %-6d %10.4f %s %10.2f %8d %8.1f  %s\n",
			i+1, o.Index, obj.Score(r), signed(r.TotalReturnPct, fmt.Sprintf("%10.2f", r.TotalReturnPct)),
			r.MaxDrawdownPct, r.TotalTrades, r.WinRate*100, paramFlag(o.Params).String())
	}

	if best, found := sweep.Best(outcomes, obj); found {
		fmt.Fprintf(w, "\n%s\n", bestStyle.Render(fmt.Sprintf("Best: %s (%s=%.4f)",
			paramFlag(best.Params).String(), obj, obj.Score(best.Result))))
	}
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "failed %d (%s): %v\n", o.Index, paramFlag(o.Params).String(), o.Err)
		}
	}
}

func scoreOrNegInf(obj sweep.Objective, o sweep.Outcome) float64 {
	s := obj.Score(o.Result)
	if math.IsNaN(s) {
		return math.Inf(-1)
	}
	return s
}

func genCommand(args []string) error {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	bars := fs.Int("bars", 100_000, "number of bars")
	seed := fs.Uint64("seed", 1, "random seed")
	out := fs.String("out", "-", "output file (.csv or .parquet); - writes CSV to stdout")
	fs.Parse(args)

	if *bars < 0 {
		return fmt.Errorf("-bars must not be negative")
	}
	ds := dataset.Synthetic(dataset.SyntheticOptions{Bars: *bars, Seed: *seed})

	switch {
	case *out == "-":
		return dataset.WriteCSV(os.Stdout, ds)
	case strings.EqualFold(filepath.Ext(*out), ".parquet"):
		return store.WriteDatasetFile(*out, ds)
	default:
		return writeCSVFile(*out, ds)
	}
}

func convertCommand(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	common := addCommonFlags(fs)
	in := fs.String("in", "", "input CSV bar file (required)")
	out := fs.String("out", "", "output Parquet file")
	name := fs.String("dataset", "", "merge into the Parquet store under this name instead")
	fs.Parse(args)

	if *in == "" || (*out == "" && *name == "") {
		fs.Usage()
		return fmt.Errorf("-in and one of -out or -dataset are required")
	}
	cfg, err := loadConfig(fs, common)
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(cfg.Logging)
	defer closeLog()

	ds, err := dataset.Load(*in, dataset.LoadOptions{Mmap: cfg.Data.Mmap, Strict: cfg.Data.Strict, Logger: logger})
	if err != nil {
		return err
	}
	defer ds.Close()

	if *name != "" {
		ps := store.NewParquetStore(cfg.Storage.DataDir)
		if err := ps.WriteDataset(context.Background(), *name, ds); err != nil {
			return err
		}
		logger.Info("dataset imported", "name", strings.ToUpper(*name), "bars", ds.Len(), "skipped", ds.Skipped())
		return nil
	}
	if err := store.WriteDatasetFile(*out, ds); err != nil {
		return err
	}
	logger.Info("dataset converted", "out", *out, "bars", ds.Len(), "skipped", ds.Skipped())
	return nil
}

func runsCommand(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	common := addCommonFlags(fs)
	strat := fs.String("strategy", "", "only runs of this strategy name")
	limit := fs.Int("limit", 20, "maximum runs to list (0 = all)")
	id := fs.String("id", "", "print the trades of this run instead")
	fs.Parse(args)

	cfg, err := loadConfig(fs, common)
	if err != nil {
		return err
	}
	db, err := openRunStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := context.Background()

	if *id != "" {
		run, err := db.GetRun(ctx, *id)
		if err != nil {
			return err
		}
		trades, err := db.ListTrades(ctx, *id)
		if err != nil {
			return err
		}
		fmt.Printf("Run %s (%s), %d trades\n", run.ID, run.Strategy, len(trades))
		fmt.Println(colHeaderStyle.Render(fmt.Sprintf("%-6s %-20s %-20s %12s %12s %12s",
			"side", "entry", "exit", "entry_px", "exit_px", "pnl")))
		for _, t := range trades {
			fmt.Printf("%-6s %-20s %-20s %12.4f %12.4f %s\n", t.Side,
				time.Unix(t.EntryTime, 0).UTC().Format(time.DateTime),
				time.Unix(t.ExitTime, 0).UTC().Format(time.DateTime),
				t.EntryPrice, t.ExitPrice, signed(t.PnL, fmt.Sprintf("%12.2f", t.PnL)))
		}
		return nil
	}

	runs, err := db.ListRuns(ctx, *strat, *limit)
	if err != nil {
		return err
	}
	fmt.Println(colHeaderStyle.Render(fmt.Sprintf("%-36s %-20s %-20s %8s %10s %8s %8s",
		"id", "strategy", "created", "bars", "return%", "sharpe", "trades")))
	for _, r := range runs {
		fmt.Printf("%-36s %-20s %-20s %8d %s %8.3f %8d\n", r.ID, r.Strategy,
			r.CreatedAt.Format(time.DateTime), r.Bars, signed(r.TotalReturnPct, fmt.Sprintf("%10.2f", r.TotalReturnPct)),
			r.SharpeRatio, r.TotalTrades)
	}
	return nil
}

func strategiesCommand() error {
	for _, kind := range builtins.NewRegistry().List() {
		fmt.Println(kind)
	}
	return nil
}

func writeCSVFile(path string, ds *dataset.Dataset) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return dataset.WriteCSV(f, ds)
}
