package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"vecbt/internal/domain"
	"vecbt/internal/util"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// migrations are applied in order; the index plus one is the schema version.
var migrations = []string{
	`CREATE TABLE runs (
		id               TEXT PRIMARY KEY,
		strategy         TEXT NOT NULL,
		params           TEXT NOT NULL DEFAULT '{}',
		bars             INTEGER NOT NULL,
		elapsed_ns       INTEGER NOT NULL,
		bars_per_second  REAL NOT NULL,
		initial_capital  REAL NOT NULL,
		final_capital    REAL NOT NULL,
		total_return     REAL NOT NULL,
		total_return_pct REAL NOT NULL,
		sharpe_ratio     REAL NOT NULL,
		sortino_ratio    REAL,
		max_drawdown     REAL NOT NULL,
		max_drawdown_pct REAL NOT NULL,
		total_trades     INTEGER NOT NULL,
		win_rate         REAL NOT NULL,
		profit_factor    REAL,
		created_at       INTEGER NOT NULL
	)`,
	`CREATE INDEX idx_runs_strategy_created ON runs (strategy, created_at DESC)`,
	`CREATE TABLE trades (
		run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq         INTEGER NOT NULL,
		entry_index INTEGER NOT NULL,
		exit_index  INTEGER NOT NULL,
		entry_time  INTEGER NOT NULL,
		exit_time   INTEGER NOT NULL,
		entry_price REAL NOT NULL,
		exit_price  REAL NOT NULL,
		side        TEXT NOT NULL,
		size        REAL NOT NULL,
		pnl         REAL NOT NULL,
		pnl_pct     REAL NOT NULL,
		commission  REAL NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, brings its
// schema up to date and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}
	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return err
	}

	for v := current; v < len(migrations); v++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, v+1); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts a run summary and its trades in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run domain.RunSummary, trades []domain.Trade) error {
	params := run.Params
	if params == nil {
		params = map[string]any{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding params for run %s: %w", run.ID, err)
	}

	// Another process may hold the write lock; busy errors are retried.
	return util.RetryIf(ctx, busyRetries, busyBaseDelay, isBusy, func() error {
		return s.saveRun(ctx, run, string(paramsJSON), trades)
	})
}

func (s *SQLiteStore) saveRun(ctx context.Context, run domain.RunSummary, paramsJSON string, trades []domain.Trade) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (
		id, strategy, params, bars, elapsed_ns, bars_per_second,
		initial_capital, final_capital, total_return, total_return_pct,
		sharpe_ratio, sortino_ratio, max_drawdown, max_drawdown_pct,
		total_trades, win_rate, profit_factor, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Strategy, paramsJSON, run.Bars, int64(run.Elapsed), run.BarsPerSecond,
		run.InitialCapital, run.FinalCapital, run.TotalReturn, run.TotalReturnPct,
		run.SharpeRatio, finiteOrNull(run.SortinoRatio), run.MaxDrawdown, run.MaxDrawdownPct,
		run.TotalTrades, run.WinRate, finiteOrNull(run.ProfitFactor), run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	if len(trades) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO trades (
			run_id, seq, entry_index, exit_index, entry_time, exit_time,
			entry_price, exit_price, side, size, pnl, pnl_pct, commission
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, t := range trades {
			if _, err := stmt.ExecContext(ctx,
				run.ID, i, t.EntryIndex, t.ExitIndex, t.EntryTime, t.ExitTime,
				t.EntryPrice, t.ExitPrice, string(t.Side), t.Size, t.PnL, t.PnLPct, t.Commission,
			); err != nil {
				return fmt.Errorf("inserting trade %d of run %s: %w", i, run.ID, err)
			}
		}
	}
	return tx.Commit()
}

const runColumns = `id, strategy, params, bars, elapsed_ns, bars_per_second,
	initial_capital, final_capital, total_return, total_return_pct,
	sharpe_ratio, sortino_ratio, max_drawdown, max_drawdown_pct,
	total_trades, win_rate, profit_factor, created_at`

// GetRun retrieves a single run by its ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, strategy string, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs
		WHERE (? = '' OR strategy = ?)
		ORDER BY created_at DESC, id
		LIMIT ?`, strategy, strategy, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListTrades returns the trades of a run in execution order.
func (s *SQLiteStore) ListTrades(ctx context.Context, runID string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		entry_index, exit_index, entry_time, exit_time, entry_price, exit_price,
		side, size, pnl, pnl_pct, commission
		FROM trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side string
		if err := rows.Scan(&t.EntryIndex, &t.ExitIndex, &t.EntryTime, &t.ExitTime,
			&t.EntryPrice, &t.ExitPrice, &side, &t.Size, &t.PnL, &t.PnLPct, &t.Commission); err != nil {
			return nil, err
		}
		t.Side = domain.PositionSide(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.RunSummary, error) {
	var (
		r          domain.RunSummary
		params     string
		elapsed    int64
		sortino    sql.NullFloat64
		profit     sql.NullFloat64
		createdAtM int64
	)
	err := row.Scan(&r.ID, &r.Strategy, &params, &r.Bars, &elapsed, &r.BarsPerSecond,
		&r.InitialCapital, &r.FinalCapital, &r.TotalReturn, &r.TotalReturnPct,
		&r.SharpeRatio, &sortino, &r.MaxDrawdown, &r.MaxDrawdownPct,
		&r.TotalTrades, &r.WinRate, &profit, &createdAtM)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
		return nil, fmt.Errorf("decoding params for run %s: %w", r.ID, err)
	}
	r.Elapsed = time.Duration(elapsed)
	r.SortinoRatio = infIfNull(sortino)
	r.ProfitFactor = infIfNull(profit)
	r.CreatedAt = time.UnixMilli(createdAtM).UTC()
	return &r, nil
}

const (
	busyRetries   = 5
	busyBaseDelay = 20 * time.Millisecond
)

// isBusy reports whether err is SQLite lock contention.
func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// finiteOrNull maps an unbounded ratio (no losing trades, no downside
// returns) to NULL.
func finiteOrNull(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}

func infIfNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.Inf(1)
	}
	return v.Float64
}
