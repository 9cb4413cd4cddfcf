// Package store defines storage interfaces for persisting datasets, run
// artifacts and run summaries, with Parquet and SQLite implementations.
package store

import (
	"context"
	"errors"

	"vecbt/internal/dataset"
	"vecbt/internal/domain"
)

// ErrNotFound is returned when a requested dataset or run does not exist.
var ErrNotFound = errors.New("not found")

// DatasetStore persists and retrieves named bar datasets.
type DatasetStore interface {
	// WriteDataset merges ds into the dataset stored under name.
	WriteDataset(ctx context.Context, name string, ds *dataset.Dataset) error

	// ReadDataset loads the dataset stored under name.
	ReadDataset(ctx context.Context, name string) (*dataset.Dataset, error)

	// ListDatasets returns all stored dataset names.
	ListDatasets(ctx context.Context) ([]string, error)
}

// ArtifactStore persists the bulky per-run outputs of a backtest.
type ArtifactStore interface {
	// WriteTrades replaces the trade log of a run.
	WriteTrades(ctx context.Context, runID string, trades []domain.Trade) error

	// ReadTrades returns the trade log of a run.
	ReadTrades(ctx context.Context, runID string) ([]domain.Trade, error)

	// WriteEquity replaces the equity curve of a run.
	WriteEquity(ctx context.Context, runID string, equity []domain.EquitySnapshot) error

	// ReadEquity returns the equity curve of a run.
	ReadEquity(ctx context.Context, runID string) ([]domain.EquitySnapshot, error)
}

// RunStore persists and retrieves run summaries.
type RunStore interface {
	// SaveRun inserts a run summary together with its trades.
	SaveRun(ctx context.Context, run domain.RunSummary, trades []domain.Trade) error

	// GetRun retrieves a single run by its ID.
	GetRun(ctx context.Context, id string) (*domain.RunSummary, error)

	// ListRuns returns the most recent runs, optionally for one strategy, up
	// to limit. limit <= 0 means no limit.
	ListRuns(ctx context.Context, strategy string, limit int) ([]domain.RunSummary, error)

	// ListTrades returns the trades of a run in execution order.
	ListTrades(ctx context.Context, runID string) ([]domain.Trade, error)
}
