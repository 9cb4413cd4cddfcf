package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"vecbt/internal/dataset"
	"vecbt/internal/domain"
)

// Compile-time interface checks.
var _ DatasetStore = (*ParquetStore)(nil)
var _ ArtifactStore = (*ParquetStore)(nil)

// ParquetStore implements DatasetStore and ArtifactStore using Parquet files
// on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for one bar.
type BarRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// TradeRecord is the Parquet schema for one simulated round trip.
type TradeRecord struct {
	EntryIndex int64   `parquet:"entry_index"`
	ExitIndex  int64   `parquet:"exit_index"`
	EntryTime  int64   `parquet:"entry_time,timestamp(millisecond)"`
	ExitTime   int64   `parquet:"exit_time,timestamp(millisecond)"`
	EntryPrice float64 `parquet:"entry_price"`
	ExitPrice  float64 `parquet:"exit_price"`
	Side       string  `parquet:"side"`
	Size       float64 `parquet:"size"`
	PnL        float64 `parquet:"pnl"`
	PnLPct     float64 `parquet:"pnl_pct"`
	Commission float64 `parquet:"commission"`
}

// EquityRecord is the Parquet schema for one equity curve sample.
type EquityRecord struct {
	Timestamp   int64   `parquet:"timestamp,timestamp(millisecond)"`
	Equity      float64 `parquet:"equity"`
	Drawdown    float64 `parquet:"drawdown"`
	DrawdownPct float64 `parquet:"drawdown_pct"`
}

// ---------------------------------------------------------------------------
// DatasetStore implementation
// ---------------------------------------------------------------------------

// WriteDataset merges ds into <DataDir>/bars/<NAME>.parquet. Bars sharing a
// timestamp with stored ones replace them.
func (s *ParquetStore) WriteDataset(_ context.Context, name string, ds *dataset.Dataset) error {
	path := s.datasetPath(name)
	existing, err := readParquetFile[BarRecord](path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading dataset %s: %w", name, err)
	}
	merged := mergeBarRecords(existing, toBarRecords(ds))
	if err := writeParquetFile(path, merged); err != nil {
		return fmt.Errorf("writing dataset %s: %w", name, err)
	}
	return nil
}

// ReadDataset loads the dataset stored under name.
func (s *ParquetStore) ReadDataset(_ context.Context, name string) (*dataset.Dataset, error) {
	ds, err := ReadDatasetFile(s.datasetPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("dataset %s: %w", name, ErrNotFound)
	}
	return ds, err
}

// ListDatasets lists all stored dataset names.
func (s *ParquetStore) ListDatasets(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "bars"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".parquet") {
			names = append(names, strings.TrimSuffix(e.Name(), ".parquet"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// ReadDatasetFile loads a bar Parquet file written by WriteDatasetFile or
// WriteDataset.
func ReadDatasetFile(path string) (*dataset.Dataset, error) {
	records, err := readParquetFile[BarRecord](path)
	if err != nil {
		return nil, err
	}
	ds := dataset.New(len(records))
	for i, r := range records {
		bar := domain.Bar{
			Timestamp: r.Timestamp / 1000,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		}
		if !bar.Valid() {
			return nil, fmt.Errorf("reading %s: row %d violates the OHLC invariant", path, i)
		}
		ds.Append(bar)
	}
	return ds, nil
}

// WriteDatasetFile writes ds to path, replacing any existing file.
func WriteDatasetFile(path string, ds *dataset.Dataset) error {
	return writeParquetFile(path, toBarRecords(ds))
}

func toBarRecords(ds *dataset.Dataset) []BarRecord {
	records := make([]BarRecord, ds.Len())
	for i := range records {
		records[i] = BarRecord{
			Timestamp: ds.Timestamps[i] * 1000,
			Open:      ds.Opens[i],
			High:      ds.Highs[i],
			Low:       ds.Lows[i],
			Close:     ds.Closes[i],
			Volume:    ds.Volumes[i],
		}
	}
	return records
}

// ---------------------------------------------------------------------------
// ArtifactStore implementation
// ---------------------------------------------------------------------------

// WriteTrades writes the trade log of a run to
// <DataDir>/runs/<run_id>/trades.parquet.
func (s *ParquetStore) WriteTrades(_ context.Context, runID string, trades []domain.Trade) error {
	records := make([]TradeRecord, len(trades))
	for i, t := range trades {
		records[i] = TradeRecord{
			EntryIndex: int64(t.EntryIndex),
			ExitIndex:  int64(t.ExitIndex),
			EntryTime:  t.EntryTime * 1000,
			ExitTime:   t.ExitTime * 1000,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Side:       string(t.Side),
			Size:       t.Size,
			PnL:        t.PnL,
			PnLPct:     t.PnLPct,
			Commission: t.Commission,
		}
	}
	if err := writeParquetFile(s.runPath(runID, "trades"), records); err != nil {
		return fmt.Errorf("writing trades for run %s: %w", runID, err)
	}
	return nil
}

// ReadTrades reads the trade log of a run.
func (s *ParquetStore) ReadTrades(_ context.Context, runID string) ([]domain.Trade, error) {
	records, err := readParquetFile[TradeRecord](s.runPath(runID, "trades"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("trades for run %s: %w", runID, ErrNotFound)
		}
		return nil, err
	}
	trades := make([]domain.Trade, len(records))
	for i, r := range records {
		trades[i] = domain.Trade{
			EntryIndex: int(r.EntryIndex),
			ExitIndex:  int(r.ExitIndex),
			EntryTime:  r.EntryTime / 1000,
			ExitTime:   r.ExitTime / 1000,
			EntryPrice: r.EntryPrice,
			ExitPrice:  r.ExitPrice,
			Side:       domain.PositionSide(r.Side),
			Size:       r.Size,
			PnL:        r.PnL,
			PnLPct:     r.PnLPct,
			Commission: r.Commission,
		}
	}
	return trades, nil
}

// WriteEquity writes the equity curve of a run to
// <DataDir>/runs/<run_id>/equity.parquet.
func (s *ParquetStore) WriteEquity(_ context.Context, runID string, equity []domain.EquitySnapshot) error {
	records := make([]EquityRecord, len(equity))
	for i, e := range equity {
		records[i] = EquityRecord{
			Timestamp:   e.Timestamp * 1000,
			Equity:      e.Equity,
			Drawdown:    e.Drawdown,
			DrawdownPct: e.DrawdownPct,
		}
	}
	if err := writeParquetFile(s.runPath(runID, "equity"), records); err != nil {
		return fmt.Errorf("writing equity for run %s: %w", runID, err)
	}
	return nil
}

// ReadEquity reads the equity curve of a run.
func (s *ParquetStore) ReadEquity(_ context.Context, runID string) ([]domain.EquitySnapshot, error) {
	records, err := readParquetFile[EquityRecord](s.runPath(runID, "equity"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("equity for run %s: %w", runID, ErrNotFound)
		}
		return nil, err
	}
	equity := make([]domain.EquitySnapshot, len(records))
	for i, r := range records {
		equity[i] = domain.EquitySnapshot{
			Timestamp:   r.Timestamp / 1000,
			Equity:      r.Equity,
			Drawdown:    r.Drawdown,
			DrawdownPct: r.DrawdownPct,
		}
	}
	return equity, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// datasetPath returns the filesystem path for a dataset Parquet file.
// Layout: <dataDir>/bars/<NAME>.parquet
func (s *ParquetStore) datasetPath(name string) string {
	return filepath.Join(s.DataDir, "bars", strings.ToUpper(name)+".parquet")
}

// runPath returns the filesystem path for a run artifact.
// Layout: <dataDir>/runs/<run_id>/<kind>.parquet
func (s *ParquetStore) runPath(runID, kind string) string {
	return filepath.Join(s.DataDir, "runs", runID, kind+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates bar records by timestamp, preferring new
// records over existing ones. Results are sorted by timestamp.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	seen := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
