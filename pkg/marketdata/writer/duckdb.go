package writer

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/quantrail/barfetch/internal/types"
	"github.com/quantrail/barfetch/pkg/errors"
)

// DuckDBWriter implements RowWriter backed by an in-memory DuckDB table
// that is exported to a Parquet file. Exports follow the same flush
// policy as the CSV writer: rows accumulate in the table and the file on
// disk is rewritten whenever the policy fires, so an interrupted fetch
// keeps everything up to the last export.
type DuckDBWriter struct {
	outputPath string
	policy     FlushPolicy

	mu              sync.Mutex
	db              *sql.DB
	rowsSinceExport int
	lastExport      time.Time

	now func() time.Time
}

// NewDuckDBWriter creates a writer exporting to the given Parquet path.
func NewDuckDBWriter(outputPath string, policy FlushPolicy) *DuckDBWriter {
	return &DuckDBWriter{
		outputPath: outputPath,
		policy:     policy.normalized(),
		now:        time.Now,
	}
}

// Initialize opens the DuckDB connection and creates the output table.
// If the Parquet file already exists, its rows are loaded back so a
// resumed fetch appends instead of overwriting.
func (w *DuckDBWriter) Initialize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(w.outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to open DuckDB connection: %w", err)
	}

	w.db = db

	_, err = w.db.Exec(`
		CREATE TABLE IF NOT EXISTS ohlcv_rows (
			id TEXT,
			symbol TEXT,
			date TIMESTAMP,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE,
			error TEXT
		)
	`)
	if err != nil {
		w.db.Close()

		return fmt.Errorf("failed to create table: %w", err)
	}

	// Load existing data from an earlier interrupted run if present.
	if _, err := os.Stat(w.outputPath); err == nil {
		_, err = w.db.Exec(fmt.Sprintf(`
			INSERT INTO ohlcv_rows
			SELECT * FROM read_parquet('%s')
		`, w.outputPath))
		if err != nil {
			// The file may be corrupted or empty; start fresh.
			_ = err
		}
	}

	w.lastExport = w.now()
	w.rowsSinceExport = 0

	return nil
}

// Write inserts one row and exports to Parquet if the policy is due.
func (w *DuckDBWriter) Write(row types.Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return errors.New(errors.ErrCodeWriterNotInitialized, "duckdb writer not initialized")
	}

	var date any
	if !row.Date.IsZero() {
		date = row.Date
	}

	var rowErr any
	if row.Err != "" {
		rowErr = row.Err
	}

	_, err := w.db.Exec(`
		INSERT INTO ohlcv_rows (id, symbol, date, open, high, low, close, volume, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), row.Symbol, date, row.Open, row.High, row.Low, row.Close, row.Volume, rowErr)
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert row", err)
	}

	w.rowsSinceExport++

	if w.policy.ShouldFlush(w.rowsSinceExport, w.now().Sub(w.lastExport)) {
		return w.exportLocked()
	}

	return nil
}

// Flush forces an export to Parquet.
func (w *DuckDBWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return errors.New(errors.ErrCodeWriterNotInitialized, "duckdb writer not initialized")
	}

	return w.exportLocked()
}

// Finalize exports remaining rows and returns the output path.
func (w *DuckDBWriter) Finalize() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return "", errors.New(errors.ErrCodeWriterNotInitialized, "duckdb writer not initialized")
	}

	if err := w.exportLocked(); err != nil {
		return "", err
	}

	return w.outputPath, nil
}

// Close releases database resources.
func (w *DuckDBWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db != nil {
		if err := w.db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}

		w.db = nil
	}

	return nil
}

// OutputPath returns the Parquet file path.
func (w *DuckDBWriter) OutputPath() string {
	return w.outputPath
}

// exportLocked rewrites the Parquet file from the table. Callers hold w.mu.
func (w *DuckDBWriter) exportLocked() error {
	_, err := w.db.Exec(fmt.Sprintf(`
		COPY (SELECT * FROM ohlcv_rows ORDER BY symbol, date)
		TO '%s' (FORMAT PARQUET)
	`, w.outputPath))
	if err != nil {
		return errors.Wrap(errors.ErrCodeFlushFailed, "failed to export to parquet", err)
	}

	w.rowsSinceExport = 0
	w.lastExport = w.now()

	return nil
}

// Verify DuckDBWriter implements RowWriter interface.
var _ RowWriter = (*DuckDBWriter)(nil)
