package writer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/quantrail/barfetch/internal/types"
	"github.com/quantrail/barfetch/pkg/errors"
)

// AutosaveCSVWriter implements RowWriter with periodic incremental
// persistence. Rows are buffered in memory and appended to the output
// file whenever the flush policy fires, so an interrupted fetch loses at
// most one flush window of rows and never holds the whole job in memory.
//
// The file is opened in append mode. The CSV header is written exactly
// once, on the first flush into an empty file; resuming an existing
// non-empty file never writes a second header.
type AutosaveCSVWriter struct {
	outputPath string
	policy     FlushPolicy

	mu            sync.Mutex
	file          *os.File
	csvw          *csv.Writer
	buffer        []types.Row
	lastFlush     time.Time
	headerWritten bool
	flushCount    int

	// now is swappable for tests.
	now func() time.Time
}

// NewAutosaveCSVWriter creates a writer appending to outputPath under
// the given flush policy. Zero policy fields fall back to the defaults.
func NewAutosaveCSVWriter(outputPath string, policy FlushPolicy) *AutosaveCSVWriter {
	return &AutosaveCSVWriter{
		outputPath: outputPath,
		policy:     policy.normalized(),
		now:        time.Now,
	}
}

// Initialize opens the output file for appending, creating the parent
// directory if needed. An existing non-empty file is treated as an
// earlier autosave to resume: its header is assumed present.
func (w *AutosaveCSVWriter) Initialize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(w.outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.OpenFile(w.outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()

		return fmt.Errorf("failed to stat output file: %w", err)
	}

	w.file = file
	w.csvw = csv.NewWriter(file)
	w.headerWritten = info.Size() > 0
	w.buffer = w.buffer[:0]
	w.lastFlush = w.now()

	return nil
}

// Write buffers one row and flushes if the policy is due.
func (w *AutosaveCSVWriter) Write(row types.Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return errors.New(errors.ErrCodeWriterNotInitialized, "autosave writer not initialized")
	}

	w.buffer = append(w.buffer, row)

	if w.policy.ShouldFlush(len(w.buffer), w.now().Sub(w.lastFlush)) {
		return w.flushLocked()
	}

	return nil
}

// Flush appends all buffered rows to the file immediately.
func (w *AutosaveCSVWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return errors.New(errors.ErrCodeWriterNotInitialized, "autosave writer not initialized")
	}

	return w.flushLocked()
}

// Finalize flushes the remaining buffered rows and returns the output path.
func (w *AutosaveCSVWriter) Finalize() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return "", errors.New(errors.ErrCodeWriterNotInitialized, "autosave writer not initialized")
	}

	if err := w.flushLocked(); err != nil {
		return "", err
	}

	return w.outputPath, nil
}

// Close flushes and releases the underlying file.
func (w *AutosaveCSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	flushErr := w.flushLocked()

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}

	w.file = nil
	w.csvw = nil

	return flushErr
}

// OutputPath returns the output CSV path.
func (w *AutosaveCSVWriter) OutputPath() string {
	return w.outputPath
}

// BufferedRows returns the number of rows not yet flushed to disk.
func (w *AutosaveCSVWriter) BufferedRows() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.buffer)
}

// FlushCount returns how many flushes have written rows to disk.
func (w *AutosaveCSVWriter) FlushCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.flushCount
}

// flushLocked writes the header on the first flush, then all buffered
// rows, and resets the buffer and the flush timer. Callers hold w.mu.
func (w *AutosaveCSVWriter) flushLocked() error {
	// An empty flush still resets the timer so an idle stretch does not
	// force an immediate flush on the next row.
	if len(w.buffer) == 0 {
		w.lastFlush = w.now()

		return nil
	}

	if !w.headerWritten {
		if err := w.csvw.Write(types.RowHeader()); err != nil {
			return errors.Wrap(errors.ErrCodeFlushFailed, "failed to write header", err)
		}

		w.headerWritten = true
	}

	for _, row := range w.buffer {
		if err := w.csvw.Write(row.Record()); err != nil {
			return errors.Wrap(errors.ErrCodeFlushFailed, "failed to write row", err)
		}
	}

	w.csvw.Flush()

	if err := w.csvw.Error(); err != nil {
		return errors.Wrap(errors.ErrCodeFlushFailed, "failed to flush csv buffer", err)
	}

	w.buffer = w.buffer[:0]
	w.lastFlush = w.now()
	w.flushCount++

	return nil
}

// Verify AutosaveCSVWriter implements RowWriter interface.
var _ RowWriter = (*AutosaveCSVWriter)(nil)
