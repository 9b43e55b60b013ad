package writer

import (
	"github.com/quantrail/barfetch/internal/types"
)

// RowWriter defines the interface for writing output rows to a destination.
type RowWriter interface {
	// Initialize sets up the writer, potentially creating files or tables.
	Initialize() error
	// Write buffers or persists a single output row.
	Write(row types.Row) error
	// Flush forces buffered rows onto the destination.
	Flush() error
	// Finalize completes the writing process (flushes remaining rows,
	// exports files) and returns the output path.
	Finalize() (outputPath string, err error)
	// Close releases any resources held by the writer.
	Close() error
	// OutputPath returns the configured output file path.
	OutputPath() string
}
