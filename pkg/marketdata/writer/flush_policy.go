package writer

import "time"

const (
	// DefaultFlushInterval is the maximum age of buffered rows before a flush.
	DefaultFlushInterval = 30 * time.Second
	// DefaultFlushMaxRows is the maximum number of buffered rows before a flush.
	DefaultFlushMaxRows = 5000
)

// FlushPolicy decides when buffered rows must be written to disk.
// A flush is due once the buffer reaches MaxRows, or once Interval has
// elapsed since the previous flush, whichever comes first. Finalizing a
// writer always flushes regardless of the policy.
type FlushPolicy struct {
	Interval time.Duration
	MaxRows  int
}

// DefaultFlushPolicy returns the standard autosave thresholds.
func DefaultFlushPolicy() FlushPolicy {
	return FlushPolicy{
		Interval: DefaultFlushInterval,
		MaxRows:  DefaultFlushMaxRows,
	}
}

// normalized fills zero fields with the defaults so a partially
// configured policy still flushes.
func (p FlushPolicy) normalized() FlushPolicy {
	if p.Interval <= 0 {
		p.Interval = DefaultFlushInterval
	}

	if p.MaxRows <= 0 {
		p.MaxRows = DefaultFlushMaxRows
	}

	return p
}

// ShouldFlush reports whether a buffer of the given size, last flushed
// sinceLastFlush ago, is due for a flush.
func (p FlushPolicy) ShouldFlush(buffered int, sinceLastFlush time.Duration) bool {
	if buffered == 0 {
		return false
	}

	p = p.normalized()

	return buffered >= p.MaxRows || sinceLastFlush >= p.Interval
}
