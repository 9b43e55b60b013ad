// Package instruments caches the brokerage's instrument dump so repeated
// symbol-to-token lookups do not refetch the full table on every job.
package instruments

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/quantrail/barfetch/internal/types"
	"github.com/quantrail/barfetch/pkg/errors"
)

// DefaultTTL is how long a loaded instrument dump stays fresh.
const DefaultTTL = time.Hour

// Loader fetches the full instrument table from the provider.
type Loader func(ctx context.Context) ([]types.Instrument, error)

// Cache holds the instrument dump keyed by trading symbol and reloads it
// through the Loader once the TTL expires.
type Cache struct {
	loader Loader
	ttl    time.Duration

	mu       sync.Mutex
	bySymbol map[string]types.Instrument
	loadedAt time.Time

	now func() time.Time
}

// NewCache creates a cache over the given loader. A non-positive ttl
// falls back to DefaultTTL.
func NewCache(loader Loader, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Cache{
		loader: loader,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Lookup resolves a trading symbol to its instrument, reloading the dump
// if it is stale. Unknown symbols return an InstrumentNotFoundError.
func (c *Cache) Lookup(ctx context.Context, symbol string) (types.Instrument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureFreshLocked(ctx); err != nil {
		return types.Instrument{}, err
	}

	instrument, ok := c.bySymbol[normalizeSymbol(symbol)]
	if !ok {
		return types.Instrument{}, errors.NewInstrumentNotFoundError(symbol, "")
	}

	return instrument, nil
}

// Refresh forces a reload of the instrument dump.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loadLocked(ctx)
}

// Size returns the number of cached instruments.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.bySymbol)
}

func (c *Cache) ensureFreshLocked(ctx context.Context) error {
	if c.bySymbol != nil && c.now().Sub(c.loadedAt) < c.ttl {
		return nil
	}

	return c.loadLocked(ctx)
}

func (c *Cache) loadLocked(ctx context.Context) error {
	dump, err := c.loader(ctx)
	if err != nil {
		// Keep serving the stale dump rather than failing every lookup.
		if c.bySymbol != nil {
			return nil
		}

		return errors.Wrap(errors.ErrCodeInstrumentDumpFault, "failed to load instrument dump", err)
	}

	bySymbol := make(map[string]types.Instrument, len(dump))
	for _, instrument := range dump {
		bySymbol[normalizeSymbol(instrument.Symbol)] = instrument
	}

	c.bySymbol = bySymbol
	c.loadedAt = c.now()

	return nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
