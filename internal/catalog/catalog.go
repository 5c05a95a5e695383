package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Store persists issue records in insertion order. A missing or empty store
// reads as an empty sequence.
type Store interface {
	ReadAll(ctx context.Context) ([]IssueRecord, error)
	Append(ctx context.Context, record IssueRecord) error
}

// Catalog serves matching from an in-memory snapshot of a Store. Reads never
// take a lock; appends and refreshes are serialized and swap in a new slice.
type Catalog struct {
	store    Store
	logger   *slog.Logger
	snapshot atomic.Pointer[[]IssueRecord]
	writeMu  sync.Mutex
}

func New(store Store, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{store: store, logger: logger}
}

// Records returns the current snapshot, loading it from the store on first use.
// The returned slice must not be modified.
func (c *Catalog) Records(ctx context.Context) []IssueRecord {
	if current := c.snapshot.Load(); current != nil {
		return *current
	}
	if err := c.Refresh(ctx); err != nil {
		c.logger.Error("catalog load failed, matching against empty catalog", "error", err)
		return nil
	}
	if current := c.snapshot.Load(); current != nil {
		return *current
	}
	return nil
}

// Match looks text up against the current snapshot.
func (c *Catalog) Match(ctx context.Context, text string) (IssueRecord, bool) {
	return Match(text, c.Records(ctx))
}

// Append persists record and publishes a snapshot that includes it.
func (c *Catalog) Append(ctx context.Context, record IssueRecord) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.store.Append(ctx, record); err != nil {
		return fmt.Errorf("append issue record: %w", err)
	}
	records, err := c.store.ReadAll(ctx)
	if err != nil {
		// The record is durable; serve it from the previous snapshot until the next refresh.
		c.logger.Warn("catalog reload after append failed", "error", err)
		previous := c.loadCopy()
		records = append(previous, record)
	}
	c.publish(records)
	return nil
}

// Refresh reloads the snapshot from the store. On error the previous snapshot
// stays in place.
func (c *Catalog) Refresh(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	records, err := c.store.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	c.publish(records)
	return nil
}

func (c *Catalog) Len() int {
	current := c.snapshot.Load()
	if current == nil {
		return 0
	}
	return len(*current)
}

func (c *Catalog) loadCopy() []IssueRecord {
	current := c.snapshot.Load()
	if current == nil {
		return nil
	}
	clone := make([]IssueRecord, len(*current))
	copy(clone, *current)
	return clone
}

func (c *Catalog) publish(records []IssueRecord) {
	clone := make([]IssueRecord, len(records))
	copy(clone, records)
	c.snapshot.Store(&clone)
}
