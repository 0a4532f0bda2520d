package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/stratamem/stratamem/internal/model"
)

// HotStoreConfig tunes the hot tier's retention bounds.
type HotStoreConfig struct {
	MaxEntries    int           // evict oldest beyond this count (default: 10000)
	MaxAge        time.Duration // evict entries older than this (default: 1h)
	SweepInterval time.Duration // age sweep cadence (default: 1m)
}

// HotStore is the in-process tier for the most recently ingested records.
// Reads take the shared lock only; the eviction sweep holds the write lock
// for the duration of the trim, never across I/O, so lookups do not block
// on background eviction.
type HotStore struct {
	cfg HotStoreConfig

	mu    sync.RWMutex
	byKey map[string]*hotEntry
	order []string // insertion order, oldest first

	stopOnce sync.Once
	done     chan struct{}
}

type hotEntry struct {
	record     *model.MemoryRecord
	insertedAt time.Time
}

// NewHotStore creates a hot store. Zero config fields fall back to defaults.
func NewHotStore(cfg HotStoreConfig) *HotStore {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &HotStore{
		cfg:   cfg,
		byKey: make(map[string]*hotEntry),
		done:  make(chan struct{}),
	}
}

// Insert adds a record to the hot tier. As defense-in-depth it rejects a
// record whose (system_id, conversation_id) already exists.
func (h *HotStore) Insert(rec *model.MemoryRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	key := rec.Key()

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.byKey[key]; exists {
		return goerr.Wrap(ErrConstraintViolation, "record already in hot tier", goerr.Value("key", key))
	}

	h.byKey[key] = &hotEntry{record: rec.Clone(), insertedAt: time.Now()}
	h.order = append(h.order, key)
	h.trimLocked()
	return nil
}

// Get returns the record for (systemID, conversationID), if present.
func (h *HotStore) Get(systemID, conversationID string) (*model.MemoryRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.byKey[systemID+"/"+conversationID]
	if !ok {
		return nil, false
	}
	return e.record.Clone(), true
}

// Recent returns up to n records, most recently inserted first.
func (h *HotStore) Recent(n int) []*model.MemoryRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.order) {
		n = len(h.order)
	}
	out := make([]*model.MemoryRecord, 0, n)
	for i := len(h.order) - 1; i >= 0 && len(out) < n; i-- {
		if e, ok := h.byKey[h.order[i]]; ok {
			out = append(out, e.record.Clone())
		}
	}
	return out
}

// Len returns the number of records currently held.
func (h *HotStore) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byKey)
}

// Run sweeps aged-out entries until ctx is cancelled.
func (h *HotStore) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.SweepInterval)
	defer ticker.Stop()
	defer h.stopOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := h.evictAged(); evicted > 0 {
				slog.Debug("hot tier sweep", "evicted", evicted)
			}
		}
	}
}

// Stop waits for the sweep goroutine to exit after ctx cancellation.
func (h *HotStore) Stop() {
	<-h.done
}

func (h *HotStore) evictAged() int {
	cutoff := time.Now().Add(-h.cfg.MaxAge)

	h.mu.Lock()
	defer h.mu.Unlock()

	evicted := 0
	for len(h.order) > 0 {
		e, ok := h.byKey[h.order[0]]
		if ok && e.insertedAt.After(cutoff) {
			break
		}
		if ok {
			delete(h.byKey, h.order[0])
			evicted++
		}
		h.order = h.order[1:]
	}
	return evicted
}

// trimLocked enforces the size bound. Caller holds the write lock.
func (h *HotStore) trimLocked() {
	for len(h.byKey) > h.cfg.MaxEntries && len(h.order) > 0 {
		delete(h.byKey, h.order[0])
		h.order = h.order[1:]
	}
}
