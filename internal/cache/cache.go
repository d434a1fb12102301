package cache

import (
	"context"
	"crypto/md5"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ltreme/biasbench/internal/store"
)

// Store is the subset of the persistent store the cache reads and writes
// through. Satisfied by *store.Store.
type Store interface {
	GetCacheEntry(ctx context.Context, runID int64, kind, key string) (*store.CacheEntry, error)
	PutCacheEntry(ctx context.Context, e store.CacheEntry) error
}

const defaultTTL = 5 * time.Minute

type item struct {
	payload   string
	rowCount  int
	expiresAt time.Time
}

// Cache is an LRU-bounded, TTL-expiring in-memory layer in front of a
// persisted Store, content-addressed by (run_id, kind, params, row_count).
type Cache struct {
	mu      sync.RWMutex
	maxSize int
	items   map[string]*item
	order   []string
	store   Store
}

// New constructs a Cache with the given max in-memory entries (LRU eviction
// beyond that) fronting store. maxSize <= 0 defaults to 100, mirroring the
// teacher's comparator/query-optimizer cache defaults.
func New(store Store, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Cache{
		maxSize: maxSize,
		items:   make(map[string]*item),
		store:   store,
	}
}

// Key builds the content-address for one cached aggregate: an MD5 digest of
// the kind, serialized params, and the row count the aggregate was computed
// over (the run id is not part of the digest; Get and Put take it
// separately and scope every entry by it). A changed row_count (new results landed) yields a
// different key, so stale aggregates are never served — they simply become
// unreachable rather than needing explicit invalidation.
func Key(kind, params string, rowCount int) string {
	h := md5.New()
	fmt.Fprintf(h, "%s:%s:%d", kind, params, rowCount)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get returns a cached payload, checking the in-memory layer first and
// falling back to the persisted store on a miss. Writes and reads never
// fail the caller: a backing-store error is logged and treated as a miss,
// the same as a genuine cache miss.
func (c *Cache) Get(ctx context.Context, runID int64, kind, key string) (string, bool, error) {
	localKey := fmt.Sprintf("%d|%s|%s", runID, kind, key)
	c.mu.RLock()
	it, found := c.items[localKey]
	c.mu.RUnlock()
	if found && time.Now().Before(it.expiresAt) {
		return it.payload, true, nil
	}

	entry, err := c.store.GetCacheEntry(ctx, runID, kind, key)
	if err != nil {
		slog.Warn("cache: get persisted entry failed, treating as miss", "run_id", runID, "kind", kind, "error", err)
		return "", false, nil
	}
	if entry == nil {
		return "", false, nil
	}

	c.setLocal(localKey, entry.PayloadJSON)
	return entry.PayloadJSON, true, nil
}

// Put writes payload for key, both to the in-memory LRU+TTL layer and
// through to the persisted store. A backing-store failure is logged and
// swallowed rather than returned — the in-memory write already succeeded,
// and a caller should never fail just because the cache couldn't persist.
func (c *Cache) Put(ctx context.Context, runID int64, kind, key, payload string) error {
	c.setLocal(fmt.Sprintf("%d|%s|%s", runID, kind, key), payload)
	if err := c.store.PutCacheEntry(ctx, store.CacheEntry{
		RunID:       runID,
		Kind:        kind,
		Key:         key,
		PayloadJSON: payload,
	}); err != nil {
		slog.Warn("cache: put persisted entry failed, keeping in-memory only", "run_id", runID, "kind", kind, "error", err)
	}
	return nil
}

func (c *Cache) setLocal(key, payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, found := c.items[key]; !found {
		if len(c.items) >= c.maxSize {
			c.evictOldest()
		}
		c.order = append(c.order, key)
	}
	c.items[key] = &item{payload: payload, expiresAt: time.Now().Add(defaultTTL)}
}

func (c *Cache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.items, oldest)
}

// Size returns the number of entries currently held in the in-memory layer.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// ClearLocal drops the whole in-memory layer, for every run, without
// touching the persisted store.
func (c *Cache) ClearLocal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*item)
	c.order = c.order[:0]
}
