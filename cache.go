package corpus

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"
)

// CacheKey derives the content address of an embedding: a hash over the
// NFC-normalized, whitespace-collapsed text, the embedding type, and the
// model identifier. Changing the model changes every key, so stale entries
// for an old model are invalidated automatically.
func CacheKey(text string, t EmbeddingType, model string) string {
	normalized := strings.Join(strings.Fields(norm.NFC.String(text)), " ")
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(t))
	h.Write([]byte{0})
	h.Write([]byte(normalized))
	return "emb_" + hex.EncodeToString(h.Sum(nil))
}

// CacheOption configures an EmbeddingCache.
type CacheOption func(*EmbeddingCache)

// WithCacheCapacity bounds the in-process tier to n entries (default 4096).
func WithCacheCapacity(n int) CacheOption {
	return func(c *EmbeddingCache) { c.capacity = n }
}

// WithCacheTTL sets the entry time-to-live. Expired entries miss and are
// evicted lazily. Zero (default) disables expiry.
func WithCacheTTL(d time.Duration) CacheOption {
	return func(c *EmbeddingCache) { c.ttl = d }
}

// WithCacheBacking sets the persistent second tier. Reads that miss the
// in-process tier fall through to it, and a tier-2 hit repopulates tier 1.
func WithCacheBacking(s CacheStore) CacheOption {
	return func(c *EmbeddingCache) { c.backing = s }
}

// WithCacheLogger sets a structured logger for cache events.
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *EmbeddingCache) { c.logger = l }
}

// EmbeddingCache is a two-tier content-addressed embedding cache: a bounded
// in-process LRU in front of an optional persistent CacheStore. It is an
// explicit service with an injected backing store, not a process-wide
// singleton, so tests instantiate isolated instances.
//
// A miss is always safe; a hit is bit-identical to a non-cached call for the
// same key. Safe for concurrent use.
type EmbeddingCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List // front = most recently used
	items    map[string]*list.Element
	backing  CacheStore
	logger   *slog.Logger
	now      func() time.Time

	hits, misses int64
}

type cacheItem struct {
	key       string
	vector    []float32
	createdAt int64
}

// NewEmbeddingCache creates an EmbeddingCache with the given options.
func NewEmbeddingCache(opts ...CacheOption) *EmbeddingCache {
	c := &EmbeddingCache{
		capacity: 4096,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		logger:   nopLogger,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.capacity < 1 {
		c.capacity = 1
	}
	return c
}

// Get returns the cached vector for key. The boolean is false on miss.
func (c *EmbeddingCache) Get(ctx context.Context, key string) ([]float32, bool) {
	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		it := el.Value.(*cacheItem)
		if !c.expired(it.createdAt) {
			c.ll.MoveToFront(el)
			c.hits++
			vec := it.vector
			c.mu.Unlock()
			return vec, true
		}
		c.removeLocked(el)
	}
	c.misses++
	backing := c.backing
	c.mu.Unlock()

	if backing == nil {
		return nil, false
	}
	entry, ok, err := backing.GetEmbedding(ctx, key)
	if err != nil {
		c.logger.Warn("cache: backing read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok || c.expired(entry.CreatedAt) {
		return nil, false
	}
	c.mu.Lock()
	c.insertLocked(key, entry.Vector, entry.CreatedAt)
	c.mu.Unlock()
	return entry.Vector, true
}

// Put stores a vector under key in both tiers. Overwrites are idempotent; a
// concurrent duplicate write for the same key is tolerated by design.
func (c *EmbeddingCache) Put(ctx context.Context, key string, vector []float32) {
	createdAt := c.now().Unix()
	c.mu.Lock()
	c.insertLocked(key, vector, createdAt)
	backing := c.backing
	c.mu.Unlock()

	if backing == nil {
		return
	}
	if err := backing.PutEmbedding(ctx, CacheEntry{Key: key, Vector: vector, CreatedAt: createdAt}); err != nil {
		c.logger.Warn("cache: backing write failed", "key", key, "error", err)
	}
}

// Evict removes all in-process entries matching the predicate and returns
// how many were dropped. The persistent tier is untouched; use
// PurgeOlderThan for cross-tier expiry.
func (c *EmbeddingCache) Evict(pred func(key string, createdAt time.Time) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var doomed []*list.Element
	for el := c.ll.Front(); el != nil; el = el.Next() {
		it := el.Value.(*cacheItem)
		if pred(it.key, time.Unix(it.createdAt, 0)) {
			doomed = append(doomed, el)
		}
	}
	for _, el := range doomed {
		c.removeLocked(el)
	}
	return len(doomed)
}

// PurgeOlderThan drops entries created before cutoff from both tiers.
func (c *EmbeddingCache) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	n := c.Evict(func(_ string, createdAt time.Time) bool { return createdAt.Before(cutoff) })
	c.mu.Lock()
	backing := c.backing
	c.mu.Unlock()
	if backing != nil {
		dropped, err := backing.DeleteEmbeddingsBefore(ctx, cutoff.Unix())
		if err != nil {
			return n, err
		}
		n += dropped
	}
	return n, nil
}

// Close drops the in-process tier and detaches the backing store, so a
// store closed by its owner is never touched again through the cache.
// Get and Put keep working tier-1-only after Close.
func (c *EmbeddingCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	c.backing = nil
	return nil
}

// Stats returns cumulative hit and miss counts for tier 1 lookups.
func (c *EmbeddingCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of in-process entries.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *EmbeddingCache) expired(createdAt int64) bool {
	return c.ttl > 0 && c.now().Sub(time.Unix(createdAt, 0)) > c.ttl
}

func (c *EmbeddingCache) insertLocked(key string, vector []float32, createdAt int64) {
	if el, ok := c.items[key]; ok {
		it := el.Value.(*cacheItem)
		it.vector = vector
		it.createdAt = createdAt
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&cacheItem{key: key, vector: vector, createdAt: createdAt})
	for len(c.items) > c.capacity {
		c.removeLocked(c.ll.Back())
	}
}

func (c *EmbeddingCache) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	it := el.Value.(*cacheItem)
	delete(c.items, it.key)
	c.ll.Remove(el)
}
