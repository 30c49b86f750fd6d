package corpus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

// memCacheStore is an in-memory CacheStore for exercising the second tier.
type memCacheStore struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
	getErr  error
	putErr  error
	gets    int
	puts    int
}

func newMemCacheStore() *memCacheStore {
	return &memCacheStore{entries: make(map[string]CacheEntry)}
}

func (s *memCacheStore) GetEmbedding(_ context.Context, key string) (CacheEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return CacheEntry{}, false, s.getErr
	}
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *memCacheStore) PutEmbedding(_ context.Context, entry CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.entries[entry.Key] = entry
	return nil
}

func (s *memCacheStore) DeleteEmbeddingsBefore(_ context.Context, cutoff int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if e.CreatedAt < cutoff {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func TestCacheKeyNormalization(t *testing.T) {
	base := CacheKey("hello   world", EmbeddingContent, "model-a")

	same := []string{
		"hello world",
		"  hello\tworld  ",
		"hello\nworld",
	}
	for _, text := range same {
		if got := CacheKey(text, EmbeddingContent, "model-a"); got != base {
			t.Errorf("CacheKey(%q) = %s, want same key as canonical form", text, got)
		}
	}

	// Different model, type, or text must each change the key.
	if CacheKey("hello world", EmbeddingContent, "model-b") == base {
		t.Error("model change did not change the key")
	}
	if CacheKey("hello world", EmbeddingSemantic, "model-a") == base {
		t.Error("type change did not change the key")
	}
	if CacheKey("hello there", EmbeddingContent, "model-a") == base {
		t.Error("text change did not change the key")
	}
}

func TestCacheGetPutRoundTrip(t *testing.T) {
	c := NewEmbeddingCache()
	ctx := context.Background()

	if _, ok := c.Get(ctx, "emb_missing"); ok {
		t.Fatal("empty cache reported a hit")
	}

	vec := []float32{0.1, 0.2, 0.3}
	c.Put(ctx, "emb_k1", vec)

	got, ok := c.Get(ctx, "emb_k1")
	if !ok {
		t.Fatal("Get after Put missed")
	}
	if !reflect.DeepEqual(got, vec) {
		t.Errorf("Get = %v, want the exact stored vector %v", got, vec)
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Stats = (%d, %d), want (1, 1)", hits, misses)
	}
}

func TestCacheLRUEviction(t *testing.T) {
	c := NewEmbeddingCache(WithCacheCapacity(2))
	ctx := context.Background()

	c.Put(ctx, "emb_a", []float32{1})
	c.Put(ctx, "emb_b", []float32{2})

	// Touch a so b becomes the least recently used.
	if _, ok := c.Get(ctx, "emb_a"); !ok {
		t.Fatal("emb_a missed before eviction")
	}

	c.Put(ctx, "emb_c", []float32{3})

	if _, ok := c.Get(ctx, "emb_b"); ok {
		t.Error("least recently used entry survived eviction")
	}
	if _, ok := c.Get(ctx, "emb_a"); !ok {
		t.Error("recently used entry was evicted")
	}
	if _, ok := c.Get(ctx, "emb_c"); !ok {
		t.Error("newest entry was evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want capacity 2", c.Len())
	}
}

func TestCacheBackingPromotion(t *testing.T) {
	backing := newMemCacheStore()
	backing.entries["emb_k1"] = CacheEntry{Key: "emb_k1", Vector: []float32{0.5}, CreatedAt: time.Now().Unix()}

	c := NewEmbeddingCache(WithCacheBacking(backing))
	ctx := context.Background()

	got, ok := c.Get(ctx, "emb_k1")
	if !ok {
		t.Fatal("tier-2 hit not served")
	}
	if !reflect.DeepEqual(got, []float32{0.5}) {
		t.Errorf("Get = %v, want tier-2 vector", got)
	}

	// The hit must repopulate tier 1: a second Get stays in-process.
	if _, ok := c.Get(ctx, "emb_k1"); !ok {
		t.Fatal("promoted entry missed")
	}
	if backing.gets != 1 {
		t.Errorf("backing reads = %d, want 1 (promotion should absorb the second read)", backing.gets)
	}
}

func TestCachePutWritesThroughToBacking(t *testing.T) {
	backing := newMemCacheStore()
	c := NewEmbeddingCache(WithCacheBacking(backing))
	ctx := context.Background()

	c.Put(ctx, "emb_k1", []float32{1, 2})
	if backing.puts != 1 {
		t.Fatalf("backing writes = %d, want 1", backing.puts)
	}
	if e, ok := backing.entries["emb_k1"]; !ok || !reflect.DeepEqual(e.Vector, []float32{1, 2}) {
		t.Errorf("backing entry = %+v, want stored vector", e)
	}

	// Duplicate writes for the same key overwrite idempotently.
	c.Put(ctx, "emb_k1", []float32{1, 2})
	if backing.puts != 2 {
		t.Errorf("backing writes = %d, want 2", backing.puts)
	}
}

func TestCacheBackingErrorIsAMiss(t *testing.T) {
	backing := newMemCacheStore()
	backing.getErr = errors.New("disk gone")
	c := NewEmbeddingCache(WithCacheBacking(backing))

	if _, ok := c.Get(context.Background(), "emb_k1"); ok {
		t.Error("backing failure must read as a miss, not a hit")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewEmbeddingCache(WithCacheTTL(time.Hour))
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Put(ctx, "emb_k1", []float32{1})
	if _, ok := c.Get(ctx, "emb_k1"); !ok {
		t.Fatal("fresh entry missed")
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get(ctx, "emb_k1"); ok {
		t.Fatal("expired entry served")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want lazy eviction of the expired entry", c.Len())
	}
}

func TestCachePurgeOlderThan(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	backing := newMemCacheStore()
	c := NewEmbeddingCache(WithCacheBacking(backing))
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Put(ctx, "emb_old", []float32{1})
	now = now.Add(time.Hour)
	c.Put(ctx, "emb_new", []float32{2})

	dropped, err := c.PurgeOlderThan(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}
	// One in-process entry plus its backing copy.
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if _, ok := c.Get(ctx, "emb_old"); ok {
		t.Error("purged entry still served")
	}
	if _, ok := c.Get(ctx, "emb_new"); !ok {
		t.Error("fresh entry was purged")
	}
}

func TestCacheEvictPredicate(t *testing.T) {
	c := NewEmbeddingCache()
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		c.Put(ctx, fmt.Sprintf("emb_%d", i), []float32{float32(i)})
	}

	n := c.Evict(func(key string, _ time.Time) bool { return key == "emb_1" || key == "emb_3" })
	if n != 2 {
		t.Fatalf("Evict = %d, want 2", n)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if _, ok := c.Get(ctx, "emb_1"); ok {
		t.Error("evicted entry still served")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewEmbeddingCache(WithCacheCapacity(32))
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("emb_%d", i%40)
				c.Put(ctx, key, []float32{float32(g)})
				c.Get(ctx, key)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 32 {
		t.Errorf("Len = %d, exceeds capacity", c.Len())
	}
}

func TestCacheClose(t *testing.T) {
	ctx := context.Background()
	backing := newMemCacheStore()
	c := NewEmbeddingCache(WithCacheBacking(backing))
	c.Put(ctx, "emb_k1", []float32{0.1})

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after Close, want 0", c.Len())
	}

	// The detached backing store is never touched again.
	gets, puts := backing.gets, backing.puts
	if _, ok := c.Get(ctx, "emb_k1"); ok {
		t.Error("hit after Close")
	}
	c.Put(ctx, "emb_k2", []float32{0.2})
	if backing.gets != gets || backing.puts != puts {
		t.Errorf("backing touched after Close: gets %d->%d, puts %d->%d",
			gets, backing.gets, puts, backing.puts)
	}

	// Tier 1 still works on its own.
	if _, ok := c.Get(ctx, "emb_k2"); !ok {
		t.Error("tier-1 put after Close not readable")
	}
}
