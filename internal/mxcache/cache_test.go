package mxcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cruxstack/email-mx-validator-go/internal/types"
)

// fakeClock is a manually advanced clock for expiry tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, maxSize int, clock *fakeClock) *Cache {
	t.Helper()
	c := New(Config{
		MaxSize:       maxSize,
		DefaultTTL:    time.Minute,
		SweepInterval: -1,
		Clock:         clock.Now,
	})
	t.Cleanup(c.Close)
	return c
}

func mx(host string) []types.MXRecord {
	return []types.MXRecord{{Exchange: host, Priority: 10}}
}

func TestCache_SetAndGet(t *testing.T) {
	c := newTestCache(t, 10, newFakeClock())

	c.Set("example.com", mx("mx1.example.com"), 0)

	records, found := c.Get("example.com")
	if !found {
		t.Fatal("expected to find cached records")
	}
	if len(records) != 1 || records[0].Exchange != "mx1.example.com" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestCache_KeyIsCaseNormalized(t *testing.T) {
	c := newTestCache(t, 10, newFakeClock())

	c.Set("Example.COM", mx("mx1.example.com"), 0)

	for _, key := range []string{"example.com", "EXAMPLE.com", " example.com. "} {
		if _, found := c.Get(key); !found {
			t.Errorf("expected %q to hit the same entry", key)
		}
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := newTestCache(t, 10, newFakeClock())

	in := mx("mx1.example.com")
	c.Set("example.com", in, 0)
	in[0].Exchange = "mutated"

	out, _ := c.Get("example.com")
	out[0].Exchange = "mutated-again"

	again, _ := c.Get("example.com")
	if again[0].Exchange != "mx1.example.com" {
		t.Errorf("cached records were mutated: %+v", again)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 10, clock)

	c.Set("example.com", mx("mx1.example.com"), time.Second)

	if _, found := c.Get("example.com"); !found {
		t.Fatal("expected hit immediately after set")
	}

	clock.Advance(1500 * time.Millisecond)

	records, found := c.Get("example.com")
	if found {
		t.Fatalf("expected miss after ttl, got %+v", records)
	}
	if c.Len() != 0 {
		t.Errorf("expected expired entry to be removed lazily, size=%d", c.Len())
	}

	s := c.Statistics()
	if s.Hits != 1 || s.Misses != 1 || s.Expirations != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestCache_ExpiresAtBoundary(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 10, clock)

	c.Set("example.com", mx("mx1.example.com"), time.Second)
	clock.Advance(time.Second)

	if _, found := c.Get("example.com"); found {
		t.Error("entry should be absent once expiresAt is reached")
	}
}

func TestCache_DefaultTTLUsedWhenZero(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 10, clock)

	c.Set("example.com", mx("mx1.example.com"), 0)

	clock.Advance(59 * time.Second)
	if _, found := c.Get("example.com"); !found {
		t.Fatal("expected hit before default ttl")
	}

	clock.Advance(2 * time.Second)
	if _, found := c.Get("example.com"); found {
		t.Error("expected miss after default ttl")
	}
}

func TestCache_CapacityInvariant(t *testing.T) {
	const maxSize = 5
	c := newTestCache(t, maxSize, newFakeClock())

	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("domain%d.test", i), mx("mx"), 0)
		if c.Len() > maxSize {
			t.Fatalf("size %d exceeds max %d after %d inserts", c.Len(), maxSize, i+1)
		}
	}

	s := c.Statistics()
	if s.Evictions != 45 {
		t.Errorf("expected 45 evictions, got %d", s.Evictions)
	}
	if s.Size != maxSize {
		t.Errorf("expected size %d, got %d", maxSize, s.Size)
	}
}

func TestCache_OverflowEvictsExactlyOne(t *testing.T) {
	c := newTestCache(t, 3, newFakeClock())

	c.Set("a.test", mx("a"), 0)
	c.Set("b.test", mx("b"), 0)
	c.Set("c.test", mx("c"), 0)

	before := c.Statistics().Evictions
	c.Set("d.test", mx("d"), 0)
	after := c.Statistics()

	if after.Evictions-before != 1 {
		t.Errorf("expected exactly one eviction, got %d", after.Evictions-before)
	}
	if _, found := c.Get("a.test"); found {
		t.Error("expected least recently used entry a.test to be evicted")
	}
	for _, d := range []string{"b.test", "c.test", "d.test"} {
		if _, found := c.Get(d); !found {
			t.Errorf("expected %s to survive", d)
		}
	}
}

func TestCache_LRURecency(t *testing.T) {
	c := newTestCache(t, 2, newFakeClock())

	c.Set("a.test", mx("a"), 0)
	c.Set("b.test", mx("b"), 0)
	c.Get("a.test") // refresh a
	c.Set("c.test", mx("c"), 0)

	if _, found := c.Get("b.test"); found {
		t.Error("expected b.test to be evicted")
	}
	if _, found := c.Get("a.test"); !found {
		t.Error("expected a.test to survive after being refreshed")
	}
	if _, found := c.Get("c.test"); !found {
		t.Error("expected c.test to be present")
	}
}

func TestCache_ReplaceDoesNotGrowOrEvict(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 2, clock)

	c.Set("a.test", mx("a1"), time.Second)
	c.Set("b.test", mx("b"), 0)
	c.Set("a.test", mx("a2"), time.Hour) // replace, refreshes recency and ttl

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if ev := c.Statistics().Evictions; ev != 0 {
		t.Errorf("replace should not evict, got %d evictions", ev)
	}

	clock.Advance(2 * time.Second)
	records, found := c.Get("a.test")
	if !found || records[0].Exchange != "a2" {
		t.Errorf("expected replaced value with refreshed ttl, got %+v found=%v", records, found)
	}

	c.Set("c.test", mx("c"), 0)
	if _, found := c.Get("b.test"); found {
		t.Error("expected b.test (least recently used) to be evicted")
	}
}

func TestCache_TieBreakIsInsertionOrder(t *testing.T) {
	// identical timestamps: eviction must still follow insertion order
	c := newTestCache(t, 3, newFakeClock())

	c.Set("first.test", mx("1"), 0)
	c.Set("second.test", mx("2"), 0)
	c.Set("third.test", mx("3"), 0)

	c.Set("fourth.test", mx("4"), 0)
	if _, found := c.Get("first.test"); found {
		t.Error("expected first.test to be evicted first")
	}

	c.Set("fifth.test", mx("5"), 0)
	if _, found := c.Get("second.test"); found {
		t.Error("expected second.test to be evicted second")
	}
}

func TestCache_Delete(t *testing.T) {
	c := newTestCache(t, 10, newFakeClock())

	c.Set("example.com", mx("mx"), 0)
	c.Get("example.com")

	if !c.Delete("EXAMPLE.com") {
		t.Error("expected delete to report removal")
	}
	if c.Delete("example.com") {
		t.Error("expected second delete to report nothing removed")
	}

	s := c.Statistics()
	if s.Hits != 1 || s.Misses != 0 || s.Size != 0 {
		t.Errorf("delete should not affect counters: %+v", s)
	}
}

func TestCache_HitRate(t *testing.T) {
	c := newTestCache(t, 10, newFakeClock())

	if hr := c.Statistics().HitRate; hr != 0 {
		t.Errorf("expected hit rate 0 with no lookups, got %v", hr)
	}

	c.Set("example.com", mx("mx"), 0)
	c.Get("example.com")
	c.Get("example.com")
	c.Get("example.com")
	c.Get("missing.test")

	s := c.Statistics()
	if s.Hits != 3 || s.Misses != 1 {
		t.Fatalf("unexpected counters: %+v", s)
	}
	if s.HitRate != 75 {
		t.Errorf("expected hit rate 75, got %v", s.HitRate)
	}
}

func TestCache_FlushKeepsStatistics(t *testing.T) {
	c := newTestCache(t, 10, newFakeClock())

	c.Flush() // no-op on empty cache
	if c.Len() != 0 {
		t.Fatalf("expected empty cache")
	}

	c.Set("a.test", mx("a"), 0)
	c.Set("b.test", mx("b"), 0)
	c.Get("a.test")
	c.Get("missing.test")

	c.Flush()
	c.Flush()

	s := c.Statistics()
	if s.Size != 0 {
		t.Errorf("expected size 0 after flush, got %d", s.Size)
	}
	if s.Hits != 1 || s.Misses != 1 {
		t.Errorf("statistics should survive flush: %+v", s)
	}

	c.ResetStatistics()
	s = c.Statistics()
	if s.Hits != 0 || s.Misses != 0 || s.Evictions != 0 || s.HitRate != 0 {
		t.Errorf("expected zeroed statistics, got %+v", s)
	}

	// entries inserted after a flush behave normally
	c.Set("c.test", mx("c"), 0)
	if _, found := c.Get("c.test"); !found {
		t.Error("expected hit after flush and re-insert")
	}
}

func TestCache_ResetStatisticsKeepsEntries(t *testing.T) {
	c := newTestCache(t, 10, newFakeClock())

	c.Set("a.test", mx("a"), 0)
	c.Get("a.test")
	c.ResetStatistics()

	if c.Len() != 1 {
		t.Errorf("expected entries to survive reset, got %d", c.Len())
	}
}

func TestCache_RemoveExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 10, clock)

	c.Set("short.test", mx("s"), time.Second)
	c.Set("long.test", mx("l"), time.Hour)
	c.Set("short2.test", mx("s2"), 2*time.Second)

	clock.Advance(3 * time.Second)

	if removed := c.RemoveExpired(); removed != 2 {
		t.Errorf("expected 2 expired entries removed, got %d", removed)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 remaining entry, got %d", c.Len())
	}

	s := c.Statistics()
	if s.Expirations != 2 || s.Evictions != 0 || s.Misses != 0 {
		t.Errorf("sweep should only count expirations: %+v", s)
	}
}

func TestCache_BackgroundSweep(t *testing.T) {
	c := New(Config{
		MaxSize:       10,
		SweepInterval: 10 * time.Millisecond,
	})
	defer c.Close()

	c.Set("example.com", mx("mx"), 20*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected sweeper to remove expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if s := c.Statistics(); s.Misses != 0 {
		t.Errorf("sweep must not count misses, got %d", s.Misses)
	}
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New(Config{SweepInterval: time.Millisecond})
	c.Close()
	c.Close()
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(Config{MaxSize: 16, DefaultTTL: time.Minute, SweepInterval: time.Millisecond})
	defer c.Close()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				d := fmt.Sprintf("d%d.test", (w*31+i)%40)
				switch i % 4 {
				case 0, 1:
					c.Set(d, mx(d), 0)
				case 2:
					c.Get(d)
				case 3:
					c.Delete(d)
				}
				if n := c.Len(); n > 16 {
					t.Errorf("size %d exceeds max", n)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	s := c.Statistics()
	if s.Size > 16 {
		t.Errorf("size %d exceeds max", s.Size)
	}
}

func TestCache_RemovalsAreNotEvictions(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 3, clock)

	c.Set("a.test", mx("mx.a.test"), time.Second)
	c.Set("b.test", mx("mx.b.test"), time.Minute)
	c.Set("c.test", mx("mx.c.test"), time.Minute)

	c.Delete("b.test")
	clock.Advance(2 * time.Second)
	if _, found := c.Get("a.test"); found {
		t.Fatal("expected a.test to be expired")
	}
	c.Flush()

	s := c.Statistics()
	if s.Evictions != 0 {
		t.Errorf("delete, expiry and flush must not count as evictions, got %d", s.Evictions)
	}
	if s.Expirations != 1 {
		t.Errorf("expected 1 expiration, got %d", s.Expirations)
	}
	if s.Size != 0 {
		t.Errorf("expected empty cache, got %d", s.Size)
	}
}

func TestCache_SweepKeepsRecency(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 3, clock)

	c.Set("a.test", mx("mx.a.test"), time.Hour)
	c.Set("b.test", mx("mx.b.test"), time.Hour)
	c.Set("gone.test", mx("mx.gone.test"), time.Second)

	clock.Advance(2 * time.Second)
	if n := c.RemoveExpired(); n != 1 {
		t.Fatalf("expected 1 removal, got %d", n)
	}

	// a.test is still least recently used after the sweep
	c.Set("c.test", mx("mx.c.test"), time.Hour)
	c.Set("d.test", mx("mx.d.test"), time.Hour)

	if _, found := c.Get("a.test"); found {
		t.Error("expected a.test to be evicted first")
	}
	if _, found := c.Get("b.test"); !found {
		t.Error("expected b.test to survive")
	}
	if s := c.Statistics(); s.Evictions != 1 || s.Expirations != 1 {
		t.Errorf("unexpected counters: %+v", s)
	}
}
