// Package mxcache provides a bounded, TTL-aware, LRU-evicting cache of MX
// record sets keyed by domain.
package mxcache

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cruxstack/email-mx-validator-go/internal/types"
)

const (
	DefaultTTL           = 5 * time.Minute
	DefaultMaxSize       = 1000
	DefaultSweepInterval = time.Minute
)

// Config controls cache sizing and expiry. Zero values fall back to the
// package defaults; a negative SweepInterval disables the background sweep.
type Config struct {
	DefaultTTL    time.Duration
	MaxSize       int
	SweepInterval time.Duration

	// Clock is used for all expiry decisions; defaults to time.Now.
	Clock func() time.Time
}

type entry struct {
	records    []types.MXRecord
	insertedAt time.Time
	expiresAt  time.Time
}

// Cache is safe for concurrent use. Every operation, including the periodic
// sweep, runs as a single critical section under mu over the lru store and
// the counters.
type Cache struct {
	mu         sync.Mutex
	lru        *lru.Cache[string, entry]
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time

	// removing is set while mu is held for Remove/Purge calls so the evict
	// callback only counts capacity evictions.
	removing bool

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64

	stop      chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// New creates a cache and starts its expiry sweeper. Call Close to stop it.
func New(cfg Config) *Cache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	c := &Cache{
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultTTL,
		now:        cfg.Clock,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	// size is always positive here, the only error NewWithEvict returns
	c.lru, _ = lru.NewWithEvict[string, entry](cfg.MaxSize, c.onEvict)

	if cfg.SweepInterval > 0 {
		go c.sweepLoop(cfg.SweepInterval)
	} else {
		close(c.done)
	}

	return c
}

// onEvict runs inside lru calls made with c.mu held.
func (c *Cache) onEvict(_ string, _ entry) {
	if !c.removing {
		c.evictions++
	}
}

// NormalizeDomain returns the canonical cache key for a domain.
func NormalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}

// Get returns the live records for domain. Absent and expired entries count
// as misses; an expired entry is removed on this path.
func (c *Cache) Get(domain string) ([]types.MXRecord, bool) {
	key := NormalizeDomain(domain)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.lru.Get(key)
	if !found {
		c.misses++
		return nil, false
	}

	if !c.now().Before(e.expiresAt) {
		c.remove(key)
		c.expirations++
		c.misses++
		return nil, false
	}

	c.hits++
	return types.CopyMX(e.records), true
}

// Set stores records for domain. A ttl <= 0 uses the configured default.
// Replacing an existing key refreshes its value, TTL and recency; inserting a
// new key into a full cache first evicts the least recently used entry.
func (c *Cache) Set(domain string, records []types.MXRecord, ttl time.Duration) {
	key := NormalizeDomain(domain)
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.lru.Add(key, entry{
		records:    types.CopyMX(records),
		insertedAt: now,
		expiresAt:  now.Add(ttl),
	})
}

// Delete removes domain and reports whether an entry existed. Counters are
// left untouched.
func (c *Cache) Delete(domain string) bool {
	key := NormalizeDomain(domain)

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.remove(key)
}

// Flush drops every entry but keeps the statistics.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removing = true
	c.lru.Purge()
	c.removing = false
}

// ResetStatistics zeroes the counters without touching entries.
func (c *Cache) ResetStatistics() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hits, c.misses, c.evictions, c.expirations = 0, 0, 0, 0
}

// Statistics returns a consistent snapshot of the counters.
func (c *Cache) Statistics() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Size:        c.lru.Len(),
		MaxSize:     c.maxSize,
		HitRate:     hitRate(c.hits, c.misses),
	}
}

// Len returns the number of stored entries, including expired entries the
// sweeper has not reached yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// DefaultTTL returns the TTL applied when Set is called without one.
func (c *Cache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Close stops the background sweeper. It is safe to call more than once.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
	})
	<-c.done
}

// remove must be called with c.mu held.
func (c *Cache) remove(key string) bool {
	c.removing = true
	defer func() { c.removing = false }()
	return c.lru.Remove(key)
}
