package mxcache

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_ExportsStatistics(t *testing.T) {
	c := newTestCache(t, 1, newFakeClock())

	c.Set("a.test", mx("a"), 0)
	c.Get("a.test")
	c.Get("a.test")
	c.Get("a.test")
	c.Get("missing.test")
	c.Set("b.test", mx("b"), 0) // evicts a.test

	collector := NewCollector("test", c)

	expected := `
# HELP mxcache_entries Current number of MX cache entries
# TYPE mxcache_entries gauge
mxcache_entries{cache="test"} 1
# HELP mxcache_evictions_total Total MX cache LRU evictions
# TYPE mxcache_evictions_total counter
mxcache_evictions_total{cache="test"} 1
# HELP mxcache_hit_rate_percent MX cache hit rate as a percentage
# TYPE mxcache_hit_rate_percent gauge
mxcache_hit_rate_percent{cache="test"} 75
# HELP mxcache_hits_total Total MX cache hits
# TYPE mxcache_hits_total counter
mxcache_hits_total{cache="test"} 3
# HELP mxcache_misses_total Total MX cache misses
# TYPE mxcache_misses_total counter
mxcache_misses_total{cache="test"} 1
`
	err := testutil.CollectAndCompare(collector, strings.NewReader(expected),
		"mxcache_entries",
		"mxcache_evictions_total",
		"mxcache_hit_rate_percent",
		"mxcache_hits_total",
		"mxcache_misses_total",
	)
	if err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}

func TestCollector_Registers(t *testing.T) {
	c := newTestCache(t, 10, newFakeClock())

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(NewCollector("default", c)); err != nil {
		t.Fatalf("failed to register collector: %v", err)
	}

	if n := testutil.CollectAndCount(NewCollector("default", c)); n != 6 {
		t.Errorf("expected 6 metrics, got %d", n)
	}
}
