package mxcache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports cache statistics to Prometheus. Values are read from
// Statistics on every scrape, so they always match the cache counters.
type Collector struct {
	cache *Cache
	name  string

	hits        *prometheus.Desc
	misses      *prometheus.Desc
	evictions   *prometheus.Desc
	expirations *prometheus.Desc
	entries     *prometheus.Desc
	hitRate     *prometheus.Desc
}

// NewCollector returns a collector labelled with cache=name.
func NewCollector(name string, c *Cache) *Collector {
	labels := prometheus.Labels{"cache": name}
	return &Collector{
		cache: c,
		name:  name,
		hits: prometheus.NewDesc("mxcache_hits_total",
			"Total MX cache hits", nil, labels),
		misses: prometheus.NewDesc("mxcache_misses_total",
			"Total MX cache misses", nil, labels),
		evictions: prometheus.NewDesc("mxcache_evictions_total",
			"Total MX cache LRU evictions", nil, labels),
		expirations: prometheus.NewDesc("mxcache_expirations_total",
			"Total MX cache entries removed after TTL expiry", nil, labels),
		entries: prometheus.NewDesc("mxcache_entries",
			"Current number of MX cache entries", nil, labels),
		hitRate: prometheus.NewDesc("mxcache_hit_rate_percent",
			"MX cache hit rate as a percentage", nil, labels),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.expirations
	ch <- c.entries
	ch <- c.hitRate
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.cache.Statistics()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(c.expirations, prometheus.CounterValue, float64(s.Expirations))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Size))
	ch <- prometheus.MustNewConstMetric(c.hitRate, prometheus.GaugeValue, s.HitRate)
}
