package mxcache

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`   // LRU capacity evictions
	Expirations uint64 `json:"expirations"` // TTL removals, lazy or swept
	Size        int    `json:"size"`
	MaxSize     int    `json:"maxSize"`

	// HitRate is a percentage in [0, 100], derived from Hits and Misses when
	// the snapshot is taken.
	HitRate float64 `json:"hitRate"`
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
