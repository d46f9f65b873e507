package mxcache

import "time"

func (c *Cache) sweepLoop(interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.RemoveExpired()
		case <-c.stop:
			return
		}
	}
}

// RemoveExpired deletes every entry whose expiry has passed and returns how
// many were removed. The background sweeper calls it on each tick. Peek is
// used so the sweep leaves recency untouched.
func (c *Cache) RemoveExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0

	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if ok && !now.Before(e.expiresAt) {
			c.remove(key)
			removed++
		}
	}

	c.expirations += uint64(removed)
	return removed
}
