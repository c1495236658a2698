package cache

import (
	"context"
	"time"
)

// RunSweeper periodically evicts expired entries and flushes the snapshot
// until ctx is cancelled. It blocks; run it in a goroutine owned by the
// process lifecycle:
//
//	go docCache.RunSweeper(ctx, time.Hour)
//
// A final flush happens on cancellation so shutdown never loses the latest
// state, independent of the Close call.
func (c *Cache[V]) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Flush()
			return
		case <-ticker.C:
			c.EvictExpired()
			c.Flush()
		}
	}
}
