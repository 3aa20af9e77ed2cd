// cleanup.go - Background maintenance sweeps.
//
// The rate limiter sweeps its own store; this sweeper handles durable
// state: expired summary-cache rows. Interval and batch behavior are
// deliberately coarse; nothing here is latency sensitive.
package server

import (
	"context"
	"time"
)

const summaryCleanupInterval = time.Hour

// startSummaryCleanup deletes expired summary rows on a fixed interval
// until the returned stop function is called.
func startSummaryCleanup(store SummaryStore) (stop func()) {
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(summaryCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				n, err := store.DeleteExpired(ctx, time.Now().UTC())
				cancel()
				if err != nil {
					Error("summary_cleanup_failed", nil, err)
					continue
				}
				if n > 0 {
					Info("summary_cleanup", map[string]any{"deleted": n})
				}
			}
		}
	}()

	return func() { close(done) }
}
