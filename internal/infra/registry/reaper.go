package registry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/plusplusoneplusplus/dfcache/internal/infra/metrics"
)

// reaper is the Background Reaper (C3): a single cooperative task that
// periodically sweeps expired entries from its owning Registry.
//
// Grounded on the teacher's Pool.IdleReaper(ctx): a time.Ticker plus a
// ctx.Done()/ticker.C select loop. Extended, per SPEC_FULL.md §4.3/§9,
// to track a sync.WaitGroup so stop() can block until the goroutine has
// actually exited — the teacher's version is fire-and-forget and does
// not support deterministic shutdown.
type reaper struct {
	registry *Registry
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newReaper(r *Registry, interval time.Duration) *reaper {
	return &reaper{registry: r, interval: interval}
}

// start spawns the sweep loop if it is not already running. Idempotent.
func (rp *reaper) start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	rp.cancel = cancel
	rp.running = true
	rp.wg.Add(1)
	go rp.loop(ctx)
}

// stop signals cancellation and waits for the loop to terminate. A
// no-op if start was never called.
func (rp *reaper) stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.cancel()
	rp.running = false
	rp.mu.Unlock()

	rp.wg.Wait()
}

func (rp *reaper) loop(ctx context.Context) {
	defer rp.wg.Done()

	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := rp.registry.CleanupExpired()
			metrics.ReaperSweepsTotal.Inc()
			if n > 0 {
				metrics.ReaperExpiredTotal.Add(float64(n))
				log.Printf("[reaper] swept %d expired dataset(s)", n)
			}
		}
	}
}
