package ingestion

import (
	"context"
	"sync"
)

// tracker counts objects between enqueue and final accounting.
// Unlike sync.WaitGroup it allows Add concurrently with Wait, and waiters
// can be released early by stop.
type tracker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	n       int
	stopped bool
}

func newTracker() *tracker {
	t := &tracker{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (t *tracker) add(n int) {
	t.mu.Lock()
	t.n += n
	t.mu.Unlock()
}

func (t *tracker) done(n int) {
	t.mu.Lock()
	t.n -= n
	if t.n <= 0 {
		t.n = 0
		t.cond.Broadcast()
	}
	t.mu.Unlock()
}

func (t *tracker) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

// stop releases all current and future waiters.
func (t *tracker) stop() {
	t.mu.Lock()
	t.stopped = true
	t.cond.Broadcast()
	t.mu.Unlock()
}

// wait blocks until nothing is in flight, the tracker is stopped or ctx is done.
func (t *tracker) wait(ctx context.Context) error {
	unregister := context.AfterFunc(ctx, func() {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	})
	defer unregister()

	t.mu.Lock()
	defer t.mu.Unlock()
	for t.n > 0 && !t.stopped {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.cond.Wait()
	}
	return ctx.Err()
}
