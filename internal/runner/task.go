package runner

import (
	"context"
	"sync"
	"time"
)

// task is a repeating callback. Its body runs with mu held and checks the
// cancelled flag first; cancel sets that flag under the same lock, so once
// cancel returns the body never runs again.
type task struct {
	stop      chan struct{}
	cancelled bool
}

func startTask(ctx context.Context, mu sync.Locker, interval time.Duration, now func() time.Time, fn func(time.Time)) *task {
	t := &task{stop: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				mu.Lock()
				if t.cancelled {
					mu.Unlock()
					return
				}
				fn(now())
				done := t.cancelled
				mu.Unlock()
				if done {
					return
				}

			case <-t.stop:
				return

			case <-ctx.Done():
				return
			}
		}
	}()

	return t
}

// cancel must be called with the task's lock held. Safe on a nil task.
func (t *task) cancel() {
	if t == nil || t.cancelled {
		return
	}
	t.cancelled = true
	close(t.stop)
}
