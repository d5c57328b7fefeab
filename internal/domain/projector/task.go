package projector

import (
	"context"
	"sync"
	"time"
)

// RefreshTask owns at most one in-flight delayed refresh for an entity.
// Scheduling a new refresh cancels the previous one, so a stale push can
// never overwrite a fresher one (last-command-wins). Cancellation is
// expected and silent.
type RefreshTask struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (t *RefreshTask) replace() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	return ctx
}

// After runs fn once d has elapsed, unless superseded or stopped first.
func (t *RefreshTask) After(d time.Duration, fn func()) {
	ctx := t.replace()
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			fn()
		}
	}()
}

// Poll runs probe every interval until it returns true or timeout elapses,
// then runs fn. Superseding or stopping the task ends the poll early without
// running fn.
func (t *RefreshTask) Poll(interval, timeout time.Duration, probe func() bool, fn func()) {
	ctx := t.replace()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		deadline := time.NewTimer(timeout)
		defer deadline.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-deadline.C:
				fn()
				return
			case <-ticker.C:
				if probe() {
					fn()
					return
				}
			}
		}
	}()
}

// Stop cancels the in-flight refresh, if any.
func (t *RefreshTask) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}
