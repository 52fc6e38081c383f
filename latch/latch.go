/*
Package latch provides a one-shot shutdown signal shared between the owner of a
background task and the task itself.

A Latch starts locked. The owner calls Unlock exactly when the task should stop;
the task observes it via Done, Wait or Poll. Once unlocked a latch never locks
again.
*/
package latch

import (
	"context"
	"sync"
)

type Latch struct {
	mu       sync.Mutex
	unlocked bool
	waiter   func()
	done     chan struct{}
}

// New returns a locked latch.
func New() *Latch {
	return &Latch{
		done: make(chan struct{}),
	}
}

// Unlock releases the latch. Only the first call changes any state; it wakes the
// registered waiter (if any) and closes the Done channel. Further calls are no-ops.
func (l *Latch) Unlock() {
	l.mu.Lock()
	if l.unlocked {
		l.mu.Unlock()
		return
	}
	l.unlocked = true
	wake := l.waiter
	l.waiter = nil
	close(l.done)
	l.mu.Unlock()

	if wake != nil {
		wake()
	}
}

// Poll reports whether the latch has been unlocked. While it is still locked, wake
// is stored as the single waiter to notify on Unlock, replacing any waiter
// registered by an earlier Poll. Callers that need every observer woken should
// use Done instead.
func (l *Latch) Poll(wake func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.unlocked {
		return true
	}
	l.waiter = wake
	return false
}

// Done returns a channel that is closed when the latch is unlocked.
func (l *Latch) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the latch is unlocked or the context is done.
func (l *Latch) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Latch) Unlocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unlocked
}
