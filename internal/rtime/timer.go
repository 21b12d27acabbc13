// Package rtime provides a one-shot, cancellable, millisecond-resolution
// timer used by the connection manager's timer fabric.
package rtime

import (
	"sync"
	"time"
)

// Timer wraps time.Timer with an idempotent Cancel: cancelling after the
// callback has already fired is a no-op, and cancelling twice is safe.
type Timer struct {
	mu    sync.Mutex
	t     *time.Timer
	fired bool
}

// New arms a timer that invokes cb after delay. The callback runs on its own
// goroutine, as with time.AfterFunc; callers that need serialized execution
// must hand the callback off to their own single loop (see internal/connmgr).
func New(delay time.Duration, cb func()) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(delay, func() {
		tm.mu.Lock()
		tm.fired = true
		tm.mu.Unlock()
		cb()
	})
	return tm
}

// Cancel prevents the callback from firing if it has not fired yet. It
// returns true if the cancellation actually stopped a pending fire.
func (tm *Timer) Cancel() bool {
	if tm == nil {
		return false
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.fired {
		return false
	}
	return tm.t.Stop()
}
