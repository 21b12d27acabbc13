package connmgr

import (
	"sync"
	"time"

	"github.com/whisper/realtime-conn/internal/rtime"
)

// timerKind identifies which of the three named timers fired (spec.md §4.7).
type timerKind int

const (
	timerTransition timerKind = iota
	timerSuspend
	timerRetry
)

func (k timerKind) String() string {
	switch k {
	case timerTransition:
		return "transition"
	case timerSuspend:
		return "suspend"
	case timerRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// timerFired is posted to the manager's serializing loop when a timer
// expires; the loop re-checks state before acting on it (spec.md §5 says a
// late callback must either be observed or have been cancelled, never both).
type timerFired struct {
	kind timerKind
}

// TimerFabric owns the three named timers described in spec.md §4.7. All
// arm/cancel calls must come from the manager's single serializing loop;
// the fired callback only posts to post and never touches manager state
// directly (ground: teacher's internal/ws/heartbeat.go ticker-driven
// checkConnections, generalized from one repeating ticker to three
// independent one-shot timers).
type TimerFabric struct {
	mu         sync.Mutex
	transition *rtime.Timer
	suspend    *rtime.Timer
	retry      *rtime.Timer
	post       func(timerFired)
}

// NewTimerFabric returns a TimerFabric that posts expirations via post.
func NewTimerFabric(post func(timerFired)) *TimerFabric {
	return &TimerFabric{post: post}
}

// ArmTransition (re)arms the transition timer, cancelling any existing one.
func (f *TimerFabric) ArmTransition(delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transition.Cancel()
	f.transition = rtime.New(delay, func() { f.post(timerFired{kind: timerTransition}) })
}

// CancelTransition cancels the transition timer if armed.
func (f *TimerFabric) CancelTransition() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transition.Cancel()
}

// ArmSuspendIfAbsent arms the suspend timer only if it is not already
// running — the suspend timer is armed at most once across the whole
// not-CONNECTED period (spec.md §3 invariant).
func (f *TimerFabric) ArmSuspendIfAbsent(delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.suspend != nil {
		return
	}
	f.suspend = rtime.New(delay, func() { f.post(timerFired{kind: timerSuspend}) })
}

// CancelSuspend cancels and clears the suspend timer.
func (f *TimerFabric) CancelSuspend() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.suspend != nil {
		f.suspend.Cancel()
		f.suspend = nil
	}
}

// ArmRetry (re)arms the retry timer, cancelling any existing one.
func (f *TimerFabric) ArmRetry(delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retry.Cancel()
	f.retry = rtime.New(delay, func() { f.post(timerFired{kind: timerRetry}) })
}

// CancelRetry cancels the retry timer if armed.
func (f *TimerFabric) CancelRetry() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retry.Cancel()
}

// CancelAll cancels and clears every timer. Used on terminal transitions
// (CLOSED, FAILED) and in tests asserting "no armed timers" per spec.md §8's
// round-trip law.
func (f *TimerFabric) CancelAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transition.Cancel()
	f.retry.Cancel()
	if f.suspend != nil {
		f.suspend.Cancel()
		f.suspend = nil
	}
}
