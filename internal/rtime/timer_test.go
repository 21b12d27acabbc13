package rtime

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerFires(t *testing.T) {
	var fired atomic.Bool
	tm := New(10*time.Millisecond, func() { fired.Store(true) })
	defer tm.Cancel()

	time.Sleep(50 * time.Millisecond)
	if !fired.Load() {
		t.Fatal("expected timer to fire")
	}
}

func TestCancelBeforeFire(t *testing.T) {
	var fired atomic.Bool
	tm := New(50*time.Millisecond, func() { fired.Store(true) })

	ok := tm.Cancel()
	if !ok {
		t.Fatal("expected Cancel to report it stopped the timer")
	}

	time.Sleep(80 * time.Millisecond)
	if fired.Load() {
		t.Fatal("callback fired after cancel")
	}
}

func TestCancelAfterFireIsNoop(t *testing.T) {
	var fired atomic.Bool
	tm := New(5*time.Millisecond, func() { fired.Store(true) })

	time.Sleep(40 * time.Millisecond)
	if !fired.Load() {
		t.Fatal("expected timer to have fired")
	}

	if ok := tm.Cancel(); ok {
		t.Fatal("Cancel after fire should report false")
	}
}

func TestCancelNilTimer(t *testing.T) {
	var tm *Timer
	if tm.Cancel() {
		t.Fatal("cancel on nil timer must return false")
	}
}
