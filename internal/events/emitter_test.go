package events

import "testing"

func TestOnFiresInSubscriptionOrder(t *testing.T) {
	e := NewEmitter[int]()
	var order []int

	e.On("x", func(v int) { order = append(order, 1) })
	e.On("x", func(v int) { order = append(order, 2) })
	e.On("x", func(v int) { order = append(order, 3) })

	e.Emit("x", 0)

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestOnceRemovedBeforeInvocation(t *testing.T) {
	e := NewEmitter[string]()
	calls := 0
	e.Once("y", func(v string) { calls++ })

	e.Emit("y", "a")
	e.Emit("y", "b")

	if calls != 1 {
		t.Fatalf("expected once handler to fire exactly once, got %d", calls)
	}
}

func TestOff(t *testing.T) {
	e := NewEmitter[int]()
	calls := 0
	h := e.On("z", func(v int) { calls++ })
	e.Off(h)
	e.Emit("z", 1)

	if calls != 0 {
		t.Fatalf("expected handler removed by Off to not fire, got %d calls", calls)
	}
}

func TestHandlerPanicDoesNotBreakOtherSubscribers(t *testing.T) {
	e := NewEmitter[int]()
	second := false

	e.On("p", func(v int) { panic("boom") })
	e.On("p", func(v int) { second = true })

	e.Emit("p", 1)

	if !second {
		t.Fatal("second handler should still run after the first panics")
	}
}
