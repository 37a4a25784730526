package x11

import (
	"testing"
	"time"
)

func TestSchedulerWait(t *testing.T) {
	s := newScheduler()
	now := time.Unix(1000, 0)
	if _, ok := s.wait(now); ok {
		t.Fatal("wait reported a timer on an empty scheduler")
	}
	s.add(now, 2*time.Second, func() {})
	s.add(now, 500*time.Millisecond, func() {})
	if !s.changed {
		t.Fatal("add did not mark the scheduler changed")
	}
	d, ok := s.wait(now)
	if !ok || d != 500*time.Millisecond {
		t.Fatalf("wait = %v, %v; want 500ms, true", d, ok)
	}
	if d, _ := s.wait(now.Add(time.Second)); d != 0 {
		t.Fatalf("overdue wait = %v, want 0", d)
	}
}

func TestSchedulerDueSkipsMissedTicks(t *testing.T) {
	s := newScheduler()
	now := time.Unix(1000, 0)
	runs := 0
	s.add(now, time.Second, func() { runs++ })

	if got := s.due(now.Add(500 * time.Millisecond)); len(got) != 0 {
		t.Fatalf("due before the first tick returned %d callbacks", len(got))
	}

	late := now.Add(5 * time.Second)
	for _, fn := range s.due(late) {
		fn()
	}
	if runs != 1 {
		t.Fatalf("runs = %d, want 1", runs)
	}
	d, _ := s.wait(late)
	if d != time.Second {
		t.Fatalf("next tick in %v, want 1s", d)
	}
}

func TestSchedulerOneShotRunsOnce(t *testing.T) {
	s := newScheduler()
	now := time.Unix(1000, 0)
	runs := 0
	s.addOnce(now, 16*time.Millisecond, func() { runs++ })
	s.add(now, time.Second, func() {})

	if d, _ := s.wait(now); d != 16*time.Millisecond {
		t.Fatalf("wait = %v, want 16ms", d)
	}
	for _, fn := range s.due(now.Add(20 * time.Millisecond)) {
		fn()
	}
	for _, fn := range s.due(now.Add(40 * time.Millisecond)) {
		fn()
	}
	if runs != 1 {
		t.Fatalf("runs = %d, want 1", runs)
	}
	if len(s.timers) != 1 {
		t.Fatalf("timers = %d after the one-shot fired, want the periodic one", len(s.timers))
	}
	if d, _ := s.wait(now.Add(40 * time.Millisecond)); d != 960*time.Millisecond {
		t.Fatalf("next tick in %v, want 960ms", d)
	}
}
