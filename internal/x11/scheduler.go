package x11

import (
	"time"
)

type timer struct {
	every time.Duration
	next  time.Time
	fn    func()
	once  bool
}

// scheduler holds periodic and one-shot tasks run by the event loop.
type scheduler struct {
	timers []*timer
	// changed is set when a timer is added and cleared when the loop
	// re-arms.
	changed bool
}

func newScheduler() *scheduler { return &scheduler{} }

func (s *scheduler) add(now time.Time, every time.Duration, fn func()) {
	s.timers = append(s.timers, &timer{every: every, next: now.Add(every), fn: fn})
	s.changed = true
}

func (s *scheduler) addOnce(now time.Time, after time.Duration, fn func()) {
	s.timers = append(s.timers, &timer{next: now.Add(max(after, 0)), fn: fn, once: true})
	s.changed = true
}

// wait returns the time until the earliest timer, or false with no timers.
func (s *scheduler) wait(now time.Time) (time.Duration, bool) {
	if len(s.timers) == 0 {
		return 0, false
	}
	earliest := s.timers[0].next
	for _, t := range s.timers[1:] {
		if t.next.Before(earliest) {
			earliest = t.next
		}
	}
	return max(earliest.Sub(now), 0), true
}

// due returns the callbacks whose time has come, reschedules periodic ones
// and drops one-shots. A periodic timer that fell behind runs once and skips
// the missed ticks.
func (s *scheduler) due(now time.Time) []func() {
	var out []func()
	kept := s.timers[:0]
	for _, t := range s.timers {
		if now.Before(t.next) {
			kept = append(kept, t)
			continue
		}
		out = append(out, t.fn)
		if t.once {
			continue
		}
		t.next = t.next.Add(t.every)
		if !t.next.After(now) {
			t.next = now.Add(t.every)
		}
		kept = append(kept, t)
	}
	clear(s.timers[len(kept):])
	s.timers = kept
	return out
}
