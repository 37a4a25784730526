// Package switcher keeps the most-recently-used frame stack and drives
// alt-tab cycling over it.
package switcher

import (
	"log/slog"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/tessera/internal/model"
)

// Focuser moves input focus between frames.
type Focuser interface {
	// Focused returns the currently focused frame id, or 0.
	Focused() xproto.Window
	// Focus gives f input focus. Preview is true while a switch session is
	// still open and the stack must not be reordered.
	Focus(f *model.Frame, preview bool)
}

// FrameLookup resolves frame ids. Ids that no longer resolve are stale.
type FrameLookup interface {
	FrameByID(id xproto.Window) (*model.Frame, bool)
}

// Switcher holds the MRU stack, most recently focused first.
type Switcher struct {
	frames FrameLookup
	focus  Focuser
	logger *slog.Logger

	stack []xproto.Window

	switching     bool
	index         int
	previousFocus xproto.Window
}

// New returns an empty switcher.
func New(frames FrameLookup, focus Focuser, logger *slog.Logger) *Switcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Switcher{frames: frames, focus: focus, logger: logger}
}

// Stack returns a copy of the stack, most recent first.
func (s *Switcher) Stack() []xproto.Window {
	return append([]xproto.Window(nil), s.stack...)
}

// Switching reports whether a session is open.
func (s *Switcher) Switching() bool { return s.switching }

// Index is the current selection within the stack.
func (s *Switcher) Index() int { return s.index }

// Add appends a newly managed frame at the back of the stack.
func (s *Switcher) Add(id xproto.Window) {
	if s.indexOf(id) >= 0 {
		return
	}
	s.stack = append(s.stack, id)
}

// BringToFront moves id to the front. Focus changes made by a switch session
// itself do not reorder until Complete.
func (s *Switcher) BringToFront(id xproto.Window) {
	if s.switching {
		return
	}
	s.remove(id)
	s.stack = append([]xproto.Window{id}, s.stack...)
}

// Remove deletes id wherever it appears. An open session stays valid.
func (s *Switcher) Remove(id xproto.Window) {
	i := s.indexOf(id)
	if i < 0 {
		return
	}
	s.remove(id)
	if s.previousFocus == id {
		s.previousFocus = 0
	}
	if !s.switching {
		return
	}
	if len(s.stack) == 0 {
		s.reset()
		return
	}
	if i < s.index || s.index >= len(s.stack) {
		s.index--
		if s.index < 0 {
			s.index = len(s.stack) - 1
		}
	}
}

// Start opens a session, remembering the current focus.
func (s *Switcher) Start() bool {
	s.prune()
	if len(s.stack) == 0 {
		return false
	}
	s.switching = true
	s.index = 0
	s.previousFocus = s.focus.Focused()
	return true
}

// CycleForward previews the next frame, wrapping at the end.
func (s *Switcher) CycleForward() { s.cycle(1) }

// CycleBackward previews the previous frame, wrapping at the start.
func (s *Switcher) CycleBackward() { s.cycle(-1) }

func (s *Switcher) cycle(step int) {
	if !s.switching && !s.Start() {
		return
	}
	s.prune()
	n := len(s.stack)
	if n == 0 {
		s.reset()
		return
	}
	s.index = ((s.index+step)%n + n) % n
	if f, ok := s.frames.FrameByID(s.stack[s.index]); ok {
		s.focus.Focus(f, true)
	}
}

// Complete commits focus to the selected frame and moves it to the front.
func (s *Switcher) Complete() {
	if !s.switching {
		return
	}
	s.prune()
	if len(s.stack) == 0 {
		s.reset()
		return
	}
	id := s.stack[s.index%len(s.stack)]
	s.reset()
	f, ok := s.frames.FrameByID(id)
	if !ok {
		return
	}
	s.BringToFront(id)
	s.focus.Focus(f, false)
	s.logger.Debug("switch completed", "frame", id)
}

// Cancel ends the session, restoring the focus it started with. The stack
// is left untouched.
func (s *Switcher) Cancel() {
	if !s.switching {
		return
	}
	prev := s.previousFocus
	s.reset()
	if prev == 0 {
		return
	}
	if f, ok := s.frames.FrameByID(prev); ok {
		s.focus.Focus(f, true)
	}
}

func (s *Switcher) reset() {
	s.switching = false
	s.index = 0
	s.previousFocus = 0
}

// prune drops stack entries whose frames are gone.
func (s *Switcher) prune() {
	live := s.stack[:0]
	for i, id := range s.stack {
		if _, ok := s.frames.FrameByID(id); ok {
			live = append(live, id)
		} else if s.switching && i < s.index {
			s.index--
		}
	}
	s.stack = live
	if s.index < 0 {
		s.index = 0
	}
	if n := len(s.stack); n > 0 && s.index >= n {
		s.index = n - 1
	}
}

func (s *Switcher) indexOf(id xproto.Window) int {
	for i, sid := range s.stack {
		if sid == id {
			return i
		}
	}
	return -1
}

func (s *Switcher) remove(id xproto.Window) {
	if i := s.indexOf(id); i >= 0 {
		s.stack = append(s.stack[:i], s.stack[i+1:]...)
	}
}
