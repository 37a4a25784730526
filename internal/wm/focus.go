package wm

import (
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/tessera/internal/model"
)

// Focused returns the focused frame id, or 0.
func (m *Manager) Focused() xproto.Window { return m.focused }

// Focus raises f and gives its client the input focus. A preview focus,
// made while a switch session is open, leaves the switcher stack alone.
func (m *Manager) Focus(f *model.Frame, preview bool) {
	if !preview {
		m.unhide(f)
	}
	m.raise(f)
	m.conn.Focus(f.Client().ID)
	m.markFocused(f)
	if !preview {
		m.switcher.BringToFront(f.ID)
	}
}

// markFocused records f as the active frame without touching the server's
// focus, for focus changes the client made itself.
func (m *Manager) markFocused(f *model.Frame) {
	if m.focused != f.ID {
		if old, ok := m.conn.Registry().FrameByID(m.focused); ok && old.SetActive(false) {
			m.refresh(old)
		}
	}
	m.focused = f.ID
	if f.SetActive(true) {
		m.refresh(f)
	}
	m.conn.SetActiveWindow(f.Client().ID)
}

func (m *Manager) raise(f *model.Frame) {
	m.conn.Raise(f.ID)
	if m.conn.Registry().Raise(f.ID) {
		m.publishClients()
	}
}

// focusFallback focuses the most recently used frame that is still visible.
func (m *Manager) focusFallback() {
	for _, id := range m.switcher.Stack() {
		f, ok := m.conn.Registry().FrameByID(id)
		if !ok || m.iconified[id] {
			continue
		}
		m.Focus(f, false)
		return
	}
	m.conn.Focus(m.conn.Root)
	m.conn.SetActiveWindow(0)
}
