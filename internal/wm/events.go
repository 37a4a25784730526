package wm

import (
	"github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/icccm"

	"github.com/1broseidon/tessera/internal/geom"
	"github.com/1broseidon/tessera/internal/namespace"
	"github.com/1broseidon/tessera/internal/x11"
)

// _NET_WM_STATE client message actions.
const (
	netStateRemove = 0
	netStateAdd    = 1
	netStateToggle = 2
)

// _NET_ACTIVE_WINDOW source indication of a regular application.
const sourceApplication = 1

func rootPoint(x, y int16) geom.Point { return geom.Point{X: int(x), Y: int(y)} }

func (m *Manager) CreateNotify(xproto.CreateNotifyEvent) {}

func (m *Manager) MapRequest(ev xproto.MapRequestEvent) {
	if f, ok := m.frameOf(ev.Window); ok {
		if m.iconified[f.ID] {
			m.Focus(f, false)
		}
		return
	}
	if m.ownWindow(ev.Window) {
		m.conn.Map(ev.Window)
		return
	}
	if _, managed := m.adopt(ev.Window); !managed {
		// Tracked for compositing once its MapNotify arrives.
		m.conn.Map(ev.Window)
	}
}

func (m *Manager) MapNotify(ev xproto.MapNotifyEvent) {
	if ev.Event != m.conn.Root {
		return
	}
	if f, ok := m.conn.Registry().FrameByID(ev.Window); ok {
		m.comp.SetMapped(f.ID, true)
		return
	}
	if _, ok := m.frameOf(ev.Window); ok || m.ownWindow(ev.Window) {
		return
	}
	if _, ok := m.unmanaged[ev.Window]; ok {
		m.comp.SetMapped(ev.Window, true)
		return
	}
	w, err := m.conn.ReadClient(ev.Window)
	if err != nil {
		return
	}
	m.trackUnmanaged(w)
}

func (m *Manager) UnmapNotify(ev xproto.UnmapNotifyEvent) {
	f, ok := m.frameOf(ev.Window)
	if !ok {
		if ev.Event == m.conn.Root {
			if _, tracked := m.unmanaged[ev.Window]; tracked {
				m.comp.SetMapped(ev.Window, false)
			}
		}
		return
	}
	switch {
	case ev.Window == f.ID:
		m.comp.SetMapped(f.ID, false)
	case ev.Window == f.Client().ID && ev.Event == f.ID:
		m.unmanage(f, releaseWithdrawn)
	case ev.Window == f.Client().ID && ev.Event == m.conn.Root && m.iconified[f.ID]:
		// ICCCM withdrawal of an iconic window arrives as a synthetic
		// unmap on the root.
		m.unmanage(f, releaseWithdrawn)
	}
}

func (m *Manager) DestroyNotify(ev xproto.DestroyNotifyEvent) {
	if f, ok := m.frameOf(ev.Window); ok {
		if ev.Window == f.Client().ID {
			m.unmanage(f, releaseDestroyed)
		}
		return
	}
	if _, ok := m.docks[ev.Window]; ok {
		delete(m.docks, ev.Window)
		m.updateWorkArea()
	}
	m.untrackUnmanaged(ev.Window)
}

func (m *Manager) ReparentNotify(ev xproto.ReparentNotifyEvent) {
	if ev.Parent != m.conn.Root {
		m.untrackUnmanaged(ev.Window)
	}
}

func (m *Manager) ConfigureRequest(ev xproto.ConfigureRequestEvent) {
	f, ok := m.frameOf(ev.Window)
	if !ok || ev.Window != f.Client().ID {
		m.conn.ConfigureRaw(ev)
		return
	}
	if ev.ValueMask&xproto.ConfigWindowStackMode != 0 && ev.StackMode == xproto.StackModeAbove {
		m.raise(f)
	}
	if f.Maximized || m.machine.State().Frame == f.ID {
		m.NotifyConfigure(f)
		return
	}
	want := requestedRect(f.ClientRect(), ev)
	if want == f.ClientRect() {
		m.NotifyConfigure(f)
		return
	}
	prev := f.Rect
	f.SetRect(f.FrameRectFor(want))
	if err := m.ApplyGeometry(f); err != nil {
		f.SetRect(prev)
		m.logger.Warn("client configure rejected", "client", ev.Window, "rect", want.String(), "error", err)
	}
	m.NotifyConfigure(f)
	if f.Rect.Width != prev.Width {
		m.refresh(f)
	}
}

func (m *Manager) ConfigureNotify(ev xproto.ConfigureNotifyEvent) {
	if ev.Window == m.conn.Root {
		m.updateWorkArea()
		m.comp.DamageAll()
		return
	}
	if ev.Event != m.conn.Root {
		return
	}
	if _, ok := m.docks[ev.Window]; ok {
		m.updateWorkArea()
	}
	if _, ok := m.unmanaged[ev.Window]; ok {
		m.comp.HandleConfigure(ev.Window, geom.R(int(ev.X), int(ev.Y), int(ev.Width), int(ev.Height)))
	}
}

func (m *Manager) ButtonPress(ev xproto.ButtonPressEvent) {
	f, ok := m.frameOf(ev.Event)
	if !ok {
		return
	}
	onClient := ev.Event == f.Client().ID
	if ev.Detail != xproto.ButtonIndex1 {
		if onClient {
			m.conn.ReplayPointer()
		}
		return
	}

	consumed := m.machine.ButtonPress(ev.Event, rootPoint(ev.RootX, ev.RootY))
	if m.focused != f.ID {
		m.Focus(f, false)
	} else {
		m.raise(f)
	}
	if onClient {
		if !consumed {
			m.conn.ReplayPointer()
			return
		}
		m.conn.ThawPointer()
	}
	if m.machine.State().Active() {
		m.grabPointer(f)
	}
}

func (m *Manager) ButtonRelease(ev xproto.ButtonReleaseEvent) {
	if ev.Detail != xproto.ButtonIndex1 {
		return
	}
	m.machine.ButtonRelease(rootPoint(ev.RootX, ev.RootY))
	m.releasePointer()
}

func (m *Manager) MotionNotify(ev xproto.MotionNotifyEvent) {
	if m.machine.State().Active() {
		m.machine.Motion(rootPoint(ev.RootX, ev.RootY))
	}
}

func (m *Manager) EnterNotify(xproto.EnterNotifyEvent) {}
func (m *Manager) LeaveNotify(xproto.LeaveNotifyEvent) {}

// FocusIn follows focus changes a client made on its own.
func (m *Manager) FocusIn(ev xproto.FocusInEvent) {
	if ev.Mode != xproto.NotifyModeNormal || ev.Detail == xproto.NotifyDetailPointer {
		return
	}
	f, ok := m.frameOf(ev.Event)
	if !ok || ev.Event != f.Client().ID || m.focused == f.ID {
		return
	}
	m.markFocused(f)
	m.switcher.BringToFront(f.ID)
}

func (m *Manager) FocusOut(xproto.FocusOutEvent) {}

func (m *Manager) Expose(ev xproto.ExposeEvent) {
	if ev.Count != 0 {
		return
	}
	f, ok := m.frameOf(ev.Window)
	if !ok || ev.Window != f.Titlebar().ID {
		return
	}
	if !m.painter.Repaint(f.Titlebar()) {
		if err := m.RenderTitlebar(f); err != nil {
			m.logger.Debug("titlebar render failed", "frame", f.ID, "error", err)
		}
	}
}

func (m *Manager) VisibilityNotify(xproto.VisibilityNotifyEvent) {}

func (m *Manager) PropertyNotify(ev xproto.PropertyNotifyEvent) {
	name := m.conn.AtomName(ev.Atom)
	if _, dock := m.docks[ev.Window]; dock {
		if name == "_NET_WM_STRUT_PARTIAL" || name == "_NET_WM_STRUT" {
			m.updateWorkArea()
		}
		return
	}
	f, ok := m.frameOf(ev.Window)
	if !ok || ev.Window != f.Client().ID {
		return
	}
	client := f.Client()
	switch name {
	case "_NET_WM_NAME", "WM_NAME":
		title := m.conn.Title(client.ID)
		if title == client.Title {
			return
		}
		client.Title = title
		m.refresh(f)
	case "WM_NORMAL_HINTS", "_GNUSTEP_WM_ATTR", "_NET_WM_STATE":
		w, err := m.conn.ReadClient(client.ID)
		if err != nil {
			return
		}
		client.Flags = w.Flags
		client.Attrs = w.Attrs
		m.fixed[client.ID] = w.FixedSize()
		m.refresh(f)
	}
}

func (m *Manager) ClientMessage(ev xproto.ClientMessageEvent) {
	if ev.Format != 32 {
		return
	}
	name := m.conn.AtomName(ev.Type)
	f, ok := m.frameOf(ev.Window)
	if !ok {
		return
	}
	data := ev.Data.Data32
	switch name {
	case "_NET_ACTIVE_WINDOW":
		if len(data) > 0 && data[0] == sourceApplication && m.focused != 0 {
			if !m.ns.ValidateOperation(namespace.OpFocus, m.ClientFor(m.focused), f.Client().ID) {
				return
			}
		}
		m.Focus(f, false)
	case "_NET_CLOSE_WINDOW":
		m.Close(f)
	case "WM_CHANGE_STATE":
		if len(data) > 0 && data[0] == icccm.StateIconic {
			m.Miniaturize(f)
		}
	case "_NET_WM_STATE":
		if len(data) < 3 {
			return
		}
		m.applyStateRequest(f.ID, data[0], m.conn.AtomName(xproto.Atom(data[1])), m.conn.AtomName(xproto.Atom(data[2])))
	}
}

// applyStateRequest honors maximize and hide requests from _NET_WM_STATE.
func (m *Manager) applyStateRequest(id xproto.Window, action uint32, props ...string) {
	f, ok := m.conn.Registry().FrameByID(id)
	if !ok {
		return
	}
	var maximize, hidden bool
	for _, p := range props {
		switch p {
		case x11.StateMaximizedHorz, x11.StateMaximizedVert:
			maximize = true
		case x11.StateHidden:
			hidden = true
		}
	}
	if maximize && wantState(action, f.Maximized) != f.Maximized {
		if err := m.machine.ToggleMaximize(f); err != nil {
			m.logger.Warn("maximize request failed", "frame", f.ID, "error", err)
		}
	}
	if hidden {
		switch want := wantState(action, m.iconified[f.ID]); {
		case want && !m.iconified[f.ID]:
			m.Miniaturize(f)
		case !want && m.iconified[f.ID]:
			m.Focus(f, false)
		}
	}
}

// wantState resolves a _NET_WM_STATE action against the current value.
func wantState(action uint32, current bool) bool {
	switch action {
	case netStateRemove:
		return false
	case netStateAdd:
		return true
	case netStateToggle:
		return !current
	default:
		return current
	}
}

// requestedRect applies the geometry fields a ConfigureRequest sets to cur.
func requestedRect(cur geom.Rect, ev xproto.ConfigureRequestEvent) geom.Rect {
	r := cur
	if ev.ValueMask&xproto.ConfigWindowX != 0 {
		r.X = int(ev.X)
	}
	if ev.ValueMask&xproto.ConfigWindowY != 0 {
		r.Y = int(ev.Y)
	}
	if ev.ValueMask&xproto.ConfigWindowWidth != 0 && ev.Width > 0 {
		r.Width = int(ev.Width)
	}
	if ev.ValueMask&xproto.ConfigWindowHeight != 0 && ev.Height > 0 {
		r.Height = int(ev.Height)
	}
	return r
}

func (m *Manager) DamageNotify(ev damage.NotifyEvent) {
	m.comp.HandleDamage(xproto.Window(ev.Drawable), geom.FromXRect(ev.Area))
}

// SelectionClear ends the manager when another one takes the screen.
func (m *Manager) SelectionClear(ev xproto.SelectionClearEvent) {
	if !m.conn.IsManagerSelection(ev) {
		return
	}
	m.logger.Warn("window manager selection lost; shutting down")
	m.machine.Cancel()
	m.hotkeys.Abort()
	m.releasePointer()
	m.conn.Quit()
}

// NamespaceChanged redraws indicators for the new current namespace.
func (m *Manager) NamespaceChanged(*namespace.Namespace) {
	m.invalidateAll()
	m.resyncTheme()
}

// WindowAssigned redraws the decoration of a client that changed namespace.
func (m *Manager) WindowAssigned(win xproto.Window, _ *namespace.Namespace) {
	f, ok := m.frameOf(win)
	if !ok || win != f.Client().ID {
		return
	}
	m.applyBorder(f)
	m.refresh(f)
	m.metrics.SetNamespaces(len(m.ns.Namespaces()))
}
