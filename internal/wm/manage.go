package wm

import (
	"slices"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/icccm"

	"github.com/1broseidon/tessera/internal/compositor"
	"github.com/1broseidon/tessera/internal/geom"
	"github.com/1broseidon/tessera/internal/model"
	"github.com/1broseidon/tessera/internal/x11"
)

// releaseMode says what happens to a client when its frame goes away.
type releaseMode int

const (
	// releaseShutdown hands the client back to the root untouched.
	releaseShutdown releaseMode = iota
	// releaseWithdrawn is a client that unmapped itself.
	releaseWithdrawn
	// releaseDestroyed is a client that no longer exists.
	releaseDestroyed
)

// scan adopts the root's mapped children at startup.
func (m *Manager) scan() {
	children, err := m.conn.Children()
	if err != nil {
		m.logger.Warn("initial scan failed", "error", err)
		return
	}
	for _, id := range children {
		if m.ownWindow(id) || !m.conn.Mapped(id) {
			continue
		}
		w, ok := m.adopt(id)
		if !ok && w != nil {
			m.trackUnmanaged(w)
		}
	}
}

// ownWindow reports whether id is one of the manager's helper windows.
func (m *Manager) ownWindow(id xproto.Window) bool {
	if id == m.conn.SelectionWindow() || id == m.hotkeys.GrabWindow() || id == m.backend.Overlay() {
		return true
	}
	if w, ok := m.conn.WindowForID(id); ok {
		return w.Flags.Has(model.FlagHelper)
	}
	return false
}

// adopt reads id and frames it when the detection path says so. It returns
// the window it read, if any, and whether it is now managed.
func (m *Manager) adopt(id xproto.Window) (*model.Window, bool) {
	if _, ok := m.conn.Registry().FrameFor(id); ok {
		return nil, true
	}
	w, err := m.conn.ReadClient(id)
	if err != nil {
		m.logger.Debug("window vanished before it could be read", "window", id, "error", err)
		return nil, false
	}
	if w.Type == model.TypeDock {
		m.docks[id] = struct{}{}
		m.updateWorkArea()
	}
	if !model.ShouldManage(w, m.detection) {
		return w, false
	}
	return w, m.manage(w)
}

// manage wraps w in a frame and titlebar. On any failure the client is left
// mapped without decoration.
func (m *Manager) manage(w *model.Window) bool {
	tbH := m.cfg.Titlebar.Height
	if w.Rect.Y < tbH {
		w.Rect.Y = tbH
	}
	frameRect := geom.R(w.Rect.X, w.Rect.Y-tbH, w.Rect.Width, w.Rect.Height+tbH)

	fopts := x11.CreateOptions{EventMask: x11.FrameEventMask}
	var depth byte
	var visual xproto.Visualid
	if m.argbVisual != 0 {
		depth, visual = 32, m.argbVisual
		fopts.Colormap = m.colormap
	}
	fw, err := m.conn.CreateWindow(m.conn.Root, frameRect, depth, visual, fopts)
	if err != nil {
		m.logger.Warn("failed to create frame", "client", w.ID, "error", err)
		m.conn.Map(w.ID)
		return false
	}

	// The frame acts for the current namespace while the client is moved
	// into it.
	if err := m.ns.AssignWindow(fw.ID, m.ns.Current().ID); err != nil {
		m.logger.Debug("frame namespace assignment failed", "frame", fw.ID, "error", err)
	}
	blocked := m.ns.ShouldBlockReparenting(w.ID, fw.ID)
	m.ns.UnassignWindow(fw.ID)
	if blocked {
		m.logger.Warn("reparent blocked by namespace policy; window left undecorated",
			"client", w.ID, "namespace", m.ns.NamespaceForClient(w.ID).ID)
		m.conn.Destroy(fw.ID)
		m.conn.Map(w.ID)
		return false
	}

	scr := m.conn.XUtil.Screen()
	topts := x11.CreateOptions{EventMask: x11.TitlebarEventMask}
	tdepth, tvisual := scr.RootDepth, scr.RootVisual
	if m.argbVisual != 0 {
		topts.Colormap = scr.DefaultColormap
	}
	tw, err := m.conn.CreateWindow(fw.ID, geom.R(0, 0, frameRect.Width, tbH), tdepth, tvisual, topts)
	if err != nil {
		m.logger.Warn("failed to create titlebar", "client", w.ID, "error", err)
		m.conn.Destroy(fw.ID)
		m.conn.Map(w.ID)
		return false
	}
	tb := &model.Titlebar{Window: *tw, Depth: tdepth, Visual: tvisual}

	m.conn.SetBorderWidth(w.ID, 0)
	if err := m.conn.SelectInput(w.ID, x11.ClientEventMask); err != nil {
		m.logger.Debug("failed to select client events", "client", w.ID, "error", err)
	}
	if err := m.conn.Reparent(w.ID, fw.ID, geom.Point{Y: tbH}); err != nil {
		m.logger.Warn("failed to reparent client", "client", w.ID, "error", err)
		m.conn.Destroy(fw.ID)
		m.conn.Map(w.ID)
		return false
	}

	f := model.NewFrame(fw.ID, w, tb, tbH)
	m.conn.Registry().AddFrame(f)
	m.fixed[w.ID] = w.FixedSize()

	if err := m.conn.Configure(w.ID, geom.R(0, tbH, w.Rect.Width, w.Rect.Height)); err != nil {
		m.logger.Debug("initial client configure failed", "client", w.ID, "error", err)
	}
	m.applyShape(f)
	m.applyBorder(f)
	m.conn.Map(tb.ID)
	m.conn.Map(w.ID)
	m.conn.Map(f.ID)

	if err := m.conn.SetWMState(w.ID, icccm.StateNormal); err != nil {
		m.logger.Debug("failed to set WM_STATE", "client", w.ID, "error", err)
	}
	if err := m.conn.SetFrameExtents(w.ID, tbH); err != nil {
		m.logger.Debug("failed to set _NET_FRAME_EXTENTS", "client", w.ID, "error", err)
	}
	m.conn.PlaceOnDesktop(w.ID)
	m.conn.GrabClientClick(w.ID)

	if model.ShowInSwitcher(w) {
		m.switcher.Add(f.ID)
	}
	if m.comp.Active() {
		if err := m.comp.Track(f.ID, f.Rect, compositor.Effects{Shadow: true, Rounded: true}); err != nil {
			m.logger.Debug("frame not composited", "frame", f.ID, "error", err)
		}
	}
	m.clients = append(m.clients, w.ID)
	m.publishClients()
	m.metrics.SetManaged(len(m.clients))

	if err := m.RenderTitlebar(f); err != nil {
		m.logger.Warn("titlebar render failed", "frame", f.ID, "error", err)
	}
	m.Focus(f, false)
	m.logger.Debug("window managed",
		"client", w.ID,
		"frame", f.ID,
		"title", w.Title,
		"type", w.Type.String(),
		"rect", f.Rect.String())
	return true
}

// unmanage tears a frame down and forgets every reference to it.
func (m *Manager) unmanage(f *model.Frame, mode releaseMode) {
	client := f.Client()
	if st := m.machine.State(); st.Frame == f.ID && m.pointerOn {
		m.conn.UngrabPointer()
		m.pointerOn = false
	}
	m.machine.Forget(f.ID)
	m.switcher.Remove(f.ID)
	m.comp.Untrack(f.ID)
	m.painter.Forget(f.Titlebar().ID)
	m.ns.UnassignWindow(client.ID)

	if mode != releaseDestroyed {
		m.conn.UngrabClientClick(client.ID)
		if err := m.conn.SelectInput(client.ID, 0); err != nil {
			m.logger.Debug("failed to clear client events", "client", client.ID, "error", err)
		}
		m.conn.ReleaseClient(client.ID, f.ClientRect().Origin())
		if mode == releaseWithdrawn {
			if err := m.conn.SetWMState(client.ID, icccm.StateWithdrawn); err != nil {
				m.logger.Debug("failed to set WM_STATE", "client", client.ID, "error", err)
			}
		}
	}
	m.conn.Destroy(f.ID)
	m.conn.Registry().Remove(f.ID)

	delete(m.fixed, client.ID)
	delete(m.iconified, f.ID)
	m.clients = slices.DeleteFunc(m.clients, func(id xproto.Window) bool { return id == client.ID })
	m.metrics.SetManaged(len(m.clients))
	m.logger.Debug("window unmanaged", "client", client.ID, "frame", f.ID, "mode", int(mode))

	if m.stopped {
		return
	}
	if m.focused == f.ID {
		m.focused = 0
		m.focusFallback()
	}
	m.publishClients()
}

// trackUnmanaged composites a mapped top-level the manager does not frame.
func (m *Manager) trackUnmanaged(w *model.Window) {
	if m.ownWindow(w.ID) {
		return
	}
	m.unmanaged[w.ID] = struct{}{}
	if !m.comp.Active() {
		return
	}
	if err := m.comp.Track(w.ID, w.Rect, compositor.Effects{}); err != nil {
		m.logger.Debug("unmanaged window not composited", "window", w.ID, "error", err)
		return
	}
	m.comp.SetMapped(w.ID, true)
}

func (m *Manager) untrackUnmanaged(id xproto.Window) {
	if _, ok := m.unmanaged[id]; !ok {
		return
	}
	delete(m.unmanaged, id)
	m.comp.Untrack(id)
}

// Miniaturize hides f until the client asks to be mapped again or is
// activated.
func (m *Manager) Miniaturize(f *model.Frame) {
	if m.iconified[f.ID] {
		return
	}
	client := f.Client().ID
	m.iconified[f.ID] = true
	m.conn.Unmap(f.ID)
	m.comp.SetMapped(f.ID, false)
	if err := m.conn.SetWMState(client, icccm.StateIconic); err != nil {
		m.logger.Debug("failed to set WM_STATE", "client", client, "error", err)
	}
	if err := m.conn.UpdateNetState(client, []string{x11.StateHidden}, nil); err != nil {
		m.logger.Debug("failed to set hidden state", "client", client, "error", err)
	}
	if m.focused == f.ID {
		m.focused = 0
		if f.SetActive(false) {
			f.Titlebar().Invalidate()
		}
		m.focusFallback()
	}
	m.logger.Debug("window miniaturized", "frame", f.ID)
}

// unhide maps a miniaturized frame again. Callers focus it.
func (m *Manager) unhide(f *model.Frame) {
	if !m.iconified[f.ID] {
		return
	}
	client := f.Client().ID
	delete(m.iconified, f.ID)
	m.conn.Map(f.ID)
	m.comp.SetMapped(f.ID, true)
	if err := m.conn.SetWMState(client, icccm.StateNormal); err != nil {
		m.logger.Debug("failed to set WM_STATE", "client", client, "error", err)
	}
	if err := m.conn.UpdateNetState(client, nil, []string{x11.StateHidden}); err != nil {
		m.logger.Debug("failed to clear hidden state", "client", client, "error", err)
	}
}

// Close asks the client of f to close.
func (m *Manager) Close(f *model.Frame) {
	if err := m.conn.CloseClient(f.Client().ID); err != nil {
		m.logger.Warn("failed to close window", "client", f.Client().ID, "error", err)
	}
	m.conn.MarkDirty()
}

// publishClients keeps _NET_CLIENT_LIST and its stacking variant current.
func (m *Manager) publishClients() {
	frames := m.conn.Registry().Frames()
	stacking := make([]xproto.Window, 0, len(frames))
	for _, f := range frames {
		stacking = append(stacking, f.Client().ID)
	}
	m.conn.SetClientList(m.clients, stacking)
	m.conn.MarkDirty()
}

func (m *Manager) dockList() []xproto.Window {
	docks := make([]xproto.Window, 0, len(m.docks))
	for id := range m.docks {
		docks = append(docks, id)
	}
	slices.Sort(docks)
	return docks
}

// updateWorkArea recomputes and publishes the area left free by docks.
func (m *Manager) updateWorkArea() {
	scr := m.conn.XUtil.Screen()
	root := geom.R(0, 0, int(scr.WidthInPixels), int(scr.HeightInPixels))
	area, err := m.conn.WorkArea(root, m.dockList())
	if err != nil {
		m.logger.Debug("work area unavailable", "error", err)
		return
	}
	if area == m.workArea {
		return
	}
	m.workArea = area
	m.conn.PublishWorkArea(area)
	m.logger.Debug("work area updated", "rect", area.String())
}
