package wm

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/1broseidon/tessera/internal/decor"
	"github.com/1broseidon/tessera/internal/geom"
	"github.com/1broseidon/tessera/internal/model"
	"github.com/1broseidon/tessera/internal/theme"
	"github.com/1broseidon/tessera/internal/x11"
)

// indicatorBorder is the frame border width that marks a non-root namespace.
const indicatorBorder = 2

// ApplyGeometry pushes the frame rect and the derived titlebar and client
// rects to the server.
func (m *Manager) ApplyGeometry(f *model.Frame) error {
	if err := m.conn.Configure(f.ID, f.Rect); err != nil {
		return err
	}
	tbH := f.TitlebarHeight()
	if err := m.conn.Configure(f.Titlebar().ID, geom.R(0, 0, f.Rect.Width, tbH)); err != nil {
		return err
	}
	if err := m.conn.Configure(f.Client().ID, geom.R(0, tbH, f.Rect.Width, f.Rect.Height-tbH)); err != nil {
		return err
	}
	m.applyShape(f)
	m.comp.HandleConfigure(f.ID, f.Rect)
	return nil
}

// ClearTitlebar blanks the titlebar while it is being dragged.
func (m *Manager) ClearTitlebar(f *model.Frame) {
	m.painter.Clear(f.Titlebar())
}

// RenderTitlebar draws the titlebar of f at its current size and state.
func (m *Manager) RenderTitlebar(f *model.Frame) error {
	tb := f.Titlebar()
	size := tb.Rect.Size()
	if size.Empty() {
		return nil
	}
	client := f.Client()
	req := theme.Request{
		Size:           size,
		Title:          client.Title,
		Active:         tb.Active,
		FixedSize:      m.fixed[client.ID],
		DocumentEdited: client.Flags.Has(model.FlagDocumentEdited),
		Buttons:        m.machine.Buttons(size.Width),
	}
	settings := m.ns.Settings()
	if settings.VisualIndicators {
		if ns := m.ns.NamespaceForWindow(client.ID); !ns.Root {
			req.Accent = m.ns.ColorFor(ns)
			req.IndicatorStyle = theme.IndicatorStyle(settings.IndicatorStyle)
		}
	}
	img, err := m.renderer.Render(req)
	if err != nil {
		return fmt.Errorf("failed to render titlebar of %d: %w", f.ID, err)
	}
	return m.painter.Paint(tb, img)
}

// NotifyConfigure sends the client its final root geometry.
func (m *Manager) NotifyConfigure(f *model.Frame) {
	m.conn.SendConfigureNotify(f.Client().ID, f.ClientRect())
}

// SetMaximizedState writes both maximized atoms for the client of f.
func (m *Manager) SetMaximizedState(f *model.Frame, maximized bool) error {
	states := []string{x11.StateMaximizedHorz, x11.StateMaximizedVert}
	if maximized {
		return m.conn.UpdateNetState(f.Client().ID, states, nil)
	}
	return m.conn.UpdateNetState(f.Client().ID, nil, states)
}

// WorkArea is the monitor under f minus dock struts.
func (m *Manager) WorkArea(f *model.Frame) (geom.Rect, error) {
	return m.conn.WorkArea(f.Rect, m.dockList())
}

// SetResizeCursor swaps the grab cursor to match e.
func (m *Manager) SetResizeCursor(e decor.Edge) {
	if m.pointerOn {
		m.conn.ChangeCursor(m.conn.Cursor(x11.CursorForEdge(e)))
	}
}

// grabPointer holds the pointer for the session the machine just opened on f,
// and the keyboard so the cancel key ends it.
func (m *Manager) grabPointer(f *model.Frame) {
	if !m.pointerOn {
		cursor := m.conn.Cursor(x11.CursorForEdge(decor.Edge(f.Session.Edge)))
		if err := m.conn.GrabPointer(cursor); err != nil {
			m.logger.Debug("session continues on the implicit grab", "frame", f.ID, "error", err)
		} else {
			m.pointerOn = true
		}
	}
	if err := m.hotkeys.HoldCancel(m.cancelInteraction); err != nil {
		m.logger.Debug("cancel key unavailable for session", "frame", f.ID, "error", err)
	}
}

// cancelInteraction abandons the drag or resize in progress.
func (m *Manager) cancelInteraction() {
	m.machine.Cancel()
	m.releasePointer()
}

func (m *Manager) releasePointer() {
	if m.machine.State().Active() {
		return
	}
	m.hotkeys.ReleaseCancel()
	if !m.pointerOn {
		return
	}
	m.conn.UngrabPointer()
	m.pointerOn = false
}

// applyShape rounds the frame's bounding shape when the compositor is not
// doing it.
func (m *Manager) applyShape(f *model.Frame) {
	radius := m.cfg.Compositor.CornerRadius
	if m.comp.Active() || radius <= 0 {
		return
	}
	if err := m.conn.ShapeRounded(f.ID, f.Rect.Size(), radius); err != nil {
		m.logger.Debug("frame shape failed", "frame", f.ID, "error", err)
	}
}

// applyBorder marks frames of non-root namespaces with a colored border.
func (m *Manager) applyBorder(f *model.Frame) {
	width, pixel := 0, uint32(0)
	if m.ns.Settings().VisualIndicators {
		if ns := m.ns.NamespaceForWindow(f.Client().ID); !ns.Root {
			width = indicatorBorder
			pixel = borderPixel(m.ns.ColorFor(ns), m.argbVisual != 0)
		}
	}
	m.conn.SetBorder(f.ID, width, pixel)
}

// borderPixel packs c for a TrueColor visual, with an opaque alpha byte on
// 32-bit visuals.
func borderPixel(c colorful.Color, argb bool) uint32 {
	r, g, b := c.Clamped().RGB255()
	px := uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	if argb {
		px |= 0xff << 24
	}
	return px
}

// resyncTheme re-renders every titlebar whose pixmap went stale.
func (m *Manager) resyncTheme() {
	for _, f := range m.conn.Registry().Frames() {
		if f.Titlebar().PixmapValid() {
			continue
		}
		if err := m.RenderTitlebar(f); err != nil {
			m.logger.Debug("titlebar resync failed", "frame", f.ID, "error", err)
		}
	}
	m.metrics.SetNamespaces(len(m.ns.Namespaces()))
}

// invalidateAll forces every titlebar and border to be redrawn.
func (m *Manager) invalidateAll() {
	for _, f := range m.conn.Registry().Frames() {
		f.Titlebar().Invalidate()
		m.applyBorder(f)
	}
}

func (m *Manager) refresh(f *model.Frame) {
	f.Titlebar().Invalidate()
	if err := m.RenderTitlebar(f); err != nil {
		m.logger.Debug("titlebar render failed", "frame", f.ID, "error", err)
	}
}

// frameOf resolves any frame, titlebar or client id.
func (m *Manager) frameOf(id xproto.Window) (*model.Frame, bool) {
	return m.conn.Registry().FrameFor(id)
}
