package model

import (
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/tessera/internal/geom"
)

// ChildRole names one of the fixed child windows a Frame owns.
type ChildRole string

const (
	RoleTitlebar ChildRole = "titlebar"
	RoleClient   ChildRole = "client"
)

// Titlebar is the decoration strip at the top of a frame.
type Titlebar struct {
	Window

	// Pixmap is the cached render target. It is only valid while
	// PixmapSize equals the titlebar's current size.
	Pixmap     xproto.Pixmap
	PixmapSize geom.Size
	Visual     xproto.Visualid
	Depth      byte
	Active     bool

	// renderedActive is the active state the current pixmap was drawn with.
	renderedActive bool
}

// PixmapValid reports whether the cached pixmap can be reused as is.
func (t *Titlebar) PixmapValid() bool {
	return t.Pixmap != 0 && t.PixmapSize == t.Rect.Size() && t.renderedActive == t.Active
}

// Rendered records that the pixmap now reflects the current size and state.
func (t *Titlebar) Rendered(p xproto.Pixmap) {
	t.Pixmap = p
	t.PixmapSize = t.Rect.Size()
	t.renderedActive = t.Active
}

// Invalidate drops the cached pixmap size so the next render regenerates it.
// The handle itself is kept so the renderer can free it.
func (t *Titlebar) Invalidate() { t.PixmapSize = geom.Size{} }

// Session is the transient state of an in-progress drag or resize.
type Session struct {
	StartPointer geom.Point
	StartRect    geom.Rect
	Edge         int
	// WasMaximized is the maximized flag when the session began.
	WasMaximized bool
}

// Frame is the manager-owned container that wraps one client and its titlebar.
type Frame struct {
	Window

	client   *Window
	titlebar *Titlebar
	tbHeight int

	Maximized   bool
	SavedRect   geom.Rect
	NeedDestroy bool
	Session     Session
}

// NewFrame builds a frame around client. The frame rect is derived from the
// client rect so that the client keeps its on-screen position below the
// titlebar.
func NewFrame(id xproto.Window, client *Window, titlebar *Titlebar, titlebarHeight int) *Frame {
	f := &Frame{
		Window:   Window{ID: id, Flags: FlagHelper},
		client:   client,
		titlebar: titlebar,
		tbHeight: titlebarHeight,
	}
	client.Parent = id
	titlebar.Parent = id
	titlebar.Flags |= FlagHelper
	c := client.Rect
	f.SetRect(geom.R(c.X, c.Y-titlebarHeight, c.Width, c.Height+titlebarHeight))
	return f
}

// Client returns the wrapped application window.
func (f *Frame) Client() *Window { return f.client }

// Titlebar returns the decoration child.
func (f *Frame) Titlebar() *Titlebar { return f.titlebar }

// TitlebarHeight is the height of the titlebar strip.
func (f *Frame) TitlebarHeight() int { return f.tbHeight }

// Child returns the window playing role, or nil for an unknown role.
func (f *Frame) Child(role ChildRole) *Window {
	switch role {
	case RoleTitlebar:
		return &f.titlebar.Window
	case RoleClient:
		return f.client
	default:
		return nil
	}
}

// SetRect moves and resizes the frame and lays out its children. Child rects
// are stored in root coordinates. The titlebar pixmap is invalidated when
// the width changes.
func (f *Frame) SetRect(r geom.Rect) {
	if r.Height < f.tbHeight {
		r.Height = f.tbHeight
	}
	f.Rect = r
	tb := geom.R(r.X, r.Y, r.Width, f.tbHeight)
	if tb.Size() != f.titlebar.Rect.Size() {
		f.titlebar.Invalidate()
	}
	f.titlebar.Rect = tb
	f.client.Rect = f.ClientRect()
}

// ClientRect is the client's on-screen rectangle: the frame minus the
// titlebar strip.
func (f *Frame) ClientRect() geom.Rect {
	return geom.R(f.Rect.X, f.Rect.Y+f.tbHeight, f.Rect.Width, f.Rect.Height-f.tbHeight)
}

// FrameRectFor returns the frame rect that places a client at c.
func (f *Frame) FrameRectFor(c geom.Rect) geom.Rect {
	return geom.R(c.X, c.Y-f.tbHeight, c.Width, c.Height+f.tbHeight)
}

// SetActive flips the titlebar's active state. It reports whether the state
// changed.
func (f *Frame) SetActive(active bool) bool {
	if f.titlebar.Active == active {
		return false
	}
	f.titlebar.Active = active
	return true
}
