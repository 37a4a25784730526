package x11

import (
	"fmt"
	"slices"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"

	"github.com/1broseidon/tessera/internal/geom"
	"github.com/1broseidon/tessera/internal/model"
)

const (
	StateMaximizedHorz = "_NET_WM_STATE_MAXIMIZED_HORZ"
	StateMaximizedVert = "_NET_WM_STATE_MAXIMIZED_VERT"
	StateHidden        = "_NET_WM_STATE_HIDDEN"
	StateSkipTaskbar   = "_NET_WM_STATE_SKIP_TASKBAR"
	StateSkipPager     = "_NET_WM_STATE_SKIP_PAGER"
)

// Window type atoms.
const (
	TypeAtomNormal       = "_NET_WM_WINDOW_TYPE_NORMAL"
	TypeAtomDialog       = "_NET_WM_WINDOW_TYPE_DIALOG"
	TypeAtomDesktop      = "_NET_WM_WINDOW_TYPE_DESKTOP"
	TypeAtomDock         = "_NET_WM_WINDOW_TYPE_DOCK"
	TypeAtomToolbar      = "_NET_WM_WINDOW_TYPE_TOOLBAR"
	TypeAtomMenu         = "_NET_WM_WINDOW_TYPE_MENU"
	TypeAtomUtility      = "_NET_WM_WINDOW_TYPE_UTILITY"
	TypeAtomSplash       = "_NET_WM_WINDOW_TYPE_SPLASH"
	TypeAtomNotification = "_NET_WM_WINDOW_TYPE_NOTIFICATION"
)

const gnustepAttrProp = "_GNUSTEP_WM_ATTR"

var supportedAtoms = []string{
	"_NET_SUPPORTED",
	"_NET_SUPPORTING_WM_CHECK",
	"_NET_WM_NAME",
	"_NET_CLIENT_LIST",
	"_NET_CLIENT_LIST_STACKING",
	"_NET_ACTIVE_WINDOW",
	"_NET_CLOSE_WINDOW",
	"_NET_FRAME_EXTENTS",
	"_NET_WORKAREA",
	"_NET_NUMBER_OF_DESKTOPS",
	"_NET_CURRENT_DESKTOP",
	"_NET_DESKTOP_NAMES",
	"_NET_WM_DESKTOP",
	"_NET_WM_STATE",
	StateMaximizedHorz,
	StateMaximizedVert,
	StateHidden,
	StateSkipTaskbar,
	StateSkipPager,
	"_NET_WM_WINDOW_TYPE",
	TypeAtomNormal,
	TypeAtomDialog,
	TypeAtomDesktop,
	TypeAtomDock,
}

// ClassifyType maps _NET_WM_WINDOW_TYPE values to a model type. The first
// recognised value wins; no value means a normal window.
func ClassifyType(types []string) model.WindowType {
	for _, t := range types {
		switch t {
		case TypeAtomNormal:
			return model.TypeNormal
		case TypeAtomDialog:
			return model.TypeDialog
		case TypeAtomDesktop:
			return model.TypeDesktop
		case TypeAtomDock:
			return model.TypeDock
		case TypeAtomToolbar, TypeAtomMenu, TypeAtomUtility, TypeAtomSplash, TypeAtomNotification:
			return model.TypePanel
		}
	}
	return model.TypeNormal
}

// StateFlags maps _NET_WM_STATE values to model flags.
func StateFlags(states []string) model.Flags {
	var f model.Flags
	for _, s := range states {
		switch s {
		case StateSkipTaskbar:
			f |= model.FlagSkipTaskbar
		case StateSkipPager:
			f |= model.FlagSkipPager
		}
	}
	return f
}

// FixedFromHints reports whether the normal hints pin the size.
func FixedFromHints(h *icccm.NormalHints) bool {
	if h == nil {
		return false
	}
	both := uint(icccm.SizeHintPMinSize | icccm.SizeHintPMaxSize)
	if h.Flags&both != both {
		return false
	}
	return h.MinWidth > 0 && h.MinWidth == h.MaxWidth && h.MinHeight > 0 && h.MinHeight == h.MaxHeight
}

// ReadClient builds a model window from the server's view of id.
func (c *Connection) ReadClient(id xproto.Window) (*model.Window, error) {
	xu := c.XUtil
	g, err := xproto.GetGeometry(xu.Conn(), xproto.Drawable(id)).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get geometry of %d: %w", id, err)
	}
	attrs, err := xproto.GetWindowAttributes(xu.Conn(), id).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get attributes of %d: %w", id, err)
	}

	w := model.NewWindow(id, geom.R(int(g.X), int(g.Y), int(g.Width), int(g.Height)))
	w.Title = c.Title(id)
	w.SetFlag(model.FlagOverrideRedirect, attrs.OverrideRedirect)
	if types, err := ewmh.WmWindowTypeGet(xu, id); err == nil {
		w.Type = ClassifyType(types)
	}
	if states, err := ewmh.WmStateGet(xu, id); err == nil {
		w.Flags |= StateFlags(states)
	}
	if hints, err := icccm.WmNormalHintsGet(xu, id); err == nil && FixedFromHints(hints) {
		w.SetFlag(model.FlagFixedSize, true)
	}
	if vals, err := xprop.PropValNums(xprop.GetProperty(xu, id, gnustepAttrProp)); err == nil {
		if a, ok := model.ParseGNUstepAttributes(vals); ok {
			model.ApplyAttributes(w, a)
		}
	}
	return w, nil
}

// Title returns _NET_WM_NAME, falling back to WM_NAME.
func (c *Connection) Title(id xproto.Window) string {
	if name, err := ewmh.WmNameGet(c.XUtil, id); err == nil && name != "" {
		return name
	}
	if name, err := icccm.WmNameGet(c.XUtil, id); err == nil {
		return name
	}
	return ""
}

// AtomName returns the cached name of a.
func (c *Connection) AtomName(a xproto.Atom) string {
	name, err := xprop.AtomName(c.XUtil, a)
	if err != nil {
		return ""
	}
	return name
}

// Atom interns name.
func (c *Connection) Atom(name string) (xproto.Atom, error) {
	return xprop.Atm(c.XUtil, name)
}

// SetClientList publishes the managed clients, oldest first, and their
// stacking order.
func (c *Connection) SetClientList(clients, stacking []xproto.Window) {
	if err := ewmh.ClientListSet(c.XUtil, clients); err != nil {
		c.logger.Warn("failed to set _NET_CLIENT_LIST", "error", err)
	}
	if err := ewmh.ClientListStackingSet(c.XUtil, stacking); err != nil {
		c.logger.Warn("failed to set _NET_CLIENT_LIST_STACKING", "error", err)
	}
}

// SetActiveWindow publishes the focused client.
func (c *Connection) SetActiveWindow(id xproto.Window) {
	if err := ewmh.ActiveWindowSet(c.XUtil, id); err != nil {
		c.logger.Warn("failed to set _NET_ACTIVE_WINDOW", "error", err)
	}
}

// SetWMState writes the ICCCM WM_STATE of a client.
func (c *Connection) SetWMState(id xproto.Window, state uint) error {
	return icccm.WmStateSet(c.XUtil, id, &icccm.WmState{State: state})
}

// SetFrameExtents tells the client how much decoration surrounds it.
func (c *Connection) SetFrameExtents(id xproto.Window, top int) error {
	return ewmh.FrameExtentsSet(c.XUtil, id, &ewmh.FrameExtents{Top: top})
}

// UpdateNetState adds and removes _NET_WM_STATE values of a client.
func (c *Connection) UpdateNetState(id xproto.Window, add, remove []string) error {
	states, err := ewmh.WmStateGet(c.XUtil, id)
	if err != nil {
		states = nil
	}
	out := states[:0:0]
	for _, s := range states {
		if !slices.Contains(remove, s) && !slices.Contains(add, s) {
			out = append(out, s)
		}
	}
	out = append(out, add...)
	return ewmh.WmStateSet(c.XUtil, id, out)
}

// SupportsDelete reports whether the client takes WM_DELETE_WINDOW.
func (c *Connection) SupportsDelete(id xproto.Window) bool {
	protocols, err := icccm.WmProtocolsGet(c.XUtil, id)
	if err != nil {
		return false
	}
	return slices.Contains(protocols, "WM_DELETE_WINDOW")
}

// CloseClient asks the client to close, killing it when it does not speak
// WM_DELETE_WINDOW.
func (c *Connection) CloseClient(id xproto.Window) error {
	if !c.SupportsDelete(id) {
		return xproto.KillClientChecked(c.XUtil.Conn(), uint32(id)).Check()
	}
	protocols, err := xprop.Atm(c.XUtil, "WM_PROTOCOLS")
	if err != nil {
		return fmt.Errorf("failed to intern WM_PROTOCOLS: %w", err)
	}
	del, err := xprop.Atm(c.XUtil, "WM_DELETE_WINDOW")
	if err != nil {
		return fmt.Errorf("failed to intern WM_DELETE_WINDOW: %w", err)
	}
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: id,
		Type:   protocols,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{uint32(del), uint32(xproto.TimeCurrentTime), 0, 0, 0}),
	}
	return xproto.SendEventChecked(c.XUtil.Conn(), false, id, xproto.EventMaskNoEvent, string(ev.Bytes())).Check()
}

// SendConfigureNotify sends the synthetic ConfigureNotify ICCCM requires
// after the manager moves a client without resizing it.
func (c *Connection) SendConfigureNotify(id xproto.Window, r geom.Rect) {
	xr := r.XRect()
	ev := xproto.ConfigureNotifyEvent{
		Event:  id,
		Window: id,
		X:      xr.X,
		Y:      xr.Y,
		Width:  xr.Width,
		Height: xr.Height,
	}
	xproto.SendEvent(c.XUtil.Conn(), false, id, xproto.EventMaskStructureNotify, string(ev.Bytes()))
	c.MarkDirty()
}
