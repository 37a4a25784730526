package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/mousebind"
	"github.com/BurntSushi/xgbutil/xwindow"

	"github.com/1broseidon/tessera/internal/geom"
)

// ClientEventMask is selected on every managed client.
const ClientEventMask = xproto.EventMaskPropertyChange |
	xproto.EventMaskStructureNotify |
	xproto.EventMaskFocusChange

// FrameEventMask is selected on frames.
const FrameEventMask = xproto.EventMaskSubstructureRedirect |
	xproto.EventMaskSubstructureNotify |
	xproto.EventMaskButtonPress |
	xproto.EventMaskButtonRelease |
	xproto.EventMaskPointerMotion |
	xproto.EventMaskEnterWindow |
	xproto.EventMaskLeaveWindow |
	xproto.EventMaskExposure

// TitlebarEventMask is selected on titlebars.
const TitlebarEventMask = xproto.EventMaskButtonPress |
	xproto.EventMaskButtonRelease |
	xproto.EventMaskPointerMotion |
	xproto.EventMaskExposure

// Configure moves and resizes a window in its parent's coordinates.
func (c *Connection) Configure(id xproto.Window, r geom.Rect) error {
	xr := r.XRect()
	err := xproto.ConfigureWindowChecked(c.XUtil.Conn(), id,
		xproto.ConfigWindowX|xproto.ConfigWindowY|xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
		[]uint32{uint32(int32(xr.X)), uint32(int32(xr.Y)), uint32(max(xr.Width, 1)), uint32(max(xr.Height, 1))}).Check()
	if err != nil {
		return fmt.Errorf("failed to configure %d to %s: %w", id, r, err)
	}
	c.MarkDirty()
	return nil
}

// ConfigureRaw forwards a client's ConfigureRequest for an unmanaged window.
func (c *Connection) ConfigureRaw(ev xproto.ConfigureRequestEvent) {
	var values []uint32
	mask := ev.ValueMask
	if mask&xproto.ConfigWindowX != 0 {
		values = append(values, uint32(int32(ev.X)))
	}
	if mask&xproto.ConfigWindowY != 0 {
		values = append(values, uint32(int32(ev.Y)))
	}
	if mask&xproto.ConfigWindowWidth != 0 {
		values = append(values, uint32(ev.Width))
	}
	if mask&xproto.ConfigWindowHeight != 0 {
		values = append(values, uint32(ev.Height))
	}
	if mask&xproto.ConfigWindowBorderWidth != 0 {
		values = append(values, uint32(ev.BorderWidth))
	}
	if mask&xproto.ConfigWindowSibling != 0 {
		values = append(values, uint32(ev.Sibling))
	}
	if mask&xproto.ConfigWindowStackMode != 0 {
		values = append(values, uint32(ev.StackMode))
	}
	xproto.ConfigureWindow(c.XUtil.Conn(), ev.Window, mask, values)
	c.MarkDirty()
}

// Raise puts a window on top of its siblings.
func (c *Connection) Raise(id xproto.Window) {
	xwindow.New(c.XUtil, id).Stack(xproto.StackModeAbove)
	c.MarkDirty()
}

// Map maps a window.
func (c *Connection) Map(id xproto.Window) {
	xproto.MapWindow(c.XUtil.Conn(), id)
	c.MarkDirty()
}

// Unmap unmaps a window.
func (c *Connection) Unmap(id xproto.Window) {
	xproto.UnmapWindow(c.XUtil.Conn(), id)
	c.MarkDirty()
}

// Destroy destroys a manager-owned window.
func (c *Connection) Destroy(id xproto.Window) {
	xproto.DestroyWindow(c.XUtil.Conn(), id)
	c.MarkDirty()
}

// Reparent moves a client into parent at p and adds it to the save set so
// it survives a manager crash.
func (c *Connection) Reparent(id, parent xproto.Window, p geom.Point) error {
	conn := c.XUtil.Conn()
	if err := xproto.ChangeSaveSetChecked(conn, xproto.SetModeInsert, id).Check(); err != nil {
		return fmt.Errorf("failed to add %d to save set: %w", id, err)
	}
	xr := geom.Rect{X: p.X, Y: p.Y}.XRect()
	if err := xproto.ReparentWindowChecked(conn, id, parent, xr.X, xr.Y).Check(); err != nil {
		return fmt.Errorf("failed to reparent %d into %d: %w", id, parent, err)
	}
	c.MarkDirty()
	return nil
}

// ReleaseClient hands a client back to the root at p.
func (c *Connection) ReleaseClient(id xproto.Window, p geom.Point) {
	xr := geom.Rect{X: p.X, Y: p.Y}.XRect()
	conn := c.XUtil.Conn()
	xproto.ReparentWindow(conn, id, c.Root, xr.X, xr.Y)
	xproto.ChangeSaveSet(conn, xproto.SetModeDelete, id)
	c.MarkDirty()
}

// SelectInput sets the event mask of a window we do not own.
func (c *Connection) SelectInput(id xproto.Window, mask uint32) error {
	return xproto.ChangeWindowAttributesChecked(c.XUtil.Conn(), id, xproto.CwEventMask, []uint32{mask}).Check()
}

// SetBorderWidth clears the border of a client placed inside a frame.
func (c *Connection) SetBorderWidth(id xproto.Window, w int) {
	xproto.ConfigureWindow(c.XUtil.Conn(), id, xproto.ConfigWindowBorderWidth, []uint32{uint32(w)})
	c.MarkDirty()
}

// SetBorder sets the border width and color of a manager-owned window.
func (c *Connection) SetBorder(id xproto.Window, width int, pixel uint32) {
	conn := c.XUtil.Conn()
	xproto.ChangeWindowAttributes(conn, id, xproto.CwBorderPixel, []uint32{pixel})
	xproto.ConfigureWindow(conn, id, xproto.ConfigWindowBorderWidth, []uint32{uint32(max(width, 0))})
	c.MarkDirty()
}

// Focus gives a client the input focus.
func (c *Connection) Focus(id xproto.Window) {
	xproto.SetInputFocus(c.XUtil.Conn(), xproto.InputFocusPointerRoot, id, xproto.TimeCurrentTime)
	c.MarkDirty()
}

// GrabClientClick grabs the primary button on a client synchronously so a
// click on an inactive window can focus it before being replayed.
func (c *Connection) GrabClientClick(id xproto.Window) {
	xproto.GrabButton(c.XUtil.Conn(), false, id,
		uint16(xproto.EventMaskButtonPress),
		xproto.GrabModeSync, xproto.GrabModeAsync,
		xproto.WindowNone, xproto.CursorNone,
		xproto.ButtonIndex1, xproto.ModMaskAny)
}

// UngrabClientClick drops the focus grab of an active client.
func (c *Connection) UngrabClientClick(id xproto.Window) {
	xproto.UngrabButton(c.XUtil.Conn(), xproto.ButtonIndex1, id, xproto.ModMaskAny)
}

// ReplayPointer releases a frozen pointer, delivering the click to the
// client.
func (c *Connection) ReplayPointer() {
	xproto.AllowEvents(c.XUtil.Conn(), xproto.AllowReplayPointer, xproto.TimeCurrentTime)
	c.MarkDirty()
}

// ThawPointer releases a frozen pointer without replaying the click.
func (c *Connection) ThawPointer() {
	xproto.AllowEvents(c.XUtil.Conn(), xproto.AllowAsyncPointer, xproto.TimeCurrentTime)
	c.MarkDirty()
}

// GrabPointer holds the pointer for a drag or resize session.
func (c *Connection) GrabPointer(cursor xproto.Cursor) error {
	ok, err := mousebind.GrabPointer(c.XUtil, c.Root, xproto.WindowNone, cursor)
	if err != nil {
		return fmt.Errorf("failed to grab pointer: %w", err)
	}
	if !ok {
		return fmt.Errorf("pointer is grabbed by another client")
	}
	return nil
}

// UngrabPointer ends a session grab.
func (c *Connection) UngrabPointer() {
	mousebind.UngrabPointer(c.XUtil)
	c.MarkDirty()
}

// ChangeCursor swaps the cursor of an active pointer grab.
func (c *Connection) ChangeCursor(cursor xproto.Cursor) {
	xproto.ChangeActivePointerGrab(c.XUtil.Conn(), cursor, xproto.TimeCurrentTime,
		uint16(xproto.EventMaskButtonRelease|xproto.EventMaskPointerMotion))
	c.MarkDirty()
}

// Children lists the root's children bottom to top.
func (c *Connection) Children() ([]xproto.Window, error) {
	tree, err := xproto.QueryTree(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query tree: %w", err)
	}
	return tree.Children, nil
}

// Mapped reports whether id is viewable.
func (c *Connection) Mapped(id xproto.Window) bool {
	attrs, err := xproto.GetWindowAttributes(c.XUtil.Conn(), id).Reply()
	if err != nil {
		return false
	}
	return attrs.MapState == xproto.MapStateViewable
}
