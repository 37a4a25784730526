package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xcursor"

	"github.com/1broseidon/tessera/internal/decor"
)

// CursorForEdge maps a resize edge to a core cursor glyph. EdgeNone is the
// move cursor.
func CursorForEdge(e decor.Edge) uint16 {
	switch e {
	case decor.EdgeTop:
		return xcursor.TopSide
	case decor.EdgeBottom:
		return xcursor.BottomSide
	case decor.EdgeLeft:
		return xcursor.LeftSide
	case decor.EdgeRight:
		return xcursor.RightSide
	case decor.EdgeTopLeft:
		return xcursor.TopLeftCorner
	case decor.EdgeTopRight:
		return xcursor.TopRightCorner
	case decor.EdgeBottomLeft:
		return xcursor.BottomLeftCorner
	case decor.EdgeBottomRight:
		return xcursor.BottomRightCorner
	default:
		return xcursor.Fleur
	}
}

// Cursor returns the cached cursor for glyph, creating it on first use.
// Zero means the parent's cursor.
func (c *Connection) Cursor(glyph uint16) xproto.Cursor {
	if cur, ok := c.cursors[glyph]; ok {
		return cur
	}
	cur, err := xcursor.CreateCursor(c.XUtil, glyph)
	if err != nil {
		c.logger.Warn("failed to create cursor", "glyph", glyph, "error", err)
		return xproto.CursorNone
	}
	c.cursors[glyph] = cur
	return cur
}

// SetRootCursor sets the default arrow on the root window.
func (c *Connection) SetRootCursor() {
	cur := c.Cursor(xcursor.LeftPtr)
	if cur == xproto.CursorNone {
		return
	}
	xproto.ChangeWindowAttributes(c.XUtil.Conn(), c.Root, xproto.CwCursor, []uint32{uint32(cur)})
	c.MarkDirty()
}
