// Package model is the in-memory representation of every window the manager
// knows about: client windows, the frames wrapping them, and their titlebars.
// All of it is mutated from the event loop only.
package model

import (
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/tessera/internal/geom"
)

// Flags are per-window style bits used for filtering and decoration.
type Flags uint32

const (
	FlagSkipTaskbar Flags = 1 << iota
	FlagSkipPager
	FlagDocumentEdited
	FlagFixedSize
	FlagOverrideRedirect
	FlagHelper // created by the manager itself (frame or titlebar)
)

// Has reports whether all bits in f2 are set.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// WindowType is the coarse classification used by the wrapper detection path.
type WindowType int

const (
	TypeNormal WindowType = iota
	TypeDesktop
	TypeDock
	TypePanel
	TypeDialog
)

func (t WindowType) String() string {
	switch t {
	case TypeNormal:
		return "normal"
	case TypeDesktop:
		return "desktop"
	case TypeDock:
		return "dock"
	case TypePanel:
		return "panel"
	case TypeDialog:
		return "dialog"
	default:
		return "unknown"
	}
}

// Window is a protocol-level window and the attributes the manager tracks for it.
type Window struct {
	ID     xproto.Window
	Title  string
	Rect   geom.Rect
	Parent xproto.Window // identity only; resolve through the Registry
	Flags  Flags
	Type   WindowType

	// Attrs is nil unless the client published GNUstep window attributes.
	Attrs *GNUstepAttributes
}

// NewWindow returns a Window with the given id and geometry.
func NewWindow(id xproto.Window, r geom.Rect) *Window {
	return &Window{ID: id, Rect: r}
}

// FixedSize reports whether the window refuses to be resized.
func (w *Window) FixedSize() bool { return w.Flags.Has(FlagFixedSize) }

// SetFlag sets or clears a flag.
func (w *Window) SetFlag(f Flags, on bool) {
	if on {
		w.Flags |= f
	} else {
		w.Flags &^= f
	}
}
