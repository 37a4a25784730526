package decor

import (
	"github.com/1broseidon/tessera/internal/geom"
	"github.com/1broseidon/tessera/internal/theme"
)

// EdgeAt returns the resize zone of frame r that contains p, using a border
// of the given width. Points in the interior yield EdgeNone.
func EdgeAt(r geom.Rect, p geom.Point, border int) Edge {
	if border <= 0 || !r.Contains(p) {
		return EdgeNone
	}
	var e Edge
	if p.Y < r.Y+border {
		e |= EdgeTop
	} else if p.Y >= r.Bottom()-border {
		e |= EdgeBottom
	}
	if p.X < r.X+border {
		e |= EdgeLeft
	} else if p.X >= r.Right()-border {
		e |= EdgeRight
	}
	return e
}

// ResizeRect applies a pointer delta to start for the given edge. The edge
// opposite each moving edge stays fixed, including when the result is
// clamped to minSize.
func ResizeRect(start geom.Rect, edge Edge, delta geom.Point, minSize geom.Size) geom.Rect {
	r := start
	if edge&EdgeLeft != 0 {
		w := max(start.Width-delta.X, minSize.Width)
		r.X = start.Right() - w
		r.Width = w
	} else if edge&EdgeRight != 0 {
		r.Width = max(start.Width+delta.X, minSize.Width)
	}
	if edge&EdgeTop != 0 {
		h := max(start.Height-delta.Y, minSize.Height)
		r.Y = start.Bottom() - h
		r.Height = h
	} else if edge&EdgeBottom != 0 {
		r.Height = max(start.Height+delta.Y, minSize.Height)
	}
	return r
}

// ButtonAt maps a titlebar-local point to the button under it. Fixed-size
// windows only expose close.
func ButtonAt(buttons map[theme.Button]geom.Rect, p geom.Point, fixedSize bool) theme.Button {
	for _, b := range []theme.Button{theme.ButtonClose, theme.ButtonMiniaturize, theme.ButtonZoom} {
		r, ok := buttons[b]
		if !ok || !r.Contains(p) {
			continue
		}
		if fixedSize && b != theme.ButtonClose {
			return theme.ButtonNone
		}
		return b
	}
	return theme.ButtonNone
}
