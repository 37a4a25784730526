// Package geom holds the point, size and rectangle value types shared by the
// window model, the interaction machine and the compositor.
package geom

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
)

// Point is a position in root-window coordinates unless noted otherwise.
type Point struct {
	X int
	Y int
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns the delta from q to p.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Size is a width/height pair in pixels.
type Size struct {
	Width  int
	Height int
}

// Empty reports whether the size covers no pixels.
func (s Size) Empty() bool { return s.Width <= 0 || s.Height <= 0 }

// Rect describes a rectangular region.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// R is shorthand for Rect{X: x, Y: y, Width: w, Height: h}.
func R(x, y, w, h int) Rect { return Rect{X: x, Y: y, Width: w, Height: h} }

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d%+d%+d", r.Width, r.Height, r.X, r.Y)
}

// Origin returns the top-left corner.
func (r Rect) Origin() Point { return Point{X: r.X, Y: r.Y} }

// Size returns the rectangle's dimensions.
func (r Rect) Size() Size { return Size{Width: r.Width, Height: r.Height} }

// Right is the exclusive right edge.
func (r Rect) Right() int { return r.X + r.Width }

// Bottom is the exclusive bottom edge.
func (r Rect) Bottom() int { return r.Y + r.Height }

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.Right() && p.Y >= r.Y && p.Y < r.Bottom()
}

// Translate returns r moved by d.
func (r Rect) Translate(d Point) Rect {
	r.X += d.X
	r.Y += d.Y
	return r
}

// Inset shrinks r by n on every side. A negative n grows it.
func (r Rect) Inset(n int) Rect {
	return Rect{X: r.X + n, Y: r.Y + n, Width: r.Width - 2*n, Height: r.Height - 2*n}
}

// Union returns the smallest rectangle containing both r and o. Empty
// rectangles are ignored.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	x0, y0 := min(r.X, o.X), min(r.Y, o.Y)
	x1, y1 := max(r.Right(), o.Right()), max(r.Bottom(), o.Bottom())
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Intersect returns the overlap of r and o, or the zero Rect.
func (r Rect) Intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.Right(), o.Right()), min(r.Bottom(), o.Bottom())
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Overlaps reports whether r and o share at least one pixel.
func (r Rect) Overlaps(o Rect) bool { return !r.Intersect(o).Empty() }

// XRect converts r to the wire rectangle, clamping to the protocol's ranges.
func (r Rect) XRect() xproto.Rectangle {
	return xproto.Rectangle{
		X:      clamp16(r.X),
		Y:      clamp16(r.Y),
		Width:  clampU16(r.Width),
		Height: clampU16(r.Height),
	}
}

// FromXRect converts a wire rectangle.
func FromXRect(x xproto.Rectangle) Rect {
	return Rect{X: int(x.X), Y: int(x.Y), Width: int(x.Width), Height: int(x.Height)}
}

func clamp16(v int) int16 {
	if v < -1<<15 {
		return -1 << 15
	}
	if v > 1<<15-1 {
		return 1<<15 - 1
	}
	return int16(v)
}

func clampU16(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 1<<16-1 {
		return 1<<16 - 1
	}
	return uint16(v)
}
