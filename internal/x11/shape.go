package x11

import (
	"fmt"
	"math"

	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/tessera/internal/geom"
)

// RoundedRects approximates a rectangle of size s with rounded top and
// bottom corners as a list of scanline bands.
func RoundedRects(s geom.Size, radius int) []geom.Rect {
	if s.Empty() {
		return nil
	}
	radius = min(radius, s.Width/2, s.Height/2)
	if radius <= 0 {
		return []geom.Rect{geom.R(0, 0, s.Width, s.Height)}
	}

	r := float64(radius)
	var top []geom.Rect
	for y := 0; y < radius; y++ {
		dy := r - float64(y) - 0.5
		inset := int(math.Ceil(r - math.Sqrt(r*r-dy*dy)))
		if n := len(top); n > 0 && top[n-1].X == inset {
			top[n-1].Height++
			continue
		}
		top = append(top, geom.R(inset, y, s.Width-2*inset, 1))
	}

	out := make([]geom.Rect, 0, 2*len(top)+1)
	out = append(out, top...)
	if mid := s.Height - 2*radius; mid > 0 {
		out = append(out, geom.R(0, radius, s.Width, mid))
	}
	for i := len(top) - 1; i >= 0; i-- {
		b := top[i]
		b.Y = s.Height - b.Y - b.Height
		out = append(out, b)
	}
	return out
}

// ShapeRounded sets the bounding shape of win to a rounded rectangle. It is
// a no-op without the SHAPE extension.
func (c *Connection) ShapeRounded(win xproto.Window, s geom.Size, radius int) error {
	if !c.shapeReady() {
		return nil
	}
	bands := RoundedRects(s, radius)
	rects := make([]xproto.Rectangle, len(bands))
	for i, b := range bands {
		rects[i] = b.XRect()
	}
	err := shape.RectanglesChecked(c.XUtil.Conn(), shape.SoSet, shape.SkBounding,
		xproto.ClipOrderingYXBanded, win, 0, 0, rects).Check()
	if err != nil {
		return fmt.Errorf("failed to shape %d: %w", win, err)
	}
	c.MarkDirty()
	return nil
}

func (c *Connection) shapeReady() bool {
	if c.shapeState == 0 {
		c.shapeState = 2
		if err := shape.Init(c.XUtil.Conn()); err != nil {
			c.logger.Info("SHAPE extension unavailable", "error", err)
			c.shapeState = 1
		}
	}
	return c.shapeState == 2
}
