// Package theme defines the decoration rendering contract and a small flat
// renderer used when no external theme engine is configured.
package theme

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/1broseidon/tessera/internal/config"
	"github.com/1broseidon/tessera/internal/geom"
)

// Button identifies a titlebar button.
type Button int

const (
	ButtonNone Button = iota
	ButtonClose
	ButtonMiniaturize
	ButtonZoom
)

func (b Button) String() string {
	switch b {
	case ButtonClose:
		return "close"
	case ButtonMiniaturize:
		return "miniaturize"
	case ButtonZoom:
		return "zoom"
	default:
		return "none"
	}
}

// IndicatorStyle selects how a namespace accent is drawn.
type IndicatorStyle string

const (
	IndicatorBorder  IndicatorStyle = "border"
	IndicatorBadge   IndicatorStyle = "badge"
	IndicatorStripe  IndicatorStyle = "stripe"
	IndicatorOverlay IndicatorStyle = "overlay"
)

// Request describes one titlebar render.
type Request struct {
	Size           geom.Size
	Title          string
	Active         bool
	FixedSize      bool
	DocumentEdited bool
	// Buttons holds the titlebar-local rects already resolved for Size.
	Buttons map[Button]geom.Rect
	// Accent is the namespace color, nil when indicators are off.
	Accent         color.Color
	IndicatorStyle IndicatorStyle
}

// Renderer produces a decoration image for a titlebar. It is re-invoked on
// every active-state change and every resize.
type Renderer interface {
	Render(req Request) (image.Image, error)
}

// Palette holds the flat theme's colors.
type Palette struct {
	Active      colorful.Color
	Inactive    colorful.Color
	TitleText   colorful.Color
	Close       colorful.Color
	Miniaturize colorful.Color
	Zoom        colorful.Color
}

// PaletteFromConfig parses the theme colors.
func PaletteFromConfig(cfg config.ThemeConfig) (Palette, error) {
	var p Palette
	for _, c := range []struct {
		hex string
		dst *colorful.Color
	}{
		{cfg.Active, &p.Active},
		{cfg.Inactive, &p.Inactive},
		{cfg.TitleText, &p.TitleText},
		{cfg.Close, &p.Close},
		{cfg.Miniaturize, &p.Miniaturize},
		{cfg.Zoom, &p.Zoom},
	} {
		col, err := colorful.Hex(c.hex)
		if err != nil {
			return Palette{}, fmt.Errorf("failed to parse theme color %q: %w", c.hex, err)
		}
		*c.dst = col
	}
	return p, nil
}

// Flat draws a solid titlebar with round buttons and an optional namespace
// accent.
type Flat struct {
	Palette Palette
}

// NewFlat returns a flat renderer using p.
func NewFlat(p Palette) *Flat { return &Flat{Palette: p} }

func (f *Flat) Render(req Request) (image.Image, error) {
	if req.Size.Empty() {
		return nil, fmt.Errorf("cannot render titlebar of size %dx%d", req.Size.Width, req.Size.Height)
	}
	img := image.NewRGBA(image.Rect(0, 0, req.Size.Width, req.Size.Height))

	bg := f.Palette.Inactive
	if req.Active {
		bg = f.Palette.Active
	}
	top := bg.BlendLab(colorful.Color{R: 1, G: 1, B: 1}, 0.25)
	for y := 0; y < req.Size.Height; y++ {
		t := float64(y) / float64(max(req.Size.Height-1, 1))
		row := top.BlendLab(bg, t).Clamped()
		draw.Draw(img, image.Rect(0, y, req.Size.Width, y+1), image.NewUniform(row), image.Point{}, draw.Src)
	}

	for _, b := range []Button{ButtonClose, ButtonMiniaturize, ButtonZoom} {
		r, ok := req.Buttons[b]
		if !ok || r.Empty() {
			continue
		}
		if req.FixedSize && b != ButtonClose {
			continue
		}
		c := f.buttonColor(b)
		if !req.Active {
			c = InactiveColor(c)
		}
		fillCircle(img, r, c)
		if b == ButtonClose && req.DocumentEdited {
			fillCircle(img, r.Inset(r.Width/3), ContrastingColor(c))
		}
	}

	if req.Accent != nil {
		drawIndicator(img, req.Accent, req.IndicatorStyle, req.Active)
	}
	return img, nil
}

func (f *Flat) buttonColor(b Button) colorful.Color {
	switch b {
	case ButtonClose:
		return f.Palette.Close
	case ButtonMiniaturize:
		return f.Palette.Miniaturize
	default:
		return f.Palette.Zoom
	}
}

func drawIndicator(img *image.RGBA, accent color.Color, style IndicatorStyle, active bool) {
	c, _ := colorful.MakeColor(accent)
	if !active {
		c = InactiveColor(c)
	}
	b := img.Bounds()
	switch style {
	case IndicatorBorder:
		for _, r := range []image.Rectangle{
			image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+2),
			image.Rect(b.Min.X, b.Min.Y, b.Min.X+2, b.Max.Y),
			image.Rect(b.Max.X-2, b.Min.Y, b.Max.X, b.Max.Y),
		} {
			draw.Draw(img, r, image.NewUniform(c.Clamped()), image.Point{}, draw.Src)
		}
	case IndicatorBadge:
		size := b.Dy() / 2
		r := geom.R(b.Max.X-size-6, (b.Dy()-size)/2, size, size)
		fillCircle(img, r, c)
	case IndicatorOverlay:
		draw.Draw(img, b, image.NewUniform(color.NRGBA{R: uint8(c.R * 255), G: uint8(c.G * 255), B: uint8(c.B * 255), A: 48}), image.Point{}, draw.Over)
	default:
		draw.Draw(img, image.Rect(b.Min.X, b.Max.Y-3, b.Max.X, b.Max.Y), image.NewUniform(c.Clamped()), image.Point{}, draw.Src)
	}
}

func fillCircle(img *image.RGBA, r geom.Rect, c colorful.Color) {
	cx := float64(r.X) + float64(r.Width)/2
	cy := float64(r.Y) + float64(r.Height)/2
	rad := float64(min(r.Width, r.Height)) / 2
	col := c.Clamped()
	for y := r.Y; y < r.Bottom(); y++ {
		for x := r.X; x < r.Right(); x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			if dx*dx+dy*dy <= rad*rad {
				img.Set(x, y, col)
			}
		}
	}
}

// InactiveColor washes c toward gray for unfocused decorations.
func InactiveColor(c colorful.Color) colorful.Color {
	return c.BlendLab(colorful.Color{R: 0.7, G: 0.7, B: 0.7}, 0.6).Clamped()
}

// ContrastingColor returns black or white, whichever reads better on c.
func ContrastingColor(c colorful.Color) colorful.Color {
	l, _, _ := c.Lab()
	if l > 0.6 {
		return colorful.Color{}
	}
	return colorful.Color{R: 1, G: 1, B: 1}
}

// ResolveButtons maps configured button rects to titlebar-local rects for a
// titlebar of the given width. Negative X values count from the right edge.
func ResolveButtons(cfg config.ButtonsConfig, width int) map[Button]geom.Rect {
	out := make(map[Button]geom.Rect, 3)
	for b, r := range map[Button]config.ButtonRect{
		ButtonClose:       cfg.Close,
		ButtonMiniaturize: cfg.Miniaturize,
		ButtonZoom:        cfg.Zoom,
	} {
		if r.Width == 0 || r.Height == 0 {
			continue
		}
		x := r.X
		if x < 0 {
			x = width + x
		}
		out[b] = geom.R(x, r.Y, r.Width, r.Height)
	}
	return out
}
