package theme

import (
	"image/color"
	"testing"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/1broseidon/tessera/internal/config"
	"github.com/1broseidon/tessera/internal/geom"
)

func testRenderer(t *testing.T) *Flat {
	t.Helper()
	p, err := PaletteFromConfig(config.DefaultConfig().Theme)
	if err != nil {
		t.Fatalf("PaletteFromConfig error: %v", err)
	}
	return NewFlat(p)
}

func TestFlatRenderMatchesRequestedSize(t *testing.T) {
	r := testRenderer(t)
	img, err := r.Render(Request{Size: geom.Size{Width: 300, Height: 24}, Active: true})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 300 || b.Dy() != 24 {
		t.Fatalf("bounds = %v, want 300x24", b)
	}
}

func TestFlatRenderRejectsEmptySize(t *testing.T) {
	if _, err := testRenderer(t).Render(Request{}); err == nil {
		t.Fatal("expected error for empty size")
	}
}

func TestFlatRenderFixedSizeDrawsOnlyClose(t *testing.T) {
	r := testRenderer(t)
	buttons := ResolveButtons(config.DefaultConfig().Titlebar.Buttons, 300)
	req := Request{Size: geom.Size{Width: 300, Height: 24}, Active: true, Buttons: buttons}

	plain, _ := r.Render(Request{Size: req.Size, Active: true})
	req.FixedSize = true
	fixed, _ := r.Render(req)

	zoom := buttons[ButtonZoom]
	cx, cy := zoom.X+zoom.Width/2, zoom.Y+zoom.Height/2
	if fixed.At(cx, cy) != plain.At(cx, cy) {
		t.Fatal("fixed-size titlebar drew the zoom button")
	}
	cl := buttons[ButtonClose]
	if fixed.At(cl.X+cl.Width/2, cl.Y+cl.Height/2) == plain.At(cl.X+cl.Width/2, cl.Y+cl.Height/2) {
		t.Fatal("fixed-size titlebar did not draw the close button")
	}
}

func TestFlatRenderStripeIndicator(t *testing.T) {
	r := testRenderer(t)
	accent := color.RGBA{R: 255, A: 255}
	img, err := r.Render(Request{Size: geom.Size{Width: 100, Height: 24}, Active: true, Accent: accent, IndicatorStyle: IndicatorStripe})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	got, _ := colorful.MakeColor(img.At(50, 23))
	want, _ := colorful.MakeColor(accent)
	if got.DistanceLab(want) > 0.01 {
		t.Fatalf("stripe pixel = %v, want accent %v", got.Hex(), want.Hex())
	}
}

func TestResolveButtonsNegativeX(t *testing.T) {
	cfg := config.ButtonsConfig{
		Close: config.ButtonRect{X: -22, Y: 4, Width: 16, Height: 16},
		Zoom:  config.ButtonRect{X: 4, Y: 4, Width: 16, Height: 16},
	}
	got := ResolveButtons(cfg, 200)
	if got[ButtonClose] != geom.R(178, 4, 16, 16) {
		t.Fatalf("close = %v, want right-anchored", got[ButtonClose])
	}
	if _, ok := got[ButtonMiniaturize]; ok {
		t.Fatal("zero-sized button should be omitted")
	}
}

func TestContrastingColor(t *testing.T) {
	if c := ContrastingColor(colorful.Color{R: 1, G: 1, B: 1}); c != (colorful.Color{}) {
		t.Fatalf("contrast on white = %v, want black", c.Hex())
	}
	if c := ContrastingColor(colorful.Color{}); c != (colorful.Color{R: 1, G: 1, B: 1}) {
		t.Fatalf("contrast on black = %v, want white", c.Hex())
	}
}
