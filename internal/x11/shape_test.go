package x11

import (
	"reflect"
	"testing"

	"github.com/1broseidon/tessera/internal/geom"
)

func TestRoundedRectsSquare(t *testing.T) {
	s := geom.Size{Width: 40, Height: 30}
	for _, radius := range []int{0, -3} {
		got := RoundedRects(s, radius)
		if want := []geom.Rect{geom.R(0, 0, 40, 30)}; !reflect.DeepEqual(got, want) {
			t.Fatalf("RoundedRects(radius=%d) = %v, want %v", radius, got, want)
		}
	}
	if got := RoundedRects(geom.Size{}, 4); got != nil {
		t.Fatalf("RoundedRects(empty) = %v, want nil", got)
	}
}

func TestRoundedRectsBands(t *testing.T) {
	s := geom.Size{Width: 100, Height: 60}
	bands := RoundedRects(s, 8)

	height, prevBottom := 0, 0
	for i, b := range bands {
		if b.Y != prevBottom {
			t.Fatalf("band %d starts at %d, want %d", i, b.Y, prevBottom)
		}
		if b.X*2+b.Width != s.Width {
			t.Fatalf("band %d is not centered: %v", i, b)
		}
		prevBottom = b.Bottom()
		height += b.Height
	}
	if height != s.Height {
		t.Fatalf("bands cover %d rows, want %d", height, s.Height)
	}
	if bands[0].X == 0 {
		t.Fatalf("top band not inset: %v", bands[0])
	}
	first, last := bands[0], bands[len(bands)-1]
	if first.X != last.X || first.Height != last.Height {
		t.Fatalf("top %v and bottom %v bands differ", first, last)
	}

	mid := bands[len(bands)/2]
	if mid != geom.R(0, 8, 100, 44) {
		t.Fatalf("middle band = %v", mid)
	}
}

func TestRoundedRectsClampsRadius(t *testing.T) {
	got := RoundedRects(geom.Size{Width: 10, Height: 10}, 50)
	total := 0
	for _, b := range got {
		total += b.Height
	}
	if total != 10 {
		t.Fatalf("clamped bands cover %d rows, want 10", total)
	}
}
