package compositor

import (
	"image"
	"math"

	"github.com/1broseidon/tessera/internal/geom"
)

// ShadowExtent is the screen rect covered by the shadow of frame.
func ShadowExtent(frame geom.Rect, radius int, offset geom.Point) geom.Rect {
	return frame.Inset(-radius).Translate(offset)
}

// CornerMask returns an alpha mask of size with every corner rounded by
// radius. Edge pixels are antialiased by their coverage.
func CornerMask(size geom.Size, radius int) *image.Alpha {
	m := image.NewAlpha(image.Rect(0, 0, size.Width, size.Height))
	fillRounded(m, image.Rect(0, 0, size.Width, size.Height), radius, 0xff)
	return m
}

// ShadowMask returns the blurred alpha silhouette of a frame of size, padded
// by radius on every side. Peak alpha is opacity scaled to 255.
func ShadowMask(size geom.Size, radius, cornerRadius int, opacity float64) *image.Alpha {
	w, h := size.Width+2*radius, size.Height+2*radius
	m := image.NewAlpha(image.Rect(0, 0, w, h))
	if size.Empty() {
		return m
	}
	peak := uint8(math.Round(math.Max(0, math.Min(1, opacity)) * 0xff))
	fillRounded(m, image.Rect(radius, radius, radius+size.Width, radius+size.Height), cornerRadius, peak)
	if radius > 0 {
		// Three box passes approximate a gaussian.
		box := max(1, radius/3)
		for range 3 {
			boxBlur(m, box)
		}
	}
	return m
}

func fillRounded(m *image.Alpha, r image.Rectangle, radius int, alpha uint8) {
	radius = min(radius, r.Dx()/2, r.Dy()/2)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Pix[m.PixOffset(x, y)] = scale(alpha, cornerCoverage(x-r.Min.X, y-r.Min.Y, r.Dx(), r.Dy(), radius))
		}
	}
}

// cornerCoverage is the fraction of pixel (x, y) inside a w by h rect with
// rounded corners.
func cornerCoverage(x, y, w, h, radius int) float64 {
	if radius <= 0 {
		return 1
	}
	var cx, cy float64
	switch {
	case x < radius:
		cx = float64(radius)
	case x >= w-radius:
		cx = float64(w - radius)
	default:
		return 1
	}
	switch {
	case y < radius:
		cy = float64(radius)
	case y >= h-radius:
		cy = float64(h - radius)
	default:
		return 1
	}
	d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
	return math.Max(0, math.Min(1, float64(radius)-d+0.5))
}

func scale(a uint8, f float64) uint8 {
	return uint8(math.Round(float64(a) * f))
}

// boxBlur runs one horizontal and one vertical running-sum pass of radius r.
func boxBlur(m *image.Alpha, r int) {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	tmp := make([]uint8, len(m.Pix))
	div := 2*r + 1
	at := func(buf []uint8, x, y int) int { return int(buf[y*m.Stride+x]) }

	for y := 0; y < h; y++ {
		sum := 0
		for x := -r; x <= r; x++ {
			if x >= 0 && x < w {
				sum += at(m.Pix, x, y)
			}
		}
		for x := 0; x < w; x++ {
			tmp[y*m.Stride+x] = uint8(sum / div)
			if out := x - r; out >= 0 {
				sum -= at(m.Pix, out, y)
			}
			if in := x + r + 1; in < w {
				sum += at(m.Pix, in, y)
			}
		}
	}
	for x := 0; x < w; x++ {
		sum := 0
		for y := -r; y <= r; y++ {
			if y >= 0 && y < h {
				sum += at(tmp, x, y)
			}
		}
		for y := 0; y < h; y++ {
			m.Pix[y*m.Stride+x] = uint8(sum / div)
			if out := y - r; out >= 0 {
				sum -= at(tmp, x, out)
			}
			if in := y + r + 1; in < h {
				sum += at(tmp, x, in)
			}
		}
	}
}

// alphaRows packs m into rows padded to 4 bytes, the layout of a depth-8
// ZPixmap image.
func alphaRows(m *image.Alpha) (data []byte, stride int) {
	w, h := m.Bounds().Dx(), m.Bounds().Dy()
	stride = (w + 3) &^ 3
	data = make([]byte, stride*h)
	for y := 0; y < h; y++ {
		copy(data[y*stride:y*stride+w], m.Pix[y*m.Stride:y*m.Stride+w])
	}
	return data, stride
}
