package geom

import "testing"

func TestUnionIgnoresEmpty(t *testing.T) {
	a := R(10, 10, 20, 20)
	if got := a.Union(Rect{}); got != a {
		t.Fatalf("Union(empty) = %v, want %v", got, a)
	}
	if got := (Rect{}).Union(a); got != a {
		t.Fatalf("empty.Union = %v, want %v", got, a)
	}
}

func TestUnionAndIntersect(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Rect
		union     Rect
		intersect Rect
	}{
		{"disjoint", R(0, 0, 10, 10), R(20, 20, 5, 5), R(0, 0, 25, 25), Rect{}},
		{"overlap", R(0, 0, 10, 10), R(5, 5, 10, 10), R(0, 0, 15, 15), R(5, 5, 5, 5)},
		{"nested", R(0, 0, 100, 100), R(10, 10, 5, 5), R(0, 0, 100, 100), R(10, 10, 5, 5)},
		{"touching", R(0, 0, 10, 10), R(10, 0, 10, 10), R(0, 0, 20, 10), Rect{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Union(tt.b); got != tt.union {
				t.Fatalf("Union = %v, want %v", got, tt.union)
			}
			if got := tt.a.Intersect(tt.b); got != tt.intersect {
				t.Fatalf("Intersect = %v, want %v", got, tt.intersect)
			}
		})
	}
}

func TestContainsIsHalfOpen(t *testing.T) {
	r := R(0, 0, 10, 10)
	if !r.Contains(Point{0, 0}) {
		t.Fatal("expected origin inside")
	}
	if r.Contains(Point{10, 5}) {
		t.Fatal("expected right edge outside")
	}
}

func TestXRectClamps(t *testing.T) {
	x := R(-40000, 5, 70000, -3).XRect()
	if x.X != -1<<15 || x.Width != 1<<16-1 || x.Height != 0 {
		t.Fatalf("XRect = %+v, want clamped values", x)
	}
	if got := FromXRect(R(1, 2, 3, 4).XRect()); got != R(1, 2, 3, 4) {
		t.Fatalf("round trip = %v", got)
	}
}
