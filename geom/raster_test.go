package geom

import (
	"math"
	"testing"
)

func TestRasterizeAdjacentTrianglesNoOverlap(t *testing.T) {
	// A quad split along the diagonal. With the top-left fill convention the
	// shared edge belongs to exactly one triangle, so every interior texel is
	// covered exactly once.
	const size = 32
	counts := make([]int, size*size)
	fill := func(x, y int) { counts[y*size+x]++ }

	a := Vec2{0, 0}
	b := Vec2{size, 0}
	c := Vec2{size, size}
	d := Vec2{0, size}

	RasterizeTriangle(a, b, d, size, size, fill)
	RasterizeTriangle(b, c, d, size, size, fill)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if got := counts[y*size+x]; got != 1 {
				t.Fatalf("texel (%d,%d) covered %d times, want 1", x, y, got)
			}
		}
	}
}

func TestRasterizeCoversInterior(t *testing.T) {
	const size = 16
	fill := func(p0, p1, p2 Vec2) map[[2]int]bool {
		covered := map[[2]int]bool{}
		RasterizeTriangle(p0, p1, p2, size, size, func(x, y int) {
			covered[[2]int{x, y}] = true
		})
		return covered
	}

	a := Vec2{0, 0}
	b := Vec2{16, 0}
	c := Vec2{0, 16}
	for _, covered := range []map[[2]int]bool{fill(a, b, c), fill(a, c, b)} {
		if len(covered) == 0 {
			t.Fatal("triangle covered no texels")
		}
		if !covered[[2]int{4, 4}] {
			t.Error("interior texel (4,4) not covered")
		}
	}
}

func TestRasterizeWindingIndependent(t *testing.T) {
	const size = 16
	count := func(p0, p1, p2 Vec2) int {
		n := 0
		RasterizeTriangle(p0, p1, p2, size, size, func(x, y int) { n++ })
		return n
	}

	a := Vec2{1, 1}
	b := Vec2{14, 2}
	c := Vec2{6, 13}
	if cw, ccw := count(a, b, c), count(a, c, b); cw != ccw {
		t.Errorf("winding changed coverage: %d vs %d", cw, ccw)
	}
}

func TestRasterizeClipsToTarget(t *testing.T) {
	const size = 8
	RasterizeTriangle(Vec2{-10, -10}, Vec2{20, -5}, Vec2{5, 20}, size, size, func(x, y int) {
		if x < 0 || x >= size || y < 0 || y >= size {
			t.Fatalf("texel (%d,%d) outside %dx%d target", x, y, size, size)
		}
	})
}

func TestRasterizeDegenerateCoversNothing(t *testing.T) {
	n := 0
	RasterizeTriangle(Vec2{3, 3}, Vec2{3, 3}, Vec2{3, 3}, 8, 8, func(x, y int) { n++ })
	if n != 0 {
		t.Errorf("degenerate triangle covered %d texels, want 0", n)
	}
}

func TestPadTriangleGrowsOutward(t *testing.T) {
	a, b, c := Vec2{10, 10}, Vec2{20, 10}, Vec2{10, 20}
	pa, pb, pc := PadTriangle(a, b, c, 1)

	center := Vec2{X: (a.X + b.X + c.X) / 3, Y: (a.Y + b.Y + c.Y) / 3}
	for _, pair := range [][2]Vec2{{a, pa}, {b, pb}, {c, pc}} {
		before := pair[0].Sub(center).Len()
		after := pair[1].Sub(center).Len()
		if math.Abs(after-before-1) > 1e-9 {
			t.Errorf("corner %v padded to %v: distance grew by %v, want 1", pair[0], pair[1], after-before)
		}
	}

	// Zero padding is the identity.
	qa, qb, qc := PadTriangle(a, b, c, 0)
	if qa != a || qb != b || qc != c {
		t.Error("zero padding moved corners")
	}
}

func TestBarycentricUV(t *testing.T) {
	a, b, c := Vec2{0, 0}, Vec2{10, 0}, Vec2{0, 10}
	tests := []struct {
		name string
		p    Vec2
		want [3]float64
	}{
		{"corner a", a, [3]float64{1, 0, 0}},
		{"corner b", b, [3]float64{0, 1, 0}},
		{"corner c", c, [3]float64{0, 0, 1}},
		{"center", Vec2{10.0 / 3, 10.0 / 3}, [3]float64{1.0 / 3, 1.0 / 3, 1.0 / 3}},
		{"outside", Vec2{20, 0}, [3]float64{-1, 2, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BarycentricUV(tt.p, a, b, c)
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("BarycentricUV(%v) = %v, want %v", tt.p, got, tt.want)
					break
				}
			}
		})
	}
}
