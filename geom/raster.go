package geom

import "math"

// RasterizeTriangle fills the triangle given by three raster-space points
// using 28.4 fixed-point half-edge tests with a top-left fill convention,
// calling fn for every covered texel. Points outside [0,w)x[0,h) are clipped.
// The winding is normalized internally, callers can pass either order.
func RasterizeTriangle(p0, p1, p2 Vec2, w, h int, fn func(x, y int)) {
	// Normalize the winding so the half-edge functions below read positive
	// on the interior.
	if signedAreaDoubled(p0, p1, p2) > 0 {
		p1, p2 = p2, p1
	}

	x1 := int64(math.Round(16 * p0.X))
	x2 := int64(math.Round(16 * p1.X))
	x3 := int64(math.Round(16 * p2.X))
	y1 := int64(math.Round(16 * p0.Y))
	y2 := int64(math.Round(16 * p1.Y))
	y3 := int64(math.Round(16 * p2.Y))

	dx12, dx23, dx31 := x1-x2, x2-x3, x3-x1
	dy12, dy23, dy31 := y1-y2, y2-y3, y3-y1

	fdx12, fdx23, fdx31 := dx12<<4, dx23<<4, dx31<<4
	fdy12, fdy23, fdy31 := dy12<<4, dy23<<4, dy31<<4

	minx := (min3(x1, x2, x3) + 0xF) >> 4
	maxx := (max3(x1, x2, x3) + 0xF) >> 4
	miny := (min3(y1, y2, y3) + 0xF) >> 4
	maxy := (max3(y1, y2, y3) + 0xF) >> 4

	minx = clampInt64(minx, 0, int64(w))
	maxx = clampInt64(maxx, 0, int64(w))
	miny = clampInt64(miny, 0, int64(h))
	maxy = clampInt64(maxy, 0, int64(h))

	c1 := dy12*x1 - dx12*y1
	c2 := dy23*x2 - dx23*y2
	c3 := dy31*x3 - dx31*y3

	// Top-left fill convention.
	if dy12 < 0 || (dy12 == 0 && dx12 > 0) {
		c1++
	}
	if dy23 < 0 || (dy23 == 0 && dx23 > 0) {
		c2++
	}
	if dy31 < 0 || (dy31 == 0 && dx31 > 0) {
		c3++
	}

	cy1 := c1 + dx12*(miny<<4) - dy12*(minx<<4)
	cy2 := c2 + dx23*(miny<<4) - dy23*(minx<<4)
	cy3 := c3 + dx31*(miny<<4) - dy31*(minx<<4)

	for y := miny; y < maxy; y++ {
		cx1, cx2, cx3 := cy1, cy2, cy3
		for x := minx; x < maxx; x++ {
			if cx1 > 0 && cx2 > 0 && cx3 > 0 {
				fn(int(x), int(y))
			}
			cx1 -= fdy12
			cx2 -= fdy23
			cx3 -= fdy31
		}
		cy1 += fdx12
		cy2 += fdx23
		cy3 += fdx31
	}
}

// PadTriangle moves each corner away from the centroid by padding raster
// units, closing hairline gaps between neighboring UV triangles.
func PadTriangle(p0, p1, p2 Vec2, padding float64) (Vec2, Vec2, Vec2) {
	if padding <= 0 {
		return p0, p1, p2
	}
	center := Vec2{
		X: (p0.X + p1.X + p2.X) / 3,
		Y: (p0.Y + p1.Y + p2.Y) / 3,
	}
	pad := func(p Vec2) Vec2 {
		d := p.Sub(center)
		l := d.Len()
		if l < 1e-12 {
			return p
		}
		return center.Add(d.Scale((l + padding) / l))
	}
	return pad(p0), pad(p1), pad(p2)
}

// BarycentricUV returns barycentric coordinates of point p within the 2D
// triangle (a, b, c).
func BarycentricUV(p, a, b, c Vec2) [3]float64 {
	v0 := b.Sub(a)
	v1 := c.Sub(a)
	v2 := p.Sub(a)
	denom := v0.X*v1.Y - v1.X*v0.Y
	if math.Abs(denom) < 1e-18 {
		return [3]float64{1, 0, 0}
	}
	bb := (v2.X*v1.Y - v1.X*v2.Y) / denom
	cc := (v0.X*v2.Y - v2.X*v0.Y) / denom
	return [3]float64{1 - bb - cc, bb, cc}
}

func signedAreaDoubled(a, b, c Vec2) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (c.X-a.X)*(b.Y-a.Y)
}

func min3(a, b, c int64) int64 {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func max3(a, b, c int64) int64 {
	if b > a {
		a = b
	}
	if c > a {
		a = c
	}
	return a
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
