package geom

import "math"

// Vertex is a mesh vertex with position, normal and UV coordinate.
type Vertex struct {
	Position Vec3
	Normal   Vec3
	UV       Vec2
}

// Triangle is a resolved view of one mesh triangle. Index is the triangle's
// position in the owning mesh.
type Triangle struct {
	V     [3]Vertex
	Index int
}

// Area returns the triangle's surface area in world space.
func (t *Triangle) Area() float64 {
	e1 := t.V[1].Position.Sub(t.V[0].Position)
	e2 := t.V[2].Position.Sub(t.V[0].Position)
	return 0.5 * e1.Cross(e2).Len()
}

// GeometricNormal returns the unit face normal from the winding order.
func (t *Triangle) GeometricNormal() Vec3 {
	e1 := t.V[1].Position.Sub(t.V[0].Position)
	e2 := t.V[2].Position.Sub(t.V[0].Position)
	return e1.Cross(e2).Normalized()
}

// Centroid returns the triangle's center of mass.
func (t *Triangle) Centroid() Vec3 {
	return t.V[0].Position.Add(t.V[1].Position).Add(t.V[2].Position).Scale(1.0 / 3.0)
}

// Bounds returns the triangle's axis-aligned bounding box.
func (t *Triangle) Bounds() Aabb {
	b := EmptyAabb()
	b.Extend(t.V[0].Position)
	b.Extend(t.V[1].Position)
	b.Extend(t.V[2].Position)
	return b
}

// Barycentric returns the barycentric coordinates of p projected onto the
// triangle's plane. The coordinates may lie outside [0,1] when p projects
// outside the triangle.
func (t *Triangle) Barycentric(p Vec3) (a, b, c float64) {
	v0 := t.V[1].Position.Sub(t.V[0].Position)
	v1 := t.V[2].Position.Sub(t.V[0].Position)
	v2 := p.Sub(t.V[0].Position)

	d00 := v0.Dot(v0)
	d01 := v0.Dot(v1)
	d11 := v1.Dot(v1)
	d20 := v2.Dot(v0)
	d21 := v2.Dot(v1)

	denom := d00*d11 - d01*d01
	if math.Abs(denom) < 1e-18 {
		return 1, 0, 0
	}
	b = (d11*d20 - d01*d21) / denom
	c = (d00*d21 - d01*d20) / denom
	a = 1 - b - c
	return a, b, c
}

// ClosestPoint returns the point on the triangle closest to p, with its
// barycentric coordinates. Standard Voronoi region walk.
func (t *Triangle) ClosestPoint(p Vec3) (Vec3, [3]float64) {
	a := t.V[0].Position
	b := t.V[1].Position
	c := t.V[2].Position

	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a, [3]float64{1, 0, 0}
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b, [3]float64{0, 1, 0}
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return a.Add(ab.Scale(v)), [3]float64{1 - v, v, 0}
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c, [3]float64{0, 0, 1}
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return a.Add(ac.Scale(w)), [3]float64{1 - w, 0, w}
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).Scale(w)), [3]float64{0, 1 - w, w}
	}

	denom := 1.0 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	point := a.Add(ab.Scale(v)).Add(ac.Scale(w))
	return point, [3]float64{1 - v - w, v, w}
}

// InterpolatePosition returns the position at the given barycentric coords.
func (t *Triangle) InterpolatePosition(bary [3]float64) Vec3 {
	return t.V[0].Position.Scale(bary[0]).
		Add(t.V[1].Position.Scale(bary[1])).
		Add(t.V[2].Position.Scale(bary[2]))
}

// InterpolateNormal returns the unit shading normal at the given barycentric
// coords, falling back to the geometric normal for meshes without normals.
func (t *Triangle) InterpolateNormal(bary [3]float64) Vec3 {
	n := t.V[0].Normal.Scale(bary[0]).
		Add(t.V[1].Normal.Scale(bary[1])).
		Add(t.V[2].Normal.Scale(bary[2]))
	if n.IsZero() {
		return t.GeometricNormal()
	}
	return n.Normalized()
}

// InterpolateUV returns the UV coordinate at the given barycentric coords.
func (t *Triangle) InterpolateUV(bary [3]float64) Vec2 {
	return Vec2{
		X: t.V[0].UV.X*bary[0] + t.V[1].UV.X*bary[1] + t.V[2].UV.X*bary[2],
		Y: t.V[0].UV.Y*bary[0] + t.V[1].UV.Y*bary[1] + t.V[2].UV.Y*bary[2],
	}
}

// ProjectToTangent projects v onto the triangle's tangent plane.
func (t *Triangle) ProjectToTangent(v Vec3) Vec3 {
	n := t.GeometricNormal()
	return v.Sub(n.Scale(v.Dot(n)))
}

// FallbackFlowDirection is the deterministic direction used when the flow
// vector is orthogonal to the surface: the normalized B->C edge.
func (t *Triangle) FallbackFlowDirection() Vec3 {
	return t.V[2].Position.Sub(t.V[1].Position).Normalized()
}

// HasValidUV reports whether all three vertices carry finite, non-collapsed
// UV coordinates. Triangles without a UV parameterization cannot be baked.
func (t *Triangle) HasValidUV() bool {
	for _, v := range t.V {
		if math.IsNaN(v.UV.X) || math.IsNaN(v.UV.Y) ||
			math.IsInf(v.UV.X, 0) || math.IsInf(v.UV.Y, 0) {
			return false
		}
	}
	// A UV triangle with zero area maps the whole face to a point.
	e1 := t.V[1].UV.Sub(t.V[0].UV)
	e2 := t.V[2].UV.Sub(t.V[0].UV)
	return math.Abs(e1.X*e2.Y-e1.Y*e2.X) > 1e-14
}
