package geom

import "math"

// Aabb is an axis-aligned bounding box.
type Aabb struct {
	Min, Max Vec3
}

// EmptyAabb returns a box that contains nothing and unions cleanly.
func EmptyAabb() Aabb {
	inf := math.Inf(1)
	return Aabb{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

// Extend grows the box to contain p.
func (b *Aabb) Extend(p Vec3) {
	b.Min.X = math.Min(b.Min.X, p.X)
	b.Min.Y = math.Min(b.Min.Y, p.Y)
	b.Min.Z = math.Min(b.Min.Z, p.Z)
	b.Max.X = math.Max(b.Max.X, p.X)
	b.Max.Y = math.Max(b.Max.Y, p.Y)
	b.Max.Z = math.Max(b.Max.Z, p.Z)
}

// Contains reports whether p lies inside the box (inclusive).
func (b Aabb) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Size returns the box extents per axis.
func (b Aabb) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint of the box.
func (b Aabb) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Grown returns the box expanded by margin on all sides.
func (b Aabb) Grown(margin float64) Aabb {
	m := Vec3{margin, margin, margin}
	return Aabb{Min: b.Min.Sub(m), Max: b.Max.Add(m)}
}
