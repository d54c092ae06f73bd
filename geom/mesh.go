package geom

// Mesh is an immutable triangle mesh. It is built once by a mesh source and
// referenced (never copied) by the index, the transport engine and the
// synthesizer for the whole run.
type Mesh struct {
	Vertices  []Vertex
	Triangles [][3]int
}

// TriangleCount returns the number of triangles in the mesh.
func (m *Mesh) TriangleCount() int {
	return len(m.Triangles)
}

// Triangle returns a resolved view of triangle i.
func (m *Mesh) Triangle(i int) Triangle {
	idx := m.Triangles[i]
	return Triangle{
		V: [3]Vertex{
			m.Vertices[idx[0]],
			m.Vertices[idx[1]],
			m.Vertices[idx[2]],
		},
		Index: i,
	}
}

// Bounds returns the bounding box of all vertices.
func (m *Mesh) Bounds() Aabb {
	b := EmptyAabb()
	for _, v := range m.Vertices {
		b.Extend(v.Position)
	}
	return b
}

// SurfacePoint is a resolved location on the mesh: owning triangle,
// barycentric coordinates and the interpolated attributes at that spot.
// It is a derived value, recomputed whenever a particle moves.
type SurfacePoint struct {
	Tri      int
	Bary     [3]float64
	Position Vec3
	Normal   Vec3
	UV       Vec2
}

// ResolveSurfacePoint builds a SurfacePoint on triangle tri at bary.
func (m *Mesh) ResolveSurfacePoint(tri int, bary [3]float64) SurfacePoint {
	t := m.Triangle(tri)
	return SurfacePoint{
		Tri:      tri,
		Bary:     bary,
		Position: t.InterpolatePosition(bary),
		Normal:   t.InterpolateNormal(bary),
		UV:       t.InterpolateUV(bary),
	}
}
