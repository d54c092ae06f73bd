package geom

import (
	"errors"
	"log/slog"
	"math"
	"sort"
)

// ErrOutOfBounds is returned by NearestSurfacePoint when a query position
// cannot be projected onto any triangle within the index tolerance.
var ErrOutOfBounds = errors.New("geom: query position out of surface bounds")

// distanceEpsilon is the slack within which two candidate triangles count as
// equally near. Ties resolve to the lower triangle index so that a particle
// landing exactly on an edge resolves the same way on every run.
const distanceEpsilon = 1e-9

// SurfaceIndex is a uniform-grid spatial index over mesh triangles.
// It is built once and read-only afterwards, so concurrent lookups from
// simulation workers need no locking.
type SurfaceIndex struct {
	mesh      *Mesh
	bounds    Aabb
	tolerance float64

	cellSize   float64
	dims       [3]int
	cells      [][]int32 // triangle indices per grid cell, ascending
	adjacency  [][]int32 // triangles sharing at least one vertex, per triangle
	degenerate int
}

// IndexOptions controls surface index construction.
type IndexOptions struct {
	// Tolerance is the maximum projection distance for nearest lookups.
	// Zero picks a default relative to the mesh size.
	Tolerance float64
	// TargetCellCount tunes grid resolution. Zero picks a default.
	TargetCellCount int
}

// BuildSurfaceIndex constructs the index over the given mesh. Triangles with
// zero area are skipped and logged; they terminate index coverage locally but
// never fail the build.
func BuildSurfaceIndex(mesh *Mesh, opts IndexOptions) *SurfaceIndex {
	bounds := mesh.Bounds()
	size := bounds.Size()
	maxExtent := math.Max(size.X, math.Max(size.Y, size.Z))
	if maxExtent <= 0 {
		maxExtent = 1
	}

	tolerance := opts.Tolerance
	if tolerance <= 0 {
		tolerance = 0.05 * maxExtent
	}

	target := opts.TargetCellCount
	if target <= 0 {
		target = 32 * 32 * 32
	}
	cellSize := maxExtent / math.Cbrt(float64(target))
	if cellSize <= 0 {
		cellSize = maxExtent
	}

	idx := &SurfaceIndex{
		mesh:      mesh,
		bounds:    bounds,
		tolerance: tolerance,
		cellSize:  cellSize,
	}
	for axis := 0; axis < 3; axis++ {
		extent := [3]float64{size.X, size.Y, size.Z}[axis]
		n := int(extent/cellSize) + 1
		if n < 1 {
			n = 1
		}
		idx.dims[axis] = n
	}
	idx.cells = make([][]int32, idx.dims[0]*idx.dims[1]*idx.dims[2])

	vertexTris := make(map[int][]int32)
	for i := 0; i < mesh.TriangleCount(); i++ {
		tri := mesh.Triangle(i)
		if tri.Area() < 1e-12 {
			idx.degenerate++
			slog.Warn("skipping degenerate triangle", "triangle", i)
			continue
		}

		idx.insertTriangle(int32(i), tri.Bounds())
		for _, vi := range mesh.Triangles[i] {
			vertexTris[vi] = append(vertexTris[vi], int32(i))
		}
	}

	// Vertex-sharing adjacency for cross-boundary particle stepping.
	idx.adjacency = make([][]int32, mesh.TriangleCount())
	for i := 0; i < mesh.TriangleCount(); i++ {
		seen := map[int32]bool{int32(i): true}
		var adj []int32
		for _, vi := range mesh.Triangles[i] {
			for _, other := range vertexTris[vi] {
				if !seen[other] {
					seen[other] = true
					adj = append(adj, other)
				}
			}
		}
		sort.Slice(adj, func(a, b int) bool { return adj[a] < adj[b] })
		idx.adjacency[i] = adj
	}

	return idx
}

// Mesh returns the indexed mesh.
func (idx *SurfaceIndex) Mesh() *Mesh {
	return idx.mesh
}

// Bounds returns the mesh bounding box.
func (idx *SurfaceIndex) Bounds() Aabb {
	return idx.bounds
}

// Tolerance returns the maximum projection distance for nearest lookups.
func (idx *SurfaceIndex) Tolerance() float64 {
	return idx.tolerance
}

// DegenerateCount returns how many zero-area triangles were skipped during
// construction.
func (idx *SurfaceIndex) DegenerateCount() int {
	return idx.degenerate
}

// TriangleAt returns a resolved view of triangle i.
func (idx *SurfaceIndex) TriangleAt(i int) Triangle {
	return idx.mesh.Triangle(i)
}

// Neighbors returns the indices of triangles adjacent to the surface point's
// owning triangle, in ascending order.
func (idx *SurfaceIndex) Neighbors(sp SurfacePoint) []int32 {
	if sp.Tri < 0 || sp.Tri >= len(idx.adjacency) {
		return nil
	}
	return idx.adjacency[sp.Tri]
}

// NearestSurfacePoint projects p onto the closest triangle within tolerance.
// When p is equidistant to several triangles (an edge or vertex landing), the
// lowest triangle index wins, keeping runs reproducible for a fixed seed.
func (idx *SurfaceIndex) NearestSurfacePoint(p Vec3) (SurfacePoint, error) {
	bestTri := -1
	var bestBary [3]float64
	bestDistSq := math.Inf(1)

	cx, cy, cz := idx.cellCoords(p)
	maxRing := idx.maxDim()
	ringLimit := int(idx.tolerance/idx.cellSize) + 1
	if ringLimit > maxRing {
		ringLimit = maxRing
	}

	for ring := 0; ring <= ringLimit; ring++ {
		idx.forEachRingCell(cx, cy, cz, ring, func(cell []int32) {
			for _, ti := range cell {
				tri := idx.mesh.Triangle(int(ti))
				closest, bary := tri.ClosestPoint(p)
				d := closest.Sub(p).LenSq()
				if d < bestDistSq-distanceEpsilon ||
					(d < bestDistSq+distanceEpsilon && int(ti) < bestTri) {
					bestDistSq = d
					bestTri = int(ti)
					bestBary = bary
				}
			}
		})

		// A cell at ring k lies at least (k-1) cell widths from p, so a
		// diagonal hit can still be beaten by a triangle several rings
		// farther out. Expand until that lower bound passes the best hit.
		if bestTri >= 0 && float64(ring)*idx.cellSize > math.Sqrt(bestDistSq)+distanceEpsilon {
			break
		}
	}

	if bestTri < 0 || bestDistSq > idx.tolerance*idx.tolerance {
		return SurfacePoint{}, ErrOutOfBounds
	}
	return idx.mesh.ResolveSurfacePoint(bestTri, bestBary), nil
}

func (idx *SurfaceIndex) insertTriangle(ti int32, b Aabb) {
	x0, y0, z0 := idx.cellCoords(b.Min)
	x1, y1, z1 := idx.cellCoords(b.Max)
	for z := z0; z <= z1; z++ {
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				c := idx.cellIndex(x, y, z)
				idx.cells[c] = append(idx.cells[c], ti)
			}
		}
	}
}

func (idx *SurfaceIndex) cellCoords(p Vec3) (int, int, int) {
	rel := p.Sub(idx.bounds.Min)
	clampAxis := func(v float64, n int) int {
		c := int(v / idx.cellSize)
		if c < 0 {
			return 0
		}
		if c >= n {
			return n - 1
		}
		return c
	}
	return clampAxis(rel.X, idx.dims[0]),
		clampAxis(rel.Y, idx.dims[1]),
		clampAxis(rel.Z, idx.dims[2])
}

func (idx *SurfaceIndex) cellIndex(x, y, z int) int {
	return (z*idx.dims[1]+y)*idx.dims[0] + x
}

func (idx *SurfaceIndex) maxDim() int {
	n := idx.dims[0]
	if idx.dims[1] > n {
		n = idx.dims[1]
	}
	if idx.dims[2] > n {
		n = idx.dims[2]
	}
	return n
}

// forEachRingCell visits the cells on the cube shell at the given ring
// distance around (cx, cy, cz), clipped to the grid.
func (idx *SurfaceIndex) forEachRingCell(cx, cy, cz, ring int, visit func([]int32)) {
	if ring == 0 {
		visit(idx.cells[idx.cellIndex(cx, cy, cz)])
		return
	}
	for dz := -ring; dz <= ring; dz++ {
		z := cz + dz
		if z < 0 || z >= idx.dims[2] {
			continue
		}
		for dy := -ring; dy <= ring; dy++ {
			y := cy + dy
			if y < 0 || y >= idx.dims[1] {
				continue
			}
			for dx := -ring; dx <= ring; dx++ {
				// Shell only: at least one axis at the ring distance.
				if dx > -ring && dx < ring && dy > -ring && dy < ring && dz > -ring && dz < ring {
					continue
				}
				x := cx + dx
				if x < 0 || x >= idx.dims[0] {
					continue
				}
				visit(idx.cells[idx.cellIndex(x, y, z)])
			}
		}
	}
}
