package tex

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/pthm-cable/patina/config"
	"github.com/pthm-cable/patina/geom"
	"github.com/pthm-cable/patina/surface"
)

// CombineMode selects how a texel combines the cell samples it gathers.
type CombineMode int

const (
	// CombineMean averages samples by filter weight.
	CombineMean CombineMode = iota
	// CombineMax keeps the largest sample.
	CombineMax
	// CombineWeighted averages by filter weight times sample count, trusting
	// well-sampled cells more.
	CombineWeighted
)

// ErrUnmappableIsland marks a triangle whose UVs are missing or degenerate.
// The bake continues; the triangle's surface state stays an unknown region in
// the output.
var ErrUnmappableIsland = errors.New("tex: triangle has no usable UV mapping")

// ParseCombineMode maps a config string to a combine mode.
func ParseCombineMode(s string) (CombineMode, error) {
	switch s {
	case "mean":
		return CombineMean, nil
	case "max":
		return CombineMax, nil
	case "weighted":
		return CombineWeighted, nil
	}
	return 0, fmt.Errorf("tex: unknown combine mode %q", s)
}

// gatherRadiusScale stretches the filter support past the furthest of the
// gathered samples so its weight stays above zero.
const gatherRadiusScale = 2.7

// gatherCount is how many nearest cells contribute to one texel.
const gatherCount = 4

// BakeStats summarizes one bake.
type BakeStats struct {
	UnmappableTriangles int // triangles without a usable UV mapping
	CoveredTexels       int // texels claimed by UV rasterization
	DilatedTexels       int // texels filled from neighbors after rasterization
	UnknownTexels       int // texels no surface information reaches
	Islands             int // connected UV components
}

// Synthesizer bakes accumulator snapshots into per-material texture buffers.
// A synthesizer is bound to a mesh and output parameters; it can bake any
// number of snapshots, at a resolution independent of the simulation.
type Synthesizer struct {
	index    *geom.SurfaceIndex
	width    int
	height   int
	combine  CombineMode
	padding  float64
	dilation int
}

// NewSynthesizer builds a synthesizer from texture config.
func NewSynthesizer(index *geom.SurfaceIndex, cfg config.TextureConfig) (*Synthesizer, error) {
	combine, err := ParseCombineMode(cfg.Combine)
	if err != nil {
		return nil, err
	}
	return &Synthesizer{
		index:    index,
		width:    cfg.Width,
		height:   cfg.Height,
		combine:  combine,
		padding:  cfg.Padding,
		dilation: cfg.DilationPasses,
	}, nil
}

// gatherPoint is one accumulator cell projected into raster space.
type gatherPoint struct {
	pix     geom.Vec2
	deltas  []float64
	samples uint32
}

// Bake rasterizes every UV-mapped triangle and gathers snapshot cell values
// into one buffer per material name. Triangles whose UVs are missing or
// degenerate are counted and skipped; their surface state cannot reach the
// output. The result depends only on the snapshot and the mesh, never on how
// the snapshot was produced.
func (s *Synthesizer) Bake(snap *surface.Snapshot, names []string) ([]*Buffer, BakeStats, error) {
	if len(names) != snap.MaterialCount {
		return nil, BakeStats{}, fmt.Errorf("tex: %d material names for %d channels", len(names), snap.MaterialCount)
	}

	var stats BakeStats
	buffers := make([]*Buffer, len(names))
	for i, name := range names {
		buffers[i] = NewBuffer(name, s.width, s.height)
	}

	mesh := s.index.Mesh()
	islands := buildIslands(mesh)
	stats.Islands = islands.count(mesh)

	byTri := snap.TriangleIndex()

	// Per-texel claim state, shared by all material buffers.
	owner := make([]int32, s.width*s.height)
	for i := range owner {
		owner[i] = -1
	}
	interior := make([]bool, s.width*s.height)

	vals := make([]float64, len(names))
	var points []gatherPoint

	for ti := 0; ti < mesh.TriangleCount(); ti++ {
		tri := mesh.Triangle(ti)
		if !tri.HasValidUV() {
			stats.UnmappableTriangles++
			slog.Debug("skipping triangle", "triangle", ti, "error", ErrUnmappableIsland)
			continue
		}

		island := islands.find(mesh.Triangles[ti][0])
		a := s.toRaster(tri.V[0].UV)
		b := s.toRaster(tri.V[1].UV)
		c := s.toRaster(tri.V[2].UV)

		points = s.projectCells(points[:0], &tri, byTri[int32(ti)], snap)

		pa, pb, pc := geom.PadTriangle(a, b, c, s.padding)
		geom.RasterizeTriangle(pa, pb, pc, s.width, s.height, func(x, y int) {
			idx := y*s.width + x
			texel := geom.Vec2{X: float64(x) + 0.5, Y: float64(y) + 0.5}
			bary := geom.BarycentricUV(texel, a, b, c)
			in := bary[0] >= 0 && bary[1] >= 0 && bary[2] >= 0

			switch prev := owner[idx]; {
			case prev < 0:
				// unclaimed
			case prev != island:
				// Another island got here first. Its interior always
				// stands, but this triangle's own interior outranks a
				// foreign padding spill.
				if interior[idx] || !in {
					return
				}
			case interior[idx] && !in:
				return
			}

			s.gather(vals, texel, points)
			for m, buf := range buffers {
				buf.Set(x, y, vals[m])
			}
			if owner[idx] < 0 {
				stats.CoveredTexels++
			}
			owner[idx] = island
			interior[idx] = in
		})
	}

	stats.DilatedTexels = s.dilate(buffers, owner)

	for _, known := range buffers[0].Known {
		if !known {
			stats.UnknownTexels++
		}
	}

	return buffers, stats, nil
}

// toRaster maps UV coordinates to raster space, flipping V so row 0 is the
// top of the image.
func (s *Synthesizer) toRaster(uv geom.Vec2) geom.Vec2 {
	return geom.Vec2{
		X: uv.X * float64(s.width),
		Y: (1 - uv.Y) * float64(s.height),
	}
}

// projectCells places a triangle's snapshot cells in raster space.
func (s *Synthesizer) projectCells(dst []gatherPoint, tri *geom.Triangle, cells []uint16, snap *surface.Snapshot) []gatherPoint {
	for _, cell := range cells {
		cv := snap.Cells[surface.CellKey{Tri: int32(tri.Index), Cell: cell}]
		bary := snap.CellCenterBary(cell)
		dst = append(dst, gatherPoint{
			pix:     s.toRaster(tri.InterpolateUV(bary)),
			deltas:  cv.Deltas,
			samples: cv.Samples,
		})
	}
	return dst
}

// gather fills vals with the combined cell samples nearest to the texel,
// using a cone filter over the furthest selected sample. A triangle with no
// recorded cells bakes to zero: covered but untouched surface.
func (s *Synthesizer) gather(vals []float64, texel geom.Vec2, points []gatherPoint) {
	for i := range vals {
		vals[i] = 0
	}
	if len(points) == 0 {
		return
	}

	nearest := nearestPoints(texel, points, gatherCount)
	rmax := 0.0
	for _, p := range nearest {
		if d := p.pix.Sub(texel).Len(); d > rmax {
			rmax = d
		}
	}

	switch s.combine {
	case CombineMax:
		for m := range vals {
			best := math.Inf(-1)
			for _, p := range nearest {
				if p.deltas[m] > best {
					best = p.deltas[m]
				}
			}
			vals[m] = best
		}
	default:
		var wsum float64
		for _, p := range nearest {
			w := 1.0
			if rmax > 0 {
				w = 1 - p.pix.Sub(texel).Len()/(gatherRadiusScale*rmax)
			}
			if s.combine == CombineWeighted {
				w *= float64(p.samples)
			}
			if w <= 0 {
				continue
			}
			wsum += w
			for m := range vals {
				vals[m] += w * p.deltas[m]
			}
		}
		if wsum > 0 {
			for m := range vals {
				vals[m] /= wsum
			}
		}
	}
}

// nearestPoints returns up to k points closest to the texel, stable for equal
// distances.
func nearestPoints(texel geom.Vec2, points []gatherPoint, k int) []gatherPoint {
	if len(points) <= k {
		return points
	}
	idx := make([]int, len(points))
	dist := make([]float64, len(points))
	for i := range points {
		idx[i] = i
		dist[i] = points[i].pix.Sub(texel).LenSq()
	}
	sort.SliceStable(idx, func(a, b int) bool { return dist[idx[a]] < dist[idx[b]] })
	out := make([]gatherPoint, k)
	for i := 0; i < k; i++ {
		out[i] = points[idx[i]]
	}
	return out
}

// dilate grows known texels outward for the configured number of passes,
// filling gaps between UV triangles. A texel only takes values from neighbors
// of a single island, so dilation never bleeds across seams, and it never
// overwrites a texel that already holds surface data.
func (s *Synthesizer) dilate(buffers []*Buffer, owner []int32) int {
	if s.dilation <= 0 || len(buffers) == 0 {
		return 0
	}
	w, h := s.width, s.height
	known := buffers[0].Known
	filled := 0

	var offsets = [8][2]int{
		{-1, -1}, {0, -1}, {1, -1},
		{-1, 0}, {1, 0},
		{-1, 1}, {0, 1}, {1, 1},
	}

	vals := make([]float64, len(buffers))
	for pass := 0; pass < s.dilation; pass++ {
		prev := make([]bool, len(known))
		copy(prev, known)

		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				idx := y*w + x
				if prev[idx] {
					continue
				}

				// Take the island of the first known neighbor in scan order
				// and average only neighbors belonging to it.
				island := int32(-1)
				n := 0
				for i := range vals {
					vals[i] = 0
				}
				for _, off := range offsets {
					nx, ny := x+off[0], y+off[1]
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					nidx := ny*w + nx
					if !prev[nidx] {
						continue
					}
					if island < 0 {
						island = owner[nidx]
					}
					if owner[nidx] != island {
						continue
					}
					n++
					for m, buf := range buffers {
						vals[m] += buf.Data[nidx]
					}
				}
				if n == 0 {
					continue
				}
				for m, buf := range buffers {
					buf.Data[idx] = vals[m] / float64(n)
					buf.Known[idx] = true
				}
				owner[idx] = island
				filled++
			}
		}
	}
	return filled
}

// islandSet is a union-find over mesh vertex indices. Triangles sharing a
// vertex index share UVs there, so connected components are exactly the UV
// islands: seams duplicate vertices and break the link.
type islandSet struct {
	parent []int32
}

func buildIslands(mesh *geom.Mesh) *islandSet {
	set := &islandSet{parent: make([]int32, len(mesh.Vertices))}
	for i := range set.parent {
		set.parent[i] = int32(i)
	}
	for _, tri := range mesh.Triangles {
		set.union(tri[0], tri[1])
		set.union(tri[1], tri[2])
	}
	return set
}

func (s *islandSet) find(v int) int32 {
	root := int32(v)
	for s.parent[root] != root {
		root = s.parent[root]
	}
	for int32(v) != root {
		v, s.parent[v] = int(s.parent[v]), root
	}
	return root
}

func (s *islandSet) union(a, b int) {
	ra, rb := s.find(a), s.find(b)
	if ra != rb {
		s.parent[rb] = ra
	}
}

// count reports the number of islands among vertices actually referenced by
// triangles.
func (s *islandSet) count(mesh *geom.Mesh) int {
	roots := make(map[int32]struct{})
	for _, tri := range mesh.Triangles {
		roots[s.find(tri[0])] = struct{}{}
	}
	return len(roots)
}
