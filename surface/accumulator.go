// Package surface holds the per-surface-point effect state accumulated by
// the transport simulation: net material gained or lost at discretized
// locations on the mesh.
package surface

import "sync"

// shardCount partitions the accumulator by triangle so unrelated updates
// never contend on the same lock.
const shardCount = 64

// CellKey identifies a discretized surface location: an owning triangle and
// a quantized barycentric cell within it.
type CellKey struct {
	Tri  int32
	Cell uint16
}

// Cell holds the accumulated signed deltas per material and the number of
// samples that contributed, for sample-count weighted baking.
type Cell struct {
	Deltas  []float64
	Samples uint32
}

// Accumulator is the only mutably-shared structure of a run. Adds are safe
// from many concurrent workers; updates to the same key serialize on the
// key's shard, so no delta is ever lost. Accumulation is a plain sum, which
// keeps the combined value independent of add order up to float rounding;
// bit-reproducibility additionally requires the caller to commit deltas in a
// deterministic order, which the driver does.
type Accumulator struct {
	materials    int
	cellsPerAxis int
	shards       [shardCount]shard
}

type shard struct {
	mu    sync.Mutex
	cells map[CellKey]*Cell
}

// NewAccumulator creates an accumulator tracking the given number of material
// channels, quantizing barycentric coordinates to cellsPerAxis steps per
// triangle edge.
func NewAccumulator(materials, cellsPerAxis int) *Accumulator {
	if cellsPerAxis < 1 {
		cellsPerAxis = 1
	}
	a := &Accumulator{
		materials:    materials,
		cellsPerAxis: cellsPerAxis,
	}
	for i := range a.shards {
		a.shards[i].cells = make(map[CellKey]*Cell)
	}
	return a
}

// Materials returns the number of tracked material channels.
func (a *Accumulator) Materials() int {
	return a.materials
}

// CellsPerAxis returns the barycentric quantization resolution.
func (a *Accumulator) CellsPerAxis() int {
	return a.cellsPerAxis
}

// Quantize maps barycentric coordinates to a cell id within a triangle.
func (a *Accumulator) Quantize(bary [3]float64) uint16 {
	q := a.cellsPerAxis
	i := int(bary[1] * float64(q))
	j := int(bary[2] * float64(q))
	if i < 0 {
		i = 0
	}
	if j < 0 {
		j = 0
	}
	if i > q-1 {
		i = q - 1
	}
	if j > q-1 {
		j = q - 1
	}
	// Stay inside the barycentric simplex.
	if i+j > q-1 {
		j = q - 1 - i
	}
	return uint16(i*q + j)
}

// CellCenterBary returns barycentric coordinates for the center of a cell.
func (a *Accumulator) CellCenterBary(cell uint16) [3]float64 {
	q := float64(a.cellsPerAxis)
	i := float64(int(cell) / a.cellsPerAxis)
	j := float64(int(cell) % a.cellsPerAxis)
	b1 := (i + 0.5) / q
	b2 := (j + 0.5) / q
	if b1+b2 > 1 {
		s := 1 / (b1 + b2)
		b1 *= s
		b2 *= s
	}
	return [3]float64{1 - b1 - b2, b1, b2}
}

// Add records a signed material delta at the given surface location.
// Negative triangle indices (unresolvable locations) are a silent no-op.
func (a *Accumulator) Add(tri int32, bary [3]float64, material int, delta float64) {
	if tri < 0 || material < 0 || material >= a.materials {
		return
	}
	key := CellKey{Tri: tri, Cell: a.Quantize(bary)}
	s := &a.shards[uint32(tri)%shardCount]

	s.mu.Lock()
	c := s.cells[key]
	if c == nil {
		c = &Cell{Deltas: make([]float64, a.materials)}
		s.cells[key] = c
	}
	c.Deltas[material] += delta
	c.Samples++
	s.mu.Unlock()
}

// Value returns the accumulated delta for a material at a location, or zero
// when nothing was recorded there.
func (a *Accumulator) Value(tri int32, bary [3]float64, material int) float64 {
	if tri < 0 || material < 0 || material >= a.materials {
		return 0
	}
	key := CellKey{Tri: tri, Cell: a.Quantize(bary)}
	s := &a.shards[uint32(tri)%shardCount]

	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.cells[key]; c != nil {
		return c.Deltas[material]
	}
	return 0
}

// ApplyRule applies dst = max(0, dst + rate*src) to every cell. Used for
// iteration-boundary aging rules such as oxidation growing from settled
// water, or evaporation when dst == src and rate is negative.
func (a *Accumulator) ApplyRule(dst, src int, rate float64) {
	if dst < 0 || dst >= a.materials || src < 0 || src >= a.materials {
		return
	}
	for i := range a.shards {
		s := &a.shards[i]
		s.mu.Lock()
		for _, c := range s.cells {
			v := c.Deltas[dst] + rate*c.Deltas[src]
			if v < 0 {
				v = 0
			}
			c.Deltas[dst] = v
		}
		s.mu.Unlock()
	}
}

// Snapshot returns a deep, read-only copy of the accumulated state.
func (a *Accumulator) Snapshot() *Snapshot {
	snap := &Snapshot{
		MaterialCount: a.materials,
		CellsPerAxis:  a.cellsPerAxis,
		Cells:         make(map[CellKey]CellValue),
	}
	for i := range a.shards {
		s := &a.shards[i]
		s.mu.Lock()
		for key, c := range s.cells {
			deltas := make([]float64, len(c.Deltas))
			copy(deltas, c.Deltas)
			snap.Cells[key] = CellValue{Deltas: deltas, Samples: c.Samples}
		}
		s.mu.Unlock()
	}
	return snap
}
