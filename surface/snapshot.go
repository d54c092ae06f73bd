package surface

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// CellValue is the immutable state of one accumulator cell.
type CellValue struct {
	Deltas  []float64
	Samples uint32
}

// Snapshot is a read-only view of the accumulator, consumed by the texture
// synthesizer. The same snapshot can be baked at any resolution without
// re-running the simulation.
type Snapshot struct {
	MaterialCount int
	CellsPerAxis  int
	Cells         map[CellKey]CellValue
}

// Value returns the recorded delta for a material at a cell, or zero when
// nothing was recorded there.
func (s *Snapshot) Value(tri int32, cell uint16, material int) float64 {
	c, ok := s.Cells[CellKey{Tri: tri, Cell: cell}]
	if !ok || material < 0 || material >= len(c.Deltas) {
		return 0
	}
	return c.Deltas[material]
}

// TotalMass returns the net accumulated delta for one material over the
// whole surface.
func (s *Snapshot) TotalMass(material int) float64 {
	vals := make([]float64, 0, len(s.Cells))
	for _, c := range s.Cells {
		if material >= 0 && material < len(c.Deltas) {
			vals = append(vals, c.Deltas[material])
		}
	}
	// Sorted summation keeps the result independent of map iteration order.
	sort.Float64s(vals)
	return floats.Sum(vals)
}

// TouchedCells returns the number of cells any particle interacted with.
func (s *Snapshot) TouchedCells() int {
	return len(s.Cells)
}

// CellsOfTriangle returns the cell ids recorded for a triangle, ascending.
func (s *Snapshot) CellsOfTriangle(tri int32) []uint16 {
	var cells []uint16
	for key := range s.Cells {
		if key.Tri == tri {
			cells = append(cells, key.Cell)
		}
	}
	sort.Slice(cells, func(a, b int) bool { return cells[a] < cells[b] })
	return cells
}

// TriangleIndex groups cells by owning triangle for bake-time lookups.
func (s *Snapshot) TriangleIndex() map[int32][]uint16 {
	byTri := make(map[int32][]uint16)
	for key := range s.Cells {
		byTri[key.Tri] = append(byTri[key.Tri], key.Cell)
	}
	for tri := range byTri {
		cells := byTri[tri]
		sort.Slice(cells, func(a, b int) bool { return cells[a] < cells[b] })
	}
	return byTri
}

// CellCenterBary returns barycentric coordinates for the center of a cell.
func (s *Snapshot) CellCenterBary(cell uint16) [3]float64 {
	q := float64(s.CellsPerAxis)
	i := float64(int(cell) / s.CellsPerAxis)
	j := float64(int(cell) % s.CellsPerAxis)
	b1 := (i + 0.5) / q
	b2 := (j + 0.5) / q
	if b1+b2 > 1 {
		sc := 1 / (b1 + b2)
		b1 *= sc
		b2 *= sc
	}
	return [3]float64{1 - b1 - b2, b1, b2}
}

// Equal reports whether two snapshots hold bit-identical state. Used by the
// determinism checks.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s.MaterialCount != o.MaterialCount || s.CellsPerAxis != o.CellsPerAxis {
		return false
	}
	if len(s.Cells) != len(o.Cells) {
		return false
	}
	for key, c := range s.Cells {
		oc, ok := o.Cells[key]
		if !ok || c.Samples != oc.Samples || len(c.Deltas) != len(oc.Deltas) {
			return false
		}
		for i := range c.Deltas {
			if c.Deltas[i] != oc.Deltas[i] {
				return false
			}
		}
	}
	return true
}
