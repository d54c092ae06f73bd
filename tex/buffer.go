// Package tex synthesizes per-material texture maps from accumulated surface
// state, rasterizing the mesh UV layout and gathering cell values per texel.
package tex

// Buffer is one baked scalar texture channel. Data is row-major with the
// origin at the top-left texel. Known marks texels covered by the UV layout
// or filled by dilation; everything else holds no surface information.
type Buffer struct {
	Name   string
	Width  int
	Height int
	Data   []float64
	Known  []bool
}

// NewBuffer allocates a zeroed buffer.
func NewBuffer(name string, width, height int) *Buffer {
	return &Buffer{
		Name:   name,
		Width:  width,
		Height: height,
		Data:   make([]float64, width*height),
		Known:  make([]bool, width*height),
	}
}

// At returns the value at (x, y) and whether it is known. Out-of-range
// coordinates are unknown.
func (b *Buffer) At(x, y int) (float64, bool) {
	if x < 0 || x >= b.Width || y < 0 || y >= b.Height {
		return 0, false
	}
	i := y*b.Width + x
	return b.Data[i], b.Known[i]
}

// Set writes a known value at (x, y).
func (b *Buffer) Set(x, y int, v float64) {
	if x < 0 || x >= b.Width || y < 0 || y >= b.Height {
		return
	}
	i := y*b.Width + x
	b.Data[i] = v
	b.Known[i] = true
}

// Range returns the minimum and maximum known values, or (0, 0) when no texel
// is known. Used for display normalization.
func (b *Buffer) Range() (lo, hi float64) {
	first := true
	for i, known := range b.Known {
		if !known {
			continue
		}
		v := b.Data[i]
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
