package tex

import (
	"image/color"
	"sort"
)

// Segment anchors a color at a position along a ramp, positions in [0, 1].
type Segment struct {
	Pos   float64
	Color color.RGBA
}

// Ramp maps scalar values to colors by interpolating between segments.
// Values outside the segment range clamp to the end colors.
type Ramp struct {
	segments []Segment
}

// NewRamp builds a ramp from segments, sorting them by position. An empty
// segment list yields a grayscale ramp.
func NewRamp(segments ...Segment) *Ramp {
	if len(segments) == 0 {
		segments = []Segment{
			{Pos: 0, Color: color.RGBA{0, 0, 0, 255}},
			{Pos: 1, Color: color.RGBA{255, 255, 255, 255}},
		}
	}
	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Pos < sorted[b].Pos })
	return &Ramp{segments: sorted}
}

// ColorAt returns the interpolated color for v.
func (r *Ramp) ColorAt(v float64) color.RGBA {
	segs := r.segments
	if v <= segs[0].Pos {
		return segs[0].Color
	}
	last := segs[len(segs)-1]
	if v >= last.Pos {
		return last.Color
	}
	for i := 1; i < len(segs); i++ {
		if v > segs[i].Pos {
			continue
		}
		lo, hi := segs[i-1], segs[i]
		span := hi.Pos - lo.Pos
		if span <= 0 {
			return hi.Color
		}
		t := (v - lo.Pos) / span
		return color.RGBA{
			R: lerpByte(lo.Color.R, hi.Color.R, t),
			G: lerpByte(lo.Color.G, hi.Color.G, t),
			B: lerpByte(lo.Color.B, hi.Color.B, t),
			A: lerpByte(lo.Color.A, hi.Color.A, t),
		}
	}
	return last.Color
}

func lerpByte(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}
