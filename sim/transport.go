package sim

import (
	"errors"
	"math/rand"

	"github.com/pthm-cable/patina/config"
	"github.com/pthm-cable/patina/geom"
	"github.com/pthm-cable/patina/surface"
)

// Outcome classifies what happened to a particle during a step.
type Outcome uint8

const (
	// OutcomeLive means the particle survived the step.
	OutcomeLive Outcome = iota
	// OutcomeDecayed means the energy budget ran out.
	OutcomeDecayed
	// OutcomeExited means the particle left the mesh bounds.
	OutcomeExited
	// OutcomeMaxSteps means the step cap was reached.
	OutcomeMaxSteps
)

// delta is one pending accumulator write produced during a step.
type delta struct {
	tri      int32
	bary     [3]float64
	material int
	amount   float64
}

// stepResult captures everything a step computed, to be applied after the
// parallel phase in emission order.
type stepResult struct {
	next    geom.SurfacePoint
	dir     geom.Vec3
	energy  float64
	steps   int32
	carried []float64
	deltas  []delta
	outcome Outcome
	eroded  float64 // substrate mass picked up this step
	settled float64 // carried mass written to the surface this step
	decayed float64 // carried mass evaporated this step
}

// particleSnapshot is the read-only state a worker needs to step one particle.
type particleSnapshot struct {
	id      uint32
	point   geom.SurfacePoint
	dir     geom.Vec3
	steps   int32
	energy  float64
	carried []float64
	rng     *rand.Rand
}

// Engine advances particles across the surface, applying the interaction
// rules in fixed order: erosion, then deposition, then decay. Step is pure
// with respect to shared state; the driver commits results afterwards.
type Engine struct {
	index     *geom.SurfaceIndex
	materials []config.MaterialConfig
	gravity   geom.Vec3
	stepLen   float64
	decay     float64
	maxSteps  int32
	hardness  *HardnessField

	// prev is the accumulator state committed at the last iteration
	// boundary. Erosion reads it so already-eroded areas erode slower.
	// Never written during an iteration.
	prev         *surface.Snapshot
	cellsPerAxis int
}

// NewEngine builds a transport engine over the given surface index.
func NewEngine(index *geom.SurfaceIndex, cfg *config.Config, hardness *HardnessField) *Engine {
	g := cfg.Transport.Gravity
	return &Engine{
		index:        index,
		materials:    cfg.Materials,
		gravity:      geom.Vec3{X: g[0], Y: g[1], Z: g[2]},
		stepLen:      cfg.Transport.StepLength,
		decay:        cfg.Transport.EnergyDecay,
		maxSteps:     int32(cfg.Transport.MaxSteps),
		hardness:     hardness,
		cellsPerAxis: cfg.Surface.CellsPerAxis,
	}
}

// SetCommitted installs the accumulator snapshot taken at the iteration
// boundary. May be nil for the first iteration.
func (e *Engine) SetCommitted(snap *surface.Snapshot) {
	e.prev = snap
}

// Step advances one particle and fills out. It touches no shared mutable
// state: all effects are returned as pending deltas.
func (e *Engine) Step(p *particleSnapshot, out *stepResult) {
	out.deltas = out.deltas[:0]
	out.eroded = 0
	out.settled = 0
	out.decayed = 0
	out.outcome = OutcomeLive

	if cap(out.carried) < len(p.carried) {
		out.carried = make([]float64, len(p.carried))
	}
	out.carried = out.carried[:len(p.carried)]
	copy(out.carried, p.carried)

	// 1. Flow direction: gravity projected onto the tangent plane, with
	// deterministic fallbacks for orthogonal incidence.
	tri := e.index.TriangleAt(p.point.Tri)
	dir := tri.ProjectToTangent(e.gravity).Normalized()
	if dir.IsZero() {
		dir = tri.ProjectToTangent(p.dir).Normalized()
	}
	if dir.IsZero() {
		dir = tri.FallbackFlowDirection()
	}

	// 2. Bounded step, re-resolving the surface point. Leaving the mesh
	// terminates the particle; its carried mass is discarded.
	target := p.point.Position.Add(dir.Scale(e.stepLen))
	next, err := e.index.NearestSurfacePoint(target)
	if errors.Is(err, geom.ErrOutOfBounds) {
		out.outcome = OutcomeExited
		out.next = p.point
		out.dir = dir
		out.energy = p.energy
		out.steps = p.steps
		return
	}

	// 3a. Erosion: remove substrate proportional to energy, the material
	// erosion rate and local erodibility; picked-up mass joins the payload.
	for m := range e.materials {
		rate := e.materials[m].ErosionRate
		if rate <= 0 {
			continue
		}
		erode := rate * p.energy * e.hardness.Erodibility(next.Position) * e.erosionBias(next, m)
		if erode <= 0 {
			continue
		}
		out.deltas = append(out.deltas, delta{
			tri:      int32(next.Tri),
			bary:     next.Bary,
			material: m,
			amount:   -erode,
		})
		out.carried[m] += erode
		out.eroded += erode
	}

	// 3b. Deposition: settle a fraction of the carried material.
	for m := range e.materials {
		mat := &e.materials[m]
		if out.carried[m] <= 0 || mat.DepositionProbability <= 0 {
			continue
		}
		if p.rng.Float64() >= mat.DepositionProbability {
			continue
		}
		amount := out.carried[m] * mat.DepositionFraction
		if amount <= 0 {
			continue
		}
		out.carried[m] -= amount
		out.settled += amount
		out.deltas = append(out.deltas, delta{
			tri:      int32(next.Tri),
			bary:     next.Bary,
			material: m,
			amount:   amount,
		})
	}

	// 3c. Decay: drain energy and evaporate carried material.
	energy := p.energy - e.decay
	for m := range e.materials {
		if r := e.materials[m].DecayRate; r > 0 && out.carried[m] > 0 {
			lost := out.carried[m] * r
			out.carried[m] -= lost
			out.decayed += lost
		}
	}

	steps := p.steps + 1
	switch {
	case energy <= 0:
		out.outcome = OutcomeDecayed
	case steps >= e.maxSteps:
		out.outcome = OutcomeMaxSteps
	}

	out.next = next
	out.dir = dir
	out.energy = energy
	out.steps = steps
}

// erosionBias dampens erosion where previous iterations already removed
// substrate. Fresh surface has bias 1.
func (e *Engine) erosionBias(sp geom.SurfacePoint, material int) float64 {
	if e.prev == nil {
		return 1
	}
	v := e.prev.Value(int32(sp.Tri), quantizeBary(sp.Bary, e.cellsPerAxis), material)
	if v >= 0 {
		return 1
	}
	return 1 / (1 - v)
}

// quantizeBary mirrors the accumulator's cell quantization so the engine can
// read committed state without holding an accumulator reference.
func quantizeBary(bary [3]float64, q int) uint16 {
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
	if i+j > q-1 {
		j = q - 1 - i
	}
	return uint16(i*q + j)
}
