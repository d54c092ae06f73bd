package sim

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/patina/config"
	"github.com/pthm-cable/patina/geom"
)

// Emission is a freshly emitted particle, projected onto the surface and
// ready to be spawned by the driver.
type Emission struct {
	Point   geom.SurfacePoint
	Energy  float64
	Carried []float64
}

// Emitter produces particles for one configured emission region.
type Emitter struct {
	shape    string
	position geom.Vec3
	radius   float64
	count    int
	energy   float64
	payload  []float64 // per material channel
}

// NewEmitter resolves an emitter config against the material table.
func NewEmitter(cfg config.EmitterConfig, materialIndex map[string]int) *Emitter {
	payload := make([]float64, len(materialIndex))
	for name, mass := range cfg.Payload {
		payload[materialIndex[name]] = mass
	}
	return &Emitter{
		shape:    cfg.Shape,
		position: geom.Vec3{X: cfg.Position[0], Y: cfg.Position[1], Z: cfg.Position[2]},
		radius:   cfg.Radius,
		count:    cfg.Count,
		energy:   cfg.Energy,
		payload:  payload,
	}
}

// Count returns the number of particles emitted per iteration.
func (e *Emitter) Count() int {
	return e.count
}

// Emit samples the region and projects each sample onto the surface,
// appending successful emissions to dst. Samples that miss the surface are
// dropped and counted; their payload never enters the system.
func (e *Emitter) Emit(dst []Emission, index *geom.SurfaceIndex, rng *rand.Rand) (out []Emission, misses int) {
	out = dst
	for i := 0; i < e.count; i++ {
		p := e.samplePoint(rng)
		sp, err := index.NearestSurfacePoint(p)
		if err != nil {
			misses++
			continue
		}
		carried := make([]float64, len(e.payload))
		copy(carried, e.payload)
		out = append(out, Emission{
			Point:   sp,
			Energy:  e.energy,
			Carried: carried,
		})
	}
	return out, misses
}

// samplePoint picks one world-space sample inside the region. Spheres sample
// uniformly by volume.
func (e *Emitter) samplePoint(rng *rand.Rand) geom.Vec3 {
	if e.shape == "point" || e.radius <= 0 {
		return e.position
	}
	// Uniform direction via normal deviates, uniform radius via cube root.
	for {
		d := geom.Vec3{
			X: rng.NormFloat64(),
			Y: rng.NormFloat64(),
			Z: rng.NormFloat64(),
		}
		if d.IsZero() {
			continue
		}
		r := e.radius * math.Cbrt(rng.Float64())
		return e.position.Add(d.Normalized().Scale(r))
	}
}

// TotalPayloadMass returns the carried mass one particle starts with, summed
// over material channels. Used for the injection ledger.
func (e *Emitter) TotalPayloadMass() float64 {
	var total float64
	for _, m := range e.payload {
		total += m
	}
	return total
}
