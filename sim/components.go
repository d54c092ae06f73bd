// Package sim contains the particle transport engine and the simulation
// driver that advances weathering state on a mesh surface.
package sim

import (
	"math/rand"

	"github.com/pthm-cable/patina/geom"
)

// Position is a particle's resolved location on the surface.
type Position struct {
	Point geom.SurfacePoint
}

// Motion holds a particle's direction hint, step counter and identity.
// ID is the emission order within the current iteration; deltas are committed
// in ID order so results do not depend on worker scheduling.
type Motion struct {
	Dir   geom.Vec3
	Steps int32
	ID    uint32

	// Rng is the particle's private random stream, derived from
	// (seed, iteration, ID). Exactly one worker touches it per step.
	Rng *rand.Rand
}

// Payload is the material mass a particle carries, indexed by material
// channel.
type Payload struct {
	Carried []float64
}

// Energy is a particle's remaining energy budget. A particle with
// Alive == false is swept after the current step.
type Energy struct {
	Remaining float64
	Alive     bool
}

// deriveSeed produces a per-particle seed from the run seed, the iteration
// index and the particle's emission ID. SplitMix64 finalizer keeps nearby
// inputs uncorrelated.
func deriveSeed(seed int64, iteration int, id uint32) int64 {
	z := uint64(seed) ^ (uint64(iteration)+1)*0x9E3779B97F4A7C15 ^ (uint64(id)+1)*0xBF58476D1CE4E5B9
	z ^= z >> 30
	z *= 0xBF58476D1CE4E5B9
	z ^= z >> 27
	z *= 0x94D049BB133111EB
	z ^= z >> 31
	return int64(z)
}
