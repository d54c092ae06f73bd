package sim

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/patina/config"
	"github.com/pthm-cable/patina/geom"
)

// HardnessField models spatial variation in substrate resistance. Erosion is
// scaled by the field value, so soft regions weather faster than hard ones.
type HardnessField struct {
	noise    opensimplex.Noise
	scale    float64
	min, max float64
}

// NewHardnessField creates a field from config, or nil when disabled.
func NewHardnessField(cfg config.HardnessConfig, seed int64) *HardnessField {
	if !cfg.Enabled {
		return nil
	}
	return &HardnessField{
		noise: opensimplex.NewNormalized(seed),
		scale: cfg.Scale,
		min:   cfg.Min,
		max:   cfg.Max,
	}
}

// Erodibility returns the erosion multiplier at a world position, in
// [min, max]; hard regions yield values near min. A nil field is uniformly 1.
func (f *HardnessField) Erodibility(p geom.Vec3) float64 {
	if f == nil {
		return 1
	}
	v := f.noise.Eval3(p.X*f.scale, p.Y*f.scale, p.Z*f.scale)
	return f.min + (1-v)*(f.max-f.min)
}
