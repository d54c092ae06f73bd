// Package config provides configuration loading, validation and access for
// the weathering simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Transport  TransportConfig  `yaml:"transport"`
	Surface    SurfaceConfig    `yaml:"surface"`
	Materials  []MaterialConfig `yaml:"materials"`
	Emitters   []EmitterConfig  `yaml:"emitters"`
	Rules      []RuleConfig     `yaml:"rules"`
	Texture    TextureConfig    `yaml:"texture"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds iteration and emission schedule parameters.
type SimulationConfig struct {
	Iterations int   `yaml:"iterations"`
	Seed       int64 `yaml:"seed"` // 0 = time-based, chosen by the caller
}

// TransportConfig holds particle stepping parameters.
type TransportConfig struct {
	Gravity     []float64 `yaml:"gravity"`      // world-space flow vector
	StepLength  float64   `yaml:"step_length"`  // bounded step distance per tick
	EnergyDecay float64   `yaml:"energy_decay"` // energy drained per step
	MaxSteps    int       `yaml:"max_steps"`    // hard cap against loops on pathological geometry
}

// SurfaceConfig holds accumulator discretization parameters.
type SurfaceConfig struct {
	CellsPerAxis int            `yaml:"cells_per_axis"` // barycentric quantization per triangle edge
	Hardness     HardnessConfig `yaml:"hardness"`
}

// HardnessConfig holds the substrate resistance noise field parameters.
// Harder regions resist erosion.
type HardnessConfig struct {
	Enabled bool    `yaml:"enabled"`
	Scale   float64 `yaml:"scale"` // noise frequency in world units
	Min     float64 `yaml:"min"`   // softest multiplier
	Max     float64 `yaml:"max"`   // hardest multiplier
}

// MaterialConfig holds per-material transport rates.
type MaterialConfig struct {
	Name                  string  `yaml:"name"`
	ErosionRate           float64 `yaml:"erosion_rate"`           // substrate removed per unit energy per step
	DepositionProbability float64 `yaml:"deposition_probability"` // chance per step to settle carried material
	DepositionFraction    float64 `yaml:"deposition_fraction"`    // carried fraction written on a deposit
	DecayRate             float64 `yaml:"decay_rate"`             // carried fraction lost per step (evaporation)
}

// EmitterConfig describes one particle emission region.
type EmitterConfig struct {
	Shape    string             `yaml:"shape"`    // "point" or "sphere"
	Position []float64          `yaml:"position"` // region center
	Radius   float64            `yaml:"radius"`   // sphere radius, ignored for points
	Count    int                `yaml:"count"`    // particles emitted per iteration
	Energy   float64            `yaml:"energy"`   // initial energy budget per particle
	Payload  map[string]float64 `yaml:"payload"`  // initial carried mass per material name
}

// RuleConfig describes an iteration-boundary aging rule:
// dst = max(0, dst + rate*src).
type RuleConfig struct {
	Write string  `yaml:"write"`
	Read  string  `yaml:"read"`
	Rate  float64 `yaml:"rate"`
}

// TextureConfig holds bake output parameters.
type TextureConfig struct {
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	Combine        string  `yaml:"combine"` // "mean", "max" or "weighted"
	Padding        float64 `yaml:"padding"` // UV triangle padding in texels
	DilationPasses int     `yaml:"dilation_passes"`
}

// TelemetryConfig holds statistics output parameters.
type TelemetryConfig struct {
	LogIterations bool `yaml:"log_iterations"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	MaterialIndex map[string]int // name -> material channel
	TotalEmission int            // particles per iteration over all emitters
}

// ConfigError reports a rejected configuration value. Configuration failures
// are fatal: no simulation starts with an invalid config.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if
// path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. The result is validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.MaterialIndex = make(map[string]int, len(c.Materials))
	for i, m := range c.Materials {
		c.Derived.MaterialIndex[m.Name] = i
	}

	c.Derived.TotalEmission = 0
	for _, e := range c.Emitters {
		c.Derived.TotalEmission += e.Count
	}
}

// Validate rejects configurations the driver must never run with.
func (c *Config) Validate() error {
	if c.Simulation.Iterations <= 0 {
		return &ConfigError{"simulation.iterations", "must be positive"}
	}
	if c.Transport.StepLength <= 0 {
		return &ConfigError{"transport.step_length", "must be positive"}
	}
	if c.Transport.EnergyDecay <= 0 {
		return &ConfigError{"transport.energy_decay", "must be positive"}
	}
	if c.Transport.MaxSteps <= 0 {
		return &ConfigError{"transport.max_steps", "must be positive"}
	}
	if len(c.Transport.Gravity) != 3 {
		return &ConfigError{"transport.gravity", "must have three components"}
	}
	if len(c.Materials) == 0 {
		return &ConfigError{"materials", "at least one material required"}
	}
	for _, m := range c.Materials {
		if m.Name == "" {
			return &ConfigError{"materials.name", "must not be empty"}
		}
		if m.ErosionRate < 0 {
			return &ConfigError{"materials." + m.Name + ".erosion_rate", "must not be negative"}
		}
		if m.DepositionProbability < 0 || m.DepositionProbability > 1 {
			return &ConfigError{"materials." + m.Name + ".deposition_probability", "must be in [0,1]"}
		}
		if m.DepositionFraction < 0 || m.DepositionFraction > 1 {
			return &ConfigError{"materials." + m.Name + ".deposition_fraction", "must be in [0,1]"}
		}
		if m.DecayRate < 0 || m.DecayRate > 1 {
			return &ConfigError{"materials." + m.Name + ".decay_rate", "must be in [0,1]"}
		}
	}
	if len(c.Emitters) == 0 {
		return &ConfigError{"emitters", "at least one emitter required"}
	}
	for i, e := range c.Emitters {
		field := fmt.Sprintf("emitters[%d]", i)
		if e.Shape != "point" && e.Shape != "sphere" {
			return &ConfigError{field + ".shape", "must be \"point\" or \"sphere\""}
		}
		if len(e.Position) != 3 {
			return &ConfigError{field + ".position", "must have three components"}
		}
		if e.Count <= 0 {
			return &ConfigError{field + ".count", "must be positive"}
		}
		if e.Energy <= 0 {
			return &ConfigError{field + ".energy", "must be positive"}
		}
		for name := range e.Payload {
			if _, ok := c.Derived.MaterialIndex[name]; !ok {
				return &ConfigError{field + ".payload", "unknown material " + name}
			}
		}
	}
	for i, r := range c.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		if _, ok := c.Derived.MaterialIndex[r.Write]; !ok {
			return &ConfigError{field + ".write", "unknown material " + r.Write}
		}
		if _, ok := c.Derived.MaterialIndex[r.Read]; !ok {
			return &ConfigError{field + ".read", "unknown material " + r.Read}
		}
	}
	if c.Texture.Width <= 0 || c.Texture.Height <= 0 {
		return &ConfigError{"texture", "resolution must be positive"}
	}
	switch c.Texture.Combine {
	case "mean", "max", "weighted":
	default:
		return &ConfigError{"texture.combine", "must be \"mean\", \"max\" or \"weighted\""}
	}
	if c.Surface.CellsPerAxis <= 0 {
		return &ConfigError{"surface.cells_per_axis", "must be positive"}
	}
	if c.Surface.Hardness.Enabled && c.Surface.Hardness.Min > c.Surface.Hardness.Max {
		return &ConfigError{"surface.hardness", "min must not exceed max"}
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
