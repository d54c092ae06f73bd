// Package telemetry aggregates per-iteration simulation statistics and writes
// them to structured output.
package telemetry

import (
	"log/slog"

	"gonum.org/v1/gonum/stat"
)

// IterationStats holds aggregated statistics for one simulation iteration.
type IterationStats struct {
	Iteration int `csv:"iteration"`

	// Emission
	Emitted        int `csv:"emitted"`
	EmissionMisses int `csv:"emission_misses"`

	// Transport
	Steps              int `csv:"steps"`
	TerminatedDecayed  int `csv:"terminated_decayed"`
	TerminatedExited   int `csv:"terminated_exited"`
	TerminatedMaxSteps int `csv:"terminated_max_steps"`

	// Mass ledger (for conservation validation)
	MassInjected  float64 `csv:"mass_injected"`  // payload of particles that landed
	MassEroded    float64 `csv:"mass_eroded"`    // substrate picked up
	MassDeposited float64 `csv:"mass_deposited"` // carried mass settled
	MassDecayed   float64 `csv:"mass_decayed"`   // carried mass evaporated
	MassDiscarded float64 `csv:"mass_discarded"` // carried mass lost with exiting particles

	// Carried-mass distribution at iteration end
	CarriedMean float64 `csv:"carried_mean"`
	CarriedStd  float64 `csv:"carried_std"`

	TouchedCells int     `csv:"touched_cells"`
	DurationSec  float64 `csv:"duration_sec"`
}

// ComputeCarriedStats fills the carried-mass distribution fields from the
// total carried mass of each particle still alive at iteration end.
func (s *IterationStats) ComputeCarriedStats(carried []float64) {
	if len(carried) == 0 {
		s.CarriedMean = 0
		s.CarriedStd = 0
		return
	}
	s.CarriedMean = stat.Mean(carried, nil)
	if len(carried) > 1 {
		s.CarriedStd = stat.StdDev(carried, nil)
	}
}

// LogValue implements slog.LogValuer with the fields worth seeing per
// iteration in the run log.
func (s IterationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("iteration", s.Iteration),
		slog.Int("emitted", s.Emitted),
		slog.Int("misses", s.EmissionMisses),
		slog.Int("steps", s.Steps),
		slog.Int("decayed", s.TerminatedDecayed),
		slog.Int("exited", s.TerminatedExited),
		slog.Int("max_steps", s.TerminatedMaxSteps),
		slog.Float64("mass_injected", s.MassInjected),
		slog.Float64("mass_deposited", s.MassDeposited),
		slog.Int("touched_cells", s.TouchedCells),
		slog.Float64("duration_sec", s.DurationSec),
	)
}
