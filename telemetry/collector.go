package telemetry

import "time"

// Collector accumulates events within one iteration and produces
// IterationStats. The driver records events single-threaded during the apply
// phase, so the collector needs no locking.
type Collector struct {
	iteration int
	started   time.Time

	emitted        int
	emissionMisses int
	steps          int
	decayed        int
	exited         int
	maxSteps       int

	massInjected  float64
	massEroded    float64
	massDeposited float64
	massDecayed   float64
	massDiscarded float64
}

// NewCollector creates a collector ready for iteration 0.
func NewCollector() *Collector {
	return &Collector{}
}

// Begin resets counters for a new iteration.
func (c *Collector) Begin(iteration int) {
	*c = Collector{iteration: iteration, started: time.Now()}
}

// RecordEmission records particles placed on the surface and samples that
// missed it, with the payload mass the landed particles brought in.
func (c *Collector) RecordEmission(landed, misses int, injected float64) {
	c.emitted += landed
	c.emissionMisses += misses
	c.massInjected += injected
}

// RecordStep records one particle step and its mass movement.
func (c *Collector) RecordStep(eroded, deposited, decayed float64) {
	c.steps++
	c.massEroded += eroded
	c.massDeposited += deposited
	c.massDecayed += decayed
}

// RecordDecayed records a particle that ran out of energy.
func (c *Collector) RecordDecayed() {
	c.decayed++
}

// RecordExited records a particle that left the surface, with the carried
// mass discarded along with it.
func (c *Collector) RecordExited(carried float64) {
	c.exited++
	c.massDiscarded += carried
}

// RecordMaxSteps records a particle stopped by the step cap.
func (c *Collector) RecordMaxSteps() {
	c.maxSteps++
}

// Flush produces the iteration's stats. Carried-mass distribution and touched
// cell count come from the caller, which still has the live particle set.
func (c *Collector) Flush(carried []float64, touchedCells int) IterationStats {
	stats := IterationStats{
		Iteration:          c.iteration,
		Emitted:            c.emitted,
		EmissionMisses:     c.emissionMisses,
		Steps:              c.steps,
		TerminatedDecayed:  c.decayed,
		TerminatedExited:   c.exited,
		TerminatedMaxSteps: c.maxSteps,
		MassInjected:       c.massInjected,
		MassEroded:         c.massEroded,
		MassDeposited:      c.massDeposited,
		MassDecayed:        c.massDecayed,
		MassDiscarded:      c.massDiscarded,
		TouchedCells:       touchedCells,
		DurationSec:        time.Since(c.started).Seconds(),
	}
	stats.ComputeCarriedStats(carried)
	return stats
}
