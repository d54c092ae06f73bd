package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync/atomic"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/patina/config"
	"github.com/pthm-cable/patina/geom"
	"github.com/pthm-cable/patina/surface"
	"github.com/pthm-cable/patina/telemetry"
	"github.com/pthm-cable/patina/tex"
)

// State is the driver lifecycle phase.
type State int

const (
	// StateConfigured means Run has not started yet.
	StateConfigured State = iota
	// StateRunning means the iteration loop is active.
	StateRunning
	// StateCompleted means the run finished and the result was baked.
	StateCompleted
)

// ErrAlreadyRun is returned when Run is called on a driver that already ran.
var ErrAlreadyRun = errors.New("sim: driver already ran")

// emitterSeedSalt separates the emission sampling streams from the
// per-particle streams derived from the same run seed.
const emitterSeedSalt = 0x632be59b

// Result is everything a completed run produces.
type Result struct {
	Buffers  []*tex.Buffer
	Snapshot *surface.Snapshot
	Stats    []telemetry.IterationStats
	Bake     tex.BakeStats
}

// Driver owns a full simulation run: it emits particles, steps them to
// termination each iteration, applies aging rules at iteration boundaries and
// bakes the final snapshot exactly once.
type Driver struct {
	cfg      *config.Config
	index    *geom.SurfaceIndex
	engine   *Engine
	acc      *surface.Accumulator
	emitters []*Emitter
	output   *telemetry.OutputManager

	world  *ecs.World
	mapper *ecs.Map4[Position, Motion, Payload, Energy]
	filter *ecs.Filter4[Position, Motion, Payload, Energy]

	posMap     *ecs.Map1[Position]
	motionMap  *ecs.Map1[Motion]
	payloadMap *ecs.Map1[Payload]
	energyMap  *ecs.Map1[Energy]

	parallel  *parallelState
	collector *telemetry.Collector

	seed  int64
	state State
	stop  atomic.Bool
}

// NewDriver wires a driver over a built surface index. The output manager may
// be nil to disable structured output.
func NewDriver(index *geom.SurfaceIndex, cfg *config.Config, output *telemetry.OutputManager) *Driver {
	world := ecs.NewWorld()
	engine := NewEngine(index, cfg, NewHardnessField(cfg.Surface.Hardness, cfg.Simulation.Seed))

	emitters := make([]*Emitter, len(cfg.Emitters))
	for i, ec := range cfg.Emitters {
		emitters[i] = NewEmitter(ec, cfg.Derived.MaterialIndex)
	}

	return &Driver{
		cfg:        cfg,
		index:      index,
		engine:     engine,
		acc:        surface.NewAccumulator(len(cfg.Materials), cfg.Surface.CellsPerAxis),
		emitters:   emitters,
		output:     output,
		world:      world,
		mapper:     ecs.NewMap4[Position, Motion, Payload, Energy](world),
		filter:     ecs.NewFilter4[Position, Motion, Payload, Energy](world),
		posMap:     ecs.NewMap1[Position](world),
		motionMap:  ecs.NewMap1[Motion](world),
		payloadMap: ecs.NewMap1[Payload](world),
		energyMap:  ecs.NewMap1[Energy](world),
		parallel:   newParallelState(engine),
		collector:  telemetry.NewCollector(),
		seed:       cfg.Simulation.Seed,
	}
}

// State returns the driver lifecycle phase.
func (d *Driver) State() State {
	return d.state
}

// RequestStop asks the run to finish early. Safe from any goroutine; the
// driver honors it at the next iteration boundary, so the accumulated state
// stays consistent and the final bake still happens.
func (d *Driver) RequestStop() {
	d.stop.Store(true)
}

// Run executes the configured number of iterations and bakes the result.
// Cancelling ctx behaves like RequestStop: the current iteration completes,
// then the run finalizes.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	if d.state != StateConfigured {
		return nil, ErrAlreadyRun
	}
	d.state = StateRunning
	defer d.parallel.stopWorkers()

	stats := make([]telemetry.IterationStats, 0, d.cfg.Simulation.Iterations)

	for iter := 0; iter < d.cfg.Simulation.Iterations; iter++ {
		if d.stop.Load() || ctx.Err() != nil {
			slog.Info("stopping early", "iteration", iter)
			break
		}

		st, err := d.runIteration(iter)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iter, err)
		}
		if d.cfg.Telemetry.LogIterations {
			slog.Info("iteration complete", "stats", st)
		}
		if err := d.output.WriteIteration(st); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}

	snap := d.acc.Snapshot()

	synth, err := tex.NewSynthesizer(d.index, d.cfg.Texture)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(d.cfg.Materials))
	for i, m := range d.cfg.Materials {
		names[i] = m.Name
	}
	buffers, bake, err := synth.Bake(snap, names)
	if err != nil {
		return nil, err
	}
	slog.Info("bake complete",
		"covered_texels", bake.CoveredTexels,
		"dilated_texels", bake.DilatedTexels,
		"unknown_texels", bake.UnknownTexels,
		"unmappable_triangles", bake.UnmappableTriangles,
		"islands", bake.Islands,
	)

	d.state = StateCompleted
	return &Result{
		Buffers:  buffers,
		Snapshot: snap,
		Stats:    stats,
		Bake:     bake,
	}, nil
}

// runIteration emits one batch of particles and steps them all to
// termination, then applies the aging rules and commits the snapshot the next
// iteration's erosion bias reads.
func (d *Driver) runIteration(iter int) (telemetry.IterationStats, error) {
	d.collector.Begin(iter)

	var carriedAtEnd []float64

	d.emit(iter)
	for d.stepOnce(&carriedAtEnd) {
	}

	for _, rule := range d.cfg.Rules {
		dst := d.cfg.Derived.MaterialIndex[rule.Write]
		src := d.cfg.Derived.MaterialIndex[rule.Read]
		d.acc.ApplyRule(dst, src, rule.Rate)
	}

	snap := d.acc.Snapshot()
	d.engine.SetCommitted(snap)

	return d.collector.Flush(carriedAtEnd, snap.TouchedCells()), nil
}

// emit spawns this iteration's particles. Emission IDs restart at zero each
// iteration and fix both the particle's random stream and the order its
// effects are committed in.
func (d *Driver) emit(iter int) {
	var id uint32
	var emissions []Emission

	for ei, em := range d.emitters {
		rng := rand.New(rand.NewSource(deriveSeed(d.seed^emitterSeedSalt, iter, uint32(ei))))
		var misses int
		emissions, misses = em.Emit(emissions[:0], d.index, rng)
		d.collector.RecordEmission(len(emissions), misses, float64(len(emissions))*em.TotalPayloadMass())

		for _, e := range emissions {
			pos := Position{Point: e.Point}
			motion := Motion{
				ID:  id,
				Rng: rand.New(rand.NewSource(deriveSeed(d.seed, iter, id))),
			}
			payload := Payload{Carried: e.Carried}
			energy := Energy{Remaining: e.Energy, Alive: true}
			d.mapper.NewEntity(&pos, &motion, &payload, &energy)
			id++
		}
	}
}

// stepOnce advances every live particle one step and commits the results in
// emission-ID order. Returns false once no live particles remain.
func (d *Driver) stepOnce(carriedAtEnd *[]float64) bool {
	// Phase A: snapshot live particles, ordered by emission ID so the apply
	// phase is independent of ECS storage order.
	d.parallel.snapshots = d.parallel.snapshots[:0]
	entities := make([]ecs.Entity, 0, 512)

	query := d.filter.Query()
	for query.Next() {
		pos, motion, payload, energy := query.Get()
		if !energy.Alive {
			continue
		}
		d.parallel.snapshots = append(d.parallel.snapshots, particleSnapshot{
			id:      motion.ID,
			point:   pos.Point,
			dir:     motion.Dir,
			steps:   motion.Steps,
			energy:  energy.Remaining,
			carried: payload.Carried,
			rng:     motion.Rng,
		})
		entities = append(entities, query.Entity())
	}
	if len(d.parallel.snapshots) == 0 {
		return false
	}

	order := make([]int, len(d.parallel.snapshots))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return d.parallel.snapshots[order[a]].id < d.parallel.snapshots[order[b]].id
	})

	// Phase B: step in parallel. Workers never touch the accumulator.
	d.parallel.run()

	// Phase C: commit single-threaded in emission-ID order.
	var dead []ecs.Entity
	for _, i := range order {
		res := &d.parallel.results[i]
		entity := entities[i]

		for _, dl := range res.deltas {
			d.acc.Add(dl.tri, dl.bary, dl.material, dl.amount)
		}

		pos := d.posMap.Get(entity)
		motion := d.motionMap.Get(entity)
		payload := d.payloadMap.Get(entity)
		energy := d.energyMap.Get(entity)

		pos.Point = res.next
		motion.Dir = res.dir
		motion.Steps = res.steps
		payload.Carried = append(payload.Carried[:0], res.carried...)
		energy.Remaining = res.energy

		if res.outcome == OutcomeExited {
			// The exiting particle's payload leaves the system.
			d.collector.RecordExited(sum(res.carried))
		} else {
			d.collector.RecordStep(res.eroded, res.settled, res.decayed)
		}

		switch res.outcome {
		case OutcomeDecayed:
			d.collector.RecordDecayed()
		case OutcomeMaxSteps:
			d.collector.RecordMaxSteps()
		}

		if res.outcome != OutcomeLive {
			energy.Alive = false
			dead = append(dead, entity)
			*carriedAtEnd = append(*carriedAtEnd, sum(res.carried))
		}
	}

	for _, entity := range dead {
		d.mapper.Remove(entity)
	}
	return len(dead) < len(entities)
}

func sum(vals []float64) float64 {
	var total float64
	for _, v := range vals {
		total += v
	}
	return total
}
