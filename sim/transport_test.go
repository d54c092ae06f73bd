package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/patina/config"
	"github.com/pthm-cable/patina/geom"
	"github.com/pthm-cable/patina/surface"
)

// flatMesh is one large triangle in the XZ plane. Gravity straight down is
// orthogonal to it, so stepping always uses the fallback direction.
func flatMesh() *geom.Mesh {
	return &geom.Mesh{
		Vertices: []geom.Vertex{
			{Position: geom.Vec3{X: 0, Y: 0, Z: 0}, UV: geom.Vec2{X: 0, Y: 0}},
			{Position: geom.Vec3{X: 10, Y: 0, Z: 0}, UV: geom.Vec2{X: 1, Y: 0}},
			{Position: geom.Vec3{X: 0, Y: 0, Z: 10}, UV: geom.Vec2{X: 0, Y: 1}},
		},
		Triangles: [][3]int{{0, 1, 2}},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	cfg.Surface.Hardness.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, tolerance float64) *Engine {
	t.Helper()
	index := geom.BuildSurfaceIndex(flatMesh(), geom.IndexOptions{Tolerance: tolerance})
	return NewEngine(index, cfg, NewHardnessField(cfg.Surface.Hardness, cfg.Simulation.Seed))
}

func newParticle(engine *Engine, energy float64, carried []float64) *particleSnapshot {
	sp, err := engine.index.NearestSurfacePoint(geom.Vec3{X: 3, Y: 0, Z: 1})
	if err != nil {
		panic(err)
	}
	return &particleSnapshot{
		point:   sp,
		energy:  energy,
		carried: carried,
		rng:     rand.New(rand.NewSource(1)),
	}
}

func TestStepTerminatesAfterEnergyBudget(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transport.EnergyDecay = 0.02
	engine := newTestEngine(t, cfg, 1.0)

	p := newParticle(engine, 1.0, make([]float64, len(cfg.Materials)))
	var res stepResult

	// ceil(1.0 / 0.02) steps, no more, no fewer.
	wantSteps := 50
	for i := 0; i < wantSteps; i++ {
		engine.Step(p, &res)
		if i < wantSteps-1 && res.outcome != OutcomeLive {
			t.Fatalf("terminated at step %d with outcome %v, want %d steps", i+1, res.outcome, wantSteps)
		}
		p.point = res.next
		p.dir = res.dir
		p.steps = res.steps
		p.energy = res.energy
		p.carried = append(p.carried[:0], res.carried...)
	}
	if res.outcome != OutcomeDecayed {
		t.Errorf("outcome = %v after full budget, want OutcomeDecayed", res.outcome)
	}
}

func TestStepUsesFallbackFlowOnOrthogonalGravity(t *testing.T) {
	cfg := testConfig(t)
	engine := newTestEngine(t, cfg, 1.0)

	p := newParticle(engine, 1.0, make([]float64, len(cfg.Materials)))
	var res stepResult
	engine.Step(p, &res)

	want := geom.Vec3{X: -1, Z: 1}.Normalized()
	if math.Abs(res.dir.X-want.X) > 1e-12 || math.Abs(res.dir.Z-want.Z) > 1e-12 {
		t.Errorf("dir = %v, want fallback %v", res.dir, want)
	}

	moved := res.next.Position.Sub(p.point.Position).Len()
	if math.Abs(moved-cfg.Transport.StepLength) > 1e-9 {
		t.Errorf("moved %v, want step length %v", moved, cfg.Transport.StepLength)
	}
}

func TestStepDeposition(t *testing.T) {
	cfg := testConfig(t)
	water := cfg.Derived.MaterialIndex["water"]
	for i := range cfg.Materials {
		cfg.Materials[i].ErosionRate = 0
		cfg.Materials[i].DepositionProbability = 0
		cfg.Materials[i].DecayRate = 0
	}
	cfg.Materials[water].DepositionProbability = 1
	cfg.Materials[water].DepositionFraction = 0.5
	engine := newTestEngine(t, cfg, 1.0)

	carried := make([]float64, len(cfg.Materials))
	carried[water] = 1.0
	p := newParticle(engine, 1.0, carried)

	var res stepResult
	engine.Step(p, &res)

	if math.Abs(res.carried[water]-0.5) > 1e-12 {
		t.Errorf("carried after deposit = %v, want 0.5", res.carried[water])
	}
	if math.Abs(res.settled-0.5) > 1e-12 {
		t.Errorf("settled = %v, want 0.5", res.settled)
	}
	if len(res.deltas) != 1 {
		t.Fatalf("got %d deltas, want 1", len(res.deltas))
	}
	d := res.deltas[0]
	if d.material != water || math.Abs(d.amount-0.5) > 1e-12 {
		t.Errorf("delta = %+v, want +0.5 of water", d)
	}
}

func TestStepErosionPicksUpSubstrate(t *testing.T) {
	cfg := testConfig(t)
	sediment := cfg.Derived.MaterialIndex["sediment"]
	for i := range cfg.Materials {
		cfg.Materials[i].ErosionRate = 0
		cfg.Materials[i].DepositionProbability = 0
		cfg.Materials[i].DecayRate = 0
	}
	cfg.Materials[sediment].ErosionRate = 0.1
	engine := newTestEngine(t, cfg, 1.0)

	p := newParticle(engine, 1.0, make([]float64, len(cfg.Materials)))
	var res stepResult
	engine.Step(p, &res)

	if math.Abs(res.eroded-0.1) > 1e-12 {
		t.Errorf("eroded = %v, want 0.1", res.eroded)
	}
	if math.Abs(res.carried[sediment]-0.1) > 1e-12 {
		t.Errorf("carried = %v, want 0.1", res.carried[sediment])
	}
	if len(res.deltas) != 1 || res.deltas[0].amount >= 0 {
		t.Fatalf("deltas = %+v, want one negative substrate delta", res.deltas)
	}
}

func TestStepErosionBiasSlowsErodedAreas(t *testing.T) {
	cfg := testConfig(t)
	sediment := cfg.Derived.MaterialIndex["sediment"]
	for i := range cfg.Materials {
		cfg.Materials[i].ErosionRate = 0
		cfg.Materials[i].DepositionProbability = 0
		cfg.Materials[i].DecayRate = 0
	}
	cfg.Materials[sediment].ErosionRate = 0.1
	engine := newTestEngine(t, cfg, 1.0)

	p := newParticle(engine, 1.0, make([]float64, len(cfg.Materials)))
	var fresh stepResult
	engine.Step(p, &fresh)

	// Commit a snapshot where the landing cell already lost one mass unit.
	acc := surface.NewAccumulator(len(cfg.Materials), cfg.Surface.CellsPerAxis)
	acc.Add(int32(fresh.next.Tri), fresh.next.Bary, sediment, -1.0)
	engine.SetCommitted(acc.Snapshot())

	var biased stepResult
	engine.Step(p, &biased)

	if math.Abs(biased.eroded-fresh.eroded/2) > 1e-12 {
		t.Errorf("biased erosion = %v, want half of %v", biased.eroded, fresh.eroded)
	}
}

func TestStepDecayEvaporatesCarriedMass(t *testing.T) {
	cfg := testConfig(t)
	water := cfg.Derived.MaterialIndex["water"]
	for i := range cfg.Materials {
		cfg.Materials[i].ErosionRate = 0
		cfg.Materials[i].DepositionProbability = 0
		cfg.Materials[i].DecayRate = 0
	}
	cfg.Materials[water].DecayRate = 0.25
	engine := newTestEngine(t, cfg, 1.0)

	carried := make([]float64, len(cfg.Materials))
	carried[water] = 1.0
	p := newParticle(engine, 1.0, carried)

	var res stepResult
	engine.Step(p, &res)

	if math.Abs(res.carried[water]-0.75) > 1e-12 {
		t.Errorf("carried after decay = %v, want 0.75", res.carried[water])
	}
	if math.Abs(res.decayed-0.25) > 1e-12 {
		t.Errorf("decayed = %v, want 0.25", res.decayed)
	}
}

func TestStepExitsTightTolerance(t *testing.T) {
	cfg := testConfig(t)
	engine := newTestEngine(t, cfg, 0.01)

	// Start at the far corner; the fallback direction points off the mesh
	// and the next step cannot resolve within tolerance.
	sp, err := engine.index.NearestSurfacePoint(geom.Vec3{X: 0, Y: 0, Z: 10})
	if err != nil {
		t.Fatalf("resolving start point: %v", err)
	}
	carried := make([]float64, len(cfg.Materials))
	carried[0] = 1.0
	p := &particleSnapshot{point: sp, energy: 1.0, carried: carried, rng: rand.New(rand.NewSource(1))}

	var res stepResult
	engine.Step(p, &res)

	if res.outcome != OutcomeExited {
		t.Errorf("outcome = %v, want OutcomeExited", res.outcome)
	}
	if len(res.deltas) != 0 {
		t.Errorf("exited step produced %d deltas, want 0", len(res.deltas))
	}
}

func TestStepMaxStepsCap(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transport.EnergyDecay = 1e-9
	cfg.Transport.MaxSteps = 3
	engine := newTestEngine(t, cfg, 1.0)

	p := newParticle(engine, 1.0, make([]float64, len(cfg.Materials)))
	var res stepResult
	for i := 0; i < 3; i++ {
		engine.Step(p, &res)
		p.point = res.next
		p.dir = res.dir
		p.steps = res.steps
		p.energy = res.energy
	}
	if res.outcome != OutcomeMaxSteps {
		t.Errorf("outcome = %v after %d steps, want OutcomeMaxSteps", res.outcome, 3)
	}
}

func TestDeriveSeedStreamsDiffer(t *testing.T) {
	seen := make(map[int64]bool)
	for iter := 0; iter < 4; iter++ {
		for id := uint32(0); id < 256; id++ {
			s := deriveSeed(42, iter, id)
			if seen[s] {
				t.Fatalf("seed collision at iteration %d id %d", iter, id)
			}
			seen[s] = true
		}
	}

	if deriveSeed(42, 0, 0) == deriveSeed(43, 0, 0) {
		t.Error("different run seeds produced the same stream")
	}
}
