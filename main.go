package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pthm-cable/patina/config"
	"github.com/pthm-cable/patina/geom"
	"github.com/pthm-cable/patina/meshio"
	"github.com/pthm-cable/patina/sim"
	"github.com/pthm-cable/patina/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	objPath := flag.String("obj", "", "Path to the OBJ mesh to weather (required)")
	outputDir := flag.String("output-dir", "out", "Output directory for textures, CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "Override config RNG seed (0 = keep config value)")
	resolution := flag.Int("resolution", 0, "Override texture resolution (0 = keep config value)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *objPath == "" {
		slog.Error("missing required -obj flag")
		os.Exit(1)
	}

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}
	if cfg.Simulation.Seed == 0 {
		cfg.Simulation.Seed = time.Now().UnixNano()
	}
	if *resolution > 0 {
		cfg.Texture.Width = *resolution
		cfg.Texture.Height = *resolution
	}

	var source meshio.MeshSource = &meshio.ObjFile{Path: *objPath}
	mesh, err := source.Load()
	if err != nil {
		slog.Error("failed to load mesh", "error", err)
		os.Exit(1)
	}
	index := geom.BuildSurfaceIndex(mesh, geom.IndexOptions{})
	slog.Info("mesh loaded",
		"triangles", mesh.TriangleCount(),
		"degenerate", index.DegenerateCount(),
	)

	output, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}
	defer output.Close()
	if err := output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
		os.Exit(1)
	}

	driver := sim.NewDriver(index, cfg, output)

	// First signal stops at the next iteration boundary and still bakes;
	// a second one kills the process.
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		slog.Info("stop requested")
		driver.RequestStop()
		<-sigs
		os.Exit(1)
	}()

	slog.Info("starting simulation",
		"seed", cfg.Simulation.Seed,
		"iterations", cfg.Simulation.Iterations,
		"materials", len(cfg.Materials),
	)

	result, err := driver.Run(context.Background())
	if err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	if dir := output.Dir(); dir != "" {
		sink := meshio.NewPngSink(dir)
		for _, buf := range result.Buffers {
			if err := sink.Write(buf); err != nil {
				slog.Error("failed to write texture", "buffer", buf.Name, "error", err)
				os.Exit(1)
			}
		}
	}

	slog.Info("run complete",
		"iterations", len(result.Stats),
		"touched_cells", result.Snapshot.TouchedCells(),
		"buffers", len(result.Buffers),
		"output_dir", output.Dir(),
	)
}
