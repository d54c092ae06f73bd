// Baked texture preview tool - runs a simulation and shows the resulting
// material maps interactively.
//
// Usage: go run ./cmd/preview -obj mesh.obj [-config config.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"os"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/patina/config"
	"github.com/pthm-cable/patina/geom"
	"github.com/pthm-cable/patina/meshio"
	"github.com/pthm-cable/patina/sim"
	"github.com/pthm-cable/patina/surface"
	"github.com/pthm-cable/patina/tex"
)

const (
	windowWidth  = 1000
	windowHeight = 720
	previewSize  = 640
	panelWidth   = windowWidth - previewSize - 30
)

var bakeSizes = []int{256, 512, 1024}

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	objPath := flag.String("obj", "", "Path to the OBJ mesh to weather (required)")
	seed := flag.Int64("seed", 0, "Override config RNG seed (0 = keep config value)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *objPath == "" {
		slog.Error("missing required -obj flag")
		os.Exit(1)
	}
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}

	mesh, err := (&meshio.ObjFile{Path: *objPath}).Load()
	if err != nil {
		slog.Error("failed to load mesh", "error", err)
		os.Exit(1)
	}
	index := geom.BuildSurfaceIndex(mesh, geom.IndexOptions{})

	driver := sim.NewDriver(index, cfg, nil)
	result, err := driver.Run(context.Background())
	if err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	run(cfg, index, result.Snapshot, result.Buffers)
}

func run(cfg *config.Config, index *geom.SurfaceIndex, snap *surface.Snapshot, buffers []*tex.Buffer) {
	rl.InitWindow(windowWidth, windowHeight, "Weathering Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	selected := 0
	sizeIdx := len(bakeSizes) - 1
	for i, s := range bakeSizes {
		if s == cfg.Texture.Width {
			sizeIdx = i
		}
	}

	texture, pixels := makeTexture(buffers[selected])
	defer rl.UnloadTexture(texture)

	names := make([]string, len(cfg.Materials))
	for i, m := range cfg.Materials {
		names[i] = m.Name
	}

	needsUpload := false
	for !rl.WindowShouldClose() {
		if needsUpload {
			fillPixels(pixels, buffers[selected])
			rl.UpdateTexture(texture, pixels)
			needsUpload = false
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		buf := buffers[selected]
		rl.DrawTexturePro(
			texture,
			rl.Rectangle{X: 0, Y: 0, Width: float32(buf.Width), Height: float32(buf.Height)},
			rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize},
			rl.Vector2{X: 0, Y: 0},
			0,
			rl.White,
		)
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

		lo, hi := buf.Range()
		statsY := int32(previewSize + 25)
		rl.DrawText(fmt.Sprintf("%s  min: %.4f  max: %.4f  %dx%d", buf.Name, lo, hi, buf.Width, buf.Height),
			15, statsY, 16, rl.DarkGray)

		panelX := float32(previewSize + 20)
		panelY := float32(10)

		rl.DrawText("Material", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 30
		for i, name := range names {
			label := name
			if i == selected {
				label = "> " + name
			}
			if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 20), Height: 28}, label) {
				if i != selected {
					selected = i
					needsUpload = true
				}
			}
			panelY += 34
		}

		panelY += 10
		rl.DrawText("Bake resolution", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 30
		for i, size := range bakeSizes {
			label := fmt.Sprintf("%dx%d", size, size)
			if i == sizeIdx {
				label = "> " + label
			}
			if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 20), Height: 28}, label) && i != sizeIdx {
				// Re-bake from the same snapshot; no simulation re-run.
				rebaked, ok := rebake(cfg, index, snap, size)
				if ok {
					sizeIdx = i
					buffers = rebaked
					rl.UnloadTexture(texture)
					texture, pixels = makeTexture(buffers[selected])
				}
			}
			panelY += 34
		}

		rl.EndDrawing()
	}
}

func rebake(cfg *config.Config, index *geom.SurfaceIndex, snap *surface.Snapshot, size int) ([]*tex.Buffer, bool) {
	texCfg := cfg.Texture
	texCfg.Width = size
	texCfg.Height = size

	synth, err := tex.NewSynthesizer(index, texCfg)
	if err != nil {
		slog.Error("bake failed", "error", err)
		return nil, false
	}
	names := make([]string, len(cfg.Materials))
	for i, m := range cfg.Materials {
		names[i] = m.Name
	}
	buffers, stats, err := synth.Bake(snap, names)
	if err != nil {
		slog.Error("bake failed", "error", err)
		return nil, false
	}
	slog.Info("rebaked", "size", size, "covered", stats.CoveredTexels, "unknown", stats.UnknownTexels)
	return buffers, true
}

func makeTexture(buf *tex.Buffer) (rl.Texture2D, []color.RGBA) {
	img := rl.GenImageColor(buf.Width, buf.Height, rl.Black)
	texture := rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)

	pixels := make([]color.RGBA, buf.Width*buf.Height)
	fillPixels(pixels, buf)
	rl.UpdateTexture(texture, pixels)
	return texture, pixels
}

// fillPixels maps buffer values to grayscale over the known range; unknown
// texels show up magenta.
func fillPixels(pixels []color.RGBA, buf *tex.Buffer) {
	lo, hi := buf.Range()
	span := hi - lo
	if span <= 0 {
		span = 1
	}
	for i := range pixels {
		if !buf.Known[i] {
			pixels[i] = color.RGBA{R: 255, G: 0, B: 255, A: 255}
			continue
		}
		g := uint8((buf.Data[i] - lo) / span * 255)
		pixels[i] = color.RGBA{R: g, G: g, B: g, A: 255}
	}
}
