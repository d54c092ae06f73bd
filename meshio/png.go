package meshio

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/pthm-cable/patina/tex"
)

// TextureSink persists baked texture buffers.
type TextureSink interface {
	Write(buf *tex.Buffer) error
}

// PngSink writes buffers as PNG images into a directory, one file per
// material, named after the buffer. Values are normalized over the known
// range; texels holding no surface information get the marker color so they
// are visible instead of silently black.
type PngSink struct {
	Dir     string
	Ramp    *tex.Ramp  // nil writes grayscale
	Unknown color.RGBA // marker for unknown texels
}

// NewPngSink creates a sink with the default unknown-texel marker.
func NewPngSink(dir string) *PngSink {
	return &PngSink{
		Dir:     dir,
		Unknown: color.RGBA{R: 255, G: 0, B: 255, A: 255},
	}
}

// Write encodes one buffer as <dir>/<name>.png.
func (s *PngSink) Write(buf *tex.Buffer) error {
	img := image.NewRGBA(image.Rect(0, 0, buf.Width, buf.Height))

	lo, hi := buf.Range()
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			v, known := buf.At(x, y)
			if !known {
				img.SetRGBA(x, y, s.Unknown)
				continue
			}
			t := (v - lo) / span
			if s.Ramp != nil {
				img.SetRGBA(x, y, s.Ramp.ColorAt(t))
				continue
			}
			g := uint8(t*255 + 0.5)
			img.SetRGBA(x, y, color.RGBA{R: g, G: g, B: g, A: 255})
		}
	}

	path := fmt.Sprintf("%s/%s.png", s.Dir, buf.Name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}
