package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
)

const (
	// DefaultTileEdge bounds a tile's side length so a single inference
	// call fits device memory. Tile size is a fixed configuration, not an
	// adaptive parameter; an out-of-memory tile fails the job.
	DefaultTileEdge = 512

	// DefaultTilePad is the margin each tile borrows from its neighbors.
	// Convolution artifacts at tile borders land inside the margin, which
	// is discarded before compositing.
	DefaultTilePad = 10
)

// Engine upscales frames through a Backend using padded tiling.
type Engine struct {
	backend  Backend
	tileEdge int
	tilePad  int
}

// Option adjusts engine construction.
type Option func(*Engine)

// WithTileEdge overrides the maximum tile side length.
func WithTileEdge(edge int) Option {
	return func(e *Engine) { e.tileEdge = edge }
}

// WithTilePad overrides the tile padding margin.
func WithTilePad(pad int) Option {
	return func(e *Engine) { e.tilePad = pad }
}

// New builds an engine around a backend.
func New(backend Backend, opts ...Option) (*Engine, error) {
	if backend == nil {
		return nil, errors.New("engine: nil backend")
	}
	e := &Engine{
		backend:  backend,
		tileEdge: DefaultTileEdge,
		tilePad:  DefaultTilePad,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tileEdge <= 0 {
		return nil, fmt.Errorf("engine: tile edge %d must be positive", e.tileEdge)
	}
	if e.tilePad < 0 || e.tilePad >= e.tileEdge {
		return nil, fmt.Errorf("engine: tile pad %d must be in [0, %d)", e.tilePad, e.tileEdge)
	}
	if ratio := backend.Ratio(); ratio < 1 {
		return nil, fmt.Errorf("engine: backend ratio %d must be at least 1", ratio)
	}
	return e, nil
}

// OutputDims returns the final raster size for a width by height frame at
// the given scale factor.
func OutputDims(width, height int, scale float64) (int, int) {
	return int(math.Round(float64(width) * scale)), int(math.Round(float64(height) * scale))
}

// UpscaleImage transforms src into an image of exactly
// OutputDims(W, H, scale). Tiling is an implementation detail: the output
// raster is identical in size whether the frame needed one tile or many.
func (e *Engine) UpscaleImage(ctx context.Context, src *image.NRGBA, scale float64) (*image.NRGBA, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, errors.New("engine: empty source image")
	}
	if scale <= 0 {
		return nil, fmt.Errorf("engine: scale %v must be positive", scale)
	}

	ratio := e.backend.Ratio()
	bounds := src.Bounds()
	canvas := image.NewNRGBA(image.Rect(0, 0, bounds.Dx()*ratio, bounds.Dy()*ratio))

	for _, tile := range Layout(bounds, e.tileEdge, e.tilePad) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		enhanced, err := e.backend.Enhance(ctx, extractPadded(src, tile))
		if err != nil {
			return nil, fmt.Errorf("enhance tile %v: %w", tile.Region, err)
		}
		if err := compositeTile(canvas, bounds.Min, tile, enhanced, ratio); err != nil {
			return nil, err
		}
	}

	width, height := OutputDims(bounds.Dx(), bounds.Dy(), scale)
	return resample(canvas, width, height), nil
}

// UpscaleFrame reads the frame at srcPath, upscales it, and persists the
// result losslessly at dstPath.
func (e *Engine) UpscaleFrame(ctx context.Context, srcPath, dstPath string, scale float64) error {
	src, err := ReadImage(srcPath)
	if err != nil {
		return err
	}
	upscaled, err := e.UpscaleImage(ctx, src, scale)
	if err != nil {
		return err
	}
	return WriteImage(dstPath, upscaled)
}

// compositeTile crops the upscaled padding margin off enhanced and places
// the remainder at the tile's grid position on the canvas. Tile regions
// partition the frame, so the placements cover the canvas exactly.
func compositeTile(canvas *image.NRGBA, origin image.Point, t Tile, enhanced *image.NRGBA, ratio int) error {
	wantW, wantH := t.Padded.Dx()*ratio, t.Padded.Dy()*ratio
	got := enhanced.Bounds()
	if got.Dx() != wantW || got.Dy() != wantH {
		return fmt.Errorf("enhance tile %v: backend produced %dx%d, want %dx%d",
			t.Region, got.Dx(), got.Dy(), wantW, wantH)
	}

	cropX := (t.Region.Min.X - t.Padded.Min.X) * ratio
	cropY := (t.Region.Min.Y - t.Padded.Min.Y) * ratio
	dest := image.Rect(
		(t.Region.Min.X-origin.X)*ratio,
		(t.Region.Min.Y-origin.Y)*ratio,
		(t.Region.Max.X-origin.X)*ratio,
		(t.Region.Max.Y-origin.Y)*ratio,
	)
	draw.Draw(canvas, dest, enhanced, got.Min.Add(image.Pt(cropX, cropY)), draw.Src)
	return nil
}

// resample scales canvas to exactly width by height with Catmull-Rom
// interpolation, or returns it untouched when the dimensions already match.
func resample(canvas *image.NRGBA, width, height int) *image.NRGBA {
	if b := canvas.Bounds(); b.Dx() == width && b.Dy() == height {
		return canvas
	}
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(out, out.Bounds(), canvas, canvas.Bounds(), xdraw.Src, nil)
	return out
}
