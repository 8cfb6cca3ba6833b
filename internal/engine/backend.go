package engine

import (
	"context"
	"image"
)

// Backend runs super-resolution inference on image tiles. Implementations
// own the loaded weights; the engine treats the backend as a shared
// read-only handle and never reloads it between tiles or frames.
type Backend interface {
	// Ratio reports the model's native integer upscale ratio.
	Ratio() int

	// Enhance upscales one tile to exactly Ratio times its dimensions.
	// Inference may run at reduced numeric precision; dimensions must
	// still be exact.
	Enhance(ctx context.Context, tile *image.NRGBA) (*image.NRGBA, error)

	// Close releases the backend's resources.
	Close() error
}
