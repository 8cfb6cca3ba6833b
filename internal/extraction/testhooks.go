package extraction

import (
	"context"

	"github.com/703deuce/upscale/internal/media/ffprobe"
)

// probeMedia is the ffprobe function used for frame count estimates.
// It is a package-level variable so tests can override it.
var probeMedia = ffprobe.Probe

// SetProbeForTests overrides the ffprobe runner during tests.
func SetProbeForTests(fn func(context.Context, string, string) (ffprobe.Metadata, error)) func() {
	previous := probeMedia
	probeMedia = fn
	return func() {
		probeMedia = previous
	}
}
