package intake

import (
	"context"

	"github.com/703deuce/upscale/internal/media/ffprobe"
)

// probeSource is the ffprobe function used by the intake package.
// It is a package-level variable so tests can override it.
var probeSource = ffprobe.Probe

// SetProbeForTests overrides the ffprobe runner during tests.
func SetProbeForTests(fn func(context.Context, string, string) (ffprobe.Metadata, error)) func() {
	previous := probeSource
	probeSource = fn
	return func() {
		probeSource = previous
	}
}
