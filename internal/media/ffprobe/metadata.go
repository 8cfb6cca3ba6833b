package ffprobe

import (
	"context"
	"math"
)

// DefaultFrameRate is assumed when the source reports no usable frame rate.
// Timing drifts slightly in that case but the pipeline stays productive.
const DefaultFrameRate = 30.0

// Metadata summarizes the probe fields the pipeline plans around. Zero width
// or height means the dimensions are unknown.
type Metadata struct {
	FPS      float64
	Width    int
	Height   int
	HasAudio bool
	Duration float64
}

// EstimatedFrames derives an approximate total frame count for progress
// reporting. Returns 0 when duration is unknown.
func (m Metadata) EstimatedFrames() int {
	if m.Duration <= 0 || m.FPS <= 0 {
		return 0
	}
	return int(math.Round(m.Duration * m.FPS))
}

// Probe inspects the file and always returns usable metadata. When ffprobe
// fails or reports unusable values, the affected fields fall back to defaults
// and the returned error describes the degradation. The error is advisory; the
// pipeline proceeds with the defaults either way.
func Probe(ctx context.Context, binary, path string) (Metadata, error) {
	result, err := Inspect(ctx, binary, path)
	if err != nil {
		return Metadata{FPS: DefaultFrameRate}, err
	}
	return MetadataFromResult(result), nil
}

// MetadataFromResult derives planning metadata from a parsed probe result.
func MetadataFromResult(result Result) Metadata {
	meta := Metadata{FPS: DefaultFrameRate}

	if duration := result.DurationSeconds(); duration > 0 && !math.IsNaN(duration) {
		meta.Duration = duration
	}
	meta.HasAudio = result.AudioStreamCount() > 0

	video, ok := result.PrimaryVideoStream()
	if !ok {
		return meta
	}
	if video.Width > 0 {
		meta.Width = video.Width
	}
	if video.Height > 0 {
		meta.Height = video.Height
	}
	if fps, ok := ParseFrameRate(video.RFrameRate); ok {
		meta.FPS = fps
	} else if fps, ok := ParseFrameRate(video.AvgFrameRate); ok {
		meta.FPS = fps
	}
	return meta
}
