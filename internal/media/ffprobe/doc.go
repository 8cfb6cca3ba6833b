// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// This package has no project-specific dependencies and could be extracted
// as a standalone library.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video/subtitle stream properties
//   - Format: container-level metadata (duration, size, bitrate)
//   - Metadata: the planning summary the upscaling pipeline consumes
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns a parsed Result
//   - Probe: executes ffprobe and reduces the result to Metadata, degrading
//     to defaults instead of failing when the source is uncooperative
package ffprobe
