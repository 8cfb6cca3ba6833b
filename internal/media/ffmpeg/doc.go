// Package ffmpeg drives the ffmpeg command line tool for the three pipeline
// operations that need it: extracting a video into a numbered PNG sequence,
// assembling an upscaled sequence back into an H.264 video, and copying the
// original audio into the final container.
//
// Long-running operations stream ffmpeg's -progress output back to the caller
// so stage handlers can report percentages without parsing logs.
package ffmpeg
