// Package extraction decodes a staged source video into the numbered PNG
// frame sequence the upscaler consumes.
//
// ffmpeg does the decoding; this package owns the surrounding discipline:
// the frames directory is cleared before each run so retries never mix
// sequences, progress is estimated from a probe of the source, and the
// resulting sequence is verified gap-free before the frame count is recorded.
package extraction
