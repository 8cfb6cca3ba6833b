// Package intake stages a job's source video into its working directory and
// records the source facts later stages plan around.
//
// Sources arrive as either a local path or an HTTP(S) URL. Local files are
// copied and URLs are downloaded into the job workdir so the rest of the
// pipeline only ever touches staged files. After staging, the source is probed
// for frame rate, dimensions, and audio presence; probe failures degrade to
// defaults rather than failing the job. Request validation (scale, CRF,
// preset, model) happens here so bad jobs fail before any heavy work starts.
package intake
