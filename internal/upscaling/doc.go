// Package upscaling runs extracted frames through the tiled inference
// engine, producing the upscaled sequence the assembler encodes.
//
// The stage owns the inference worker's lifecycle through a pool that keeps
// one worker resident across jobs. Weights load when a worker starts and the
// worker is replaced only when a job selects a different model, so
// back-to-back jobs on the same model never reload. Frame loops run strictly
// serially; the worker occupies the accelerator and parallel frames would
// only contend for it.
package upscaling
