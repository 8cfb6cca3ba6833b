// Package workflow advances queue items through the upscaling pipeline.
//
// The Manager polls the queue on two lanes. The intake lane claims pending
// items and stages their sources, so downloads overlap frame processing. The
// processing lane claims fetched, extracted, upscaled, and encoded items and
// runs extraction, upscaling, assembly, and remux one at a time, keeping
// accelerator use serialized across jobs.
//
// Each claim transitions the item to the stage's processing status, runs the
// handler under a per-stage deadline with heartbeats persisted on an
// interval, and persists the done status. Failures route through the error
// taxonomy: request-shaped problems park the item in review, everything else
// lands in failed and stays retryable; both release the staging directory.
// Items whose heartbeats expire are reclaimed back to the start of their
// stage while the lanes poll.
package workflow
