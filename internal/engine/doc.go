// Package engine performs tiled super-resolution on still frames.
//
// Whole-frame inference does not fit the accelerator's memory ceiling for
// large frames, so each frame is split into a grid of padded tiles, upscaled
// tile by tile at the model's fixed native ratio, and recomposed. The
// padding margin absorbs convolution artifacts at tile borders and is
// discarded before compositing, so the tile grid never shows in the output.
// When the requested scale factor differs from the model's native ratio the
// composited canvas is resampled to the exact target dimensions.
//
// The engine is stateless across frames except for the shared read-only
// Backend handle; frames can be processed in any order without changing
// output.
package engine
