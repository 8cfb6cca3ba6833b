// Package realesr drives the Real-ESRGAN worker sidecar that performs the
// actual model inference.
//
// The worker is launched once per daemon and holds the loaded weights for
// its lifetime; tiles travel to and from it as PNG files referenced by a
// JSON-line request/response protocol on stdin/stdout. A mutex serializes
// requests because the worker owns a single accelerator device.
package realesr
