// Package daemon coordinates the long-running upscale process.
//
// It wires configuration, queue storage, and the workflow manager into a
// single lifecycle with flock-based locking to prevent multiple instances.
// Startup reconciles persisted queue state with the filesystem: interrupted
// jobs return to pending and abandoned staging workdirs are reclaimed. The
// daemon also serves the HTTP control API that the CLI talks to for job
// submission, queue inspection, and result downloads.
//
// Keep orchestration logic here: individual workflow stages live in their
// respective packages while the daemon focuses on startup, shutdown, and
// high-level coordination.
package daemon
