// Package main hosts the upscale CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon's control API, queue maintenance operations,
// one-shot pipeline runs, and configuration scaffolding. Queue commands fall
// back to direct database access when the daemon is not running, so the same
// invocations work on a cold machine. It centralizes configuration
// resolution and daemon address discovery so subcommands can focus on user
// experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
