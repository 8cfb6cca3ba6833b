// Package api defines the daemon's HTTP wire format and the client used to
// drive it. It translates internal queue models into transport-friendly DTOs
// so the CLI and other consumers never couple to internal types.
//
// # Key Types
//
// JobRequest: a job submission with source, scale, model, and encoding
// overrides. Validate applies the config-independent shape checks before a
// request reaches the queue.
//
// QueueItem: transport representation of a queue entry with resolved job
// parameters, probed source properties, and progress.
//
// DaemonStatus: aggregated runtime information including workflow state and
// external tool availability.
//
// Client: HTTP access to a running daemon, including result download
// streaming.
//
// # Converters
//
// FromQueueItem: queue.Item -> QueueItem.
//
// FromStatusSummary: workflow.StatusSummary -> WorkflowStatus.
//
// StageHealthSlice: deterministic ordering of stage health map.
//
// # One-shot execution
//
// RunJobToCompletion runs a single job through every stage in-process for
// the CLI run command, reusing the same stage handlers the daemon schedules.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (queue.Status, queue.Lane)
// are exposed as lowercase strings. Timestamps use RFC3339 with
// milliseconds.
package api
