package stage

import (
	"context"
	"log/slog"

	"github.com/703deuce/upscale/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}

// LoggerAware lets the workflow manager install a per-item logger before
// Prepare runs.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
