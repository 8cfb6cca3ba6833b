package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/703deuce/upscale/internal/logging"
	"github.com/703deuce/upscale/internal/queue"
	"github.com/703deuce/upscale/internal/services"
	"github.com/703deuce/upscale/internal/staging"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	base := m.logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := logging.WithContext(ctx, base.With(logging.String(logging.FieldComponent, "workflow-manager")))

	details := services.Details(stageErr)
	message := classifyStageFailure(stageName, stageErr)
	resolved := services.FailureStatus(stageErr)
	if resolved == queue.StatusReview {
		item.SetReview(message)
	} else {
		item.SetFailed(message)
	}

	attrs := []logging.Attr{
		logging.String("resolved_status", string(resolved)),
		logging.String("error_message", strings.TrimSpace(message)),
		logging.Alert("stage_failure"),
		logging.String(logging.FieldEventType, "stage_failure"),
	}
	if details.Marker != nil {
		attrs = append(attrs, logging.String("error_kind", details.Marker.Error()))
	}
	if details.Operation != "" {
		attrs = append(attrs, logging.String("operation", details.Operation))
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else {
		attrs = append(attrs, logging.Error(stageErr))
	}
	logger.Error("stage failed", logging.Args(attrs...)...)

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.releaseWorkdir(logger, item)
	m.setLastItem(item)
	m.notifyStageFailure(ctx, stageName, item, resolved, message, stageErr)
	m.checkQueueCompletion(ctx)
}

// releaseWorkdir removes a failed item's staging directory. Retries restart
// from intake, which recreates it.
func (m *Manager) releaseWorkdir(logger *slog.Logger, item *queue.Item) {
	if m.cfg == nil || strings.TrimSpace(m.cfg.Paths.StagingDir) == "" {
		return
	}
	wd := staging.JobDir(m.cfg.Paths.StagingDir, item.ID)
	if err := wd.Remove(); err != nil {
		logger.Warn("failed to remove job workdir",
			logging.Error(err),
			logging.String(logging.FieldImpact, "staging disk space not reclaimed"),
		)
	}
}

func classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return stageFailureMessage(stageName, "failed without error detail")
	}

	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(stageErr.Error())
	}
	if message == "" {
		message = stageFailureMessage(stageName, "failed")
	}
	return message
}

func stageFailureMessage(stageName, defaultMsg string) string {
	if stageName != "" {
		return stageName + " " + defaultMsg
	}
	return "workflow " + defaultMsg
}
