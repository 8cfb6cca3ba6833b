package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/703deuce/upscale/internal/assembly"
	"github.com/703deuce/upscale/internal/config"
	"github.com/703deuce/upscale/internal/extraction"
	"github.com/703deuce/upscale/internal/intake"
	"github.com/703deuce/upscale/internal/logging"
	"github.com/703deuce/upscale/internal/notifications"
	"github.com/703deuce/upscale/internal/queue"
	"github.com/703deuce/upscale/internal/remux"
	"github.com/703deuce/upscale/internal/stageexec"
	"github.com/703deuce/upscale/internal/upscaling"
)

type RunJobRequest struct {
	Config  *config.Config
	Logger  *slog.Logger
	Request queue.JobRequest
}

type RunJobResult struct {
	Item *queue.Item
}

// RunJobToCompletion drives a single job through every pipeline stage in the
// calling goroutine, without a daemon. Cancellation is left to the caller's
// context; per-stage deadlines only apply to daemon processing.
func RunJobToCompletion(ctx context.Context, req RunJobRequest) (RunJobResult, error) {
	cfg := req.Config
	if cfg == nil {
		return RunJobResult{}, fmt.Errorf("configuration is required")
	}
	logger := req.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return RunJobResult{}, fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()

	item, err := store.NewJob(ctx, req.Request)
	if err != nil {
		return RunJobResult{}, err
	}

	notifier := notifications.NewService(cfg)
	upscaler := upscaling.NewUpscaler(cfg, store, logger)
	defer func() {
		if cerr := upscaler.Close(); cerr != nil {
			logger.Warn("inference worker shutdown failed", logging.Error(cerr))
		}
	}()

	stages := []struct {
		name       string
		handler    stageexec.Handler
		processing queue.Status
		done       queue.Status
	}{
		{"intake", intake.NewFetcher(cfg, store, logger), queue.StatusFetching, queue.StatusFetched},
		{"extraction", extraction.NewExtractor(cfg, store, logger), queue.StatusExtracting, queue.StatusExtracted},
		{"upscaling", upscaler, queue.StatusUpscaling, queue.StatusUpscaled},
		{"assembly", assembly.NewAssembler(cfg, store, logger), queue.StatusEncoding, queue.StatusEncoded},
		{"remux", remux.NewRemuxer(cfg, store, logger), queue.StatusRemuxing, queue.StatusCompleted},
	}

	for _, st := range stages {
		if err := stageexec.Run(ctx, stageexec.Options{
			Logger:     logger,
			Store:      store,
			Notifier:   notifier,
			Handler:    st.handler,
			StageName:  st.name,
			Processing: st.processing,
			Done:       st.done,
			Item:       item,
		}); err != nil {
			return RunJobResult{}, stageOutcomeError(st.name, item, err)
		}
	}

	return RunJobResult{Item: item}, nil
}

// stageOutcomeError folds the persisted failure state into a message the CLI
// can print directly.
func stageOutcomeError(stageName string, item *queue.Item, err error) error {
	if item.NeedsReview {
		return fmt.Errorf("%s requires review: %s", stageName, strings.TrimSpace(item.ReviewReason))
	}
	if msg := strings.TrimSpace(item.ErrorMessage); msg != "" {
		return fmt.Errorf("%s failed: %s", stageName, msg)
	}
	return fmt.Errorf("%s failed: %w", stageName, err)
}
