package upscaling

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/703deuce/upscale/internal/config"
	"github.com/703deuce/upscale/internal/engine"
	"github.com/703deuce/upscale/internal/logging"
	"github.com/703deuce/upscale/internal/notifications"
	"github.com/703deuce/upscale/internal/queue"
	"github.com/703deuce/upscale/internal/services"
	"github.com/703deuce/upscale/internal/stage"
	"github.com/703deuce/upscale/internal/staging"
)

// Upscaler runs every extracted frame through the tiled inference engine and
// writes the upscaled sequence alongside the original.
type Upscaler struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
	pool     BackendProvider
}

// NewUpscaler constructs the upscaling stage handler using default
// dependencies.
func NewUpscaler(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Upscaler {
	pool := NewWorkerPool(cfg, logging.NewComponentLogger(logger, "realesr"))
	return NewUpscalerWithDependencies(cfg, store, logger, notifications.NewService(cfg), pool)
}

// NewUpscalerWithDependencies allows injecting collaborators (used in tests).
func NewUpscalerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, pool BackendProvider) *Upscaler {
	u := &Upscaler{store: store, cfg: cfg, notifier: notifier, pool: pool}
	u.SetLogger(logger)
	return u
}

// SetLogger updates the upscaler's logging destination.
func (u *Upscaler) SetLogger(logger *slog.Logger) {
	u.logger = logging.NewComponentLogger(logger, "upscaling")
}

// Close shuts down the resident inference worker. The workflow manager calls
// this during daemon shutdown.
func (u *Upscaler) Close() error {
	if u.pool == nil {
		return nil
	}
	return u.pool.Close()
}

func (u *Upscaler) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, u.logger)
	item.InitProgress("Upscaling", "Preparing inference")
	logger.Debug("starting upscale preparation", logging.Int("frame_count", item.FrameCount))
	return nil
}

func (u *Upscaler) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, u.logger)
	start := time.Now()

	wd := staging.JobDir(u.cfg.Paths.StagingDir, item.ID)
	framesDir, err := stage.RequireDir("upscaling", wd.FramesDir(), "extracted frames directory")
	if err != nil {
		return err
	}

	count, err := staging.CountSequence(framesDir, staging.FramePrefix)
	if err != nil {
		return services.Wrap(services.ErrValidation, "upscaling", "verify frames", "Extracted frame sequence is unusable; rerun extraction", err)
	}
	if count == 0 {
		return services.Wrap(services.ErrValidation, "upscaling", "verify frames", "No extracted frames found; rerun extraction", nil)
	}
	if item.FrameCount != 0 && item.FrameCount != count {
		logger.Warn("frame count drifted since extraction",
			logging.Int("recorded", item.FrameCount),
			logging.Int("found", count),
		)
	}
	item.FrameCount = count

	model, err := u.resolveModel(item)
	if err != nil {
		return err
	}
	weights := engine.WeightsPath(u.cfg.Paths.WeightsDir, model.Name)
	if _, err := os.Stat(weights); err != nil {
		return services.Wrap(
			services.ErrNotFound,
			"upscaling",
			"locate weights",
			fmt.Sprintf("Model weights %s are missing; download them before retrying", weights),
			err,
		)
	}

	scale := item.ResolvedScale
	if scale <= 0 {
		scale = engine.ResolveScale(item.Scale, item.TargetResolution, u.cfg.Upscaler.DefaultScale)
		item.ResolvedScale = scale
	}

	u.updateProgress(ctx, item, fmt.Sprintf("Loading %s weights", model.Name), 2)

	backend, err := u.pool.Acquire(ctx, model, weights)
	if err != nil {
		return services.Wrap(services.ErrInference, "upscaling", "start worker", "Failed to start the inference worker", err)
	}
	eng, err := engine.New(backend,
		engine.WithTileEdge(u.cfg.Upscaler.TileEdge),
		engine.WithTilePad(u.cfg.Upscaler.TilePad),
	)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "upscaling", "configure engine", "Invalid tile configuration", err)
	}

	upscaledDir := wd.UpscaledDir()
	if err := os.RemoveAll(upscaledDir); err != nil {
		return services.Wrap(services.ErrTransient, "upscaling", "reset upscaled dir", "Failed to clear previous upscaled output", err)
	}
	if err := os.MkdirAll(upscaledDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "upscaling", "create upscaled dir", "Failed to create upscaled output directory", err)
	}

	logger.Info("starting upscale",
		logging.String("model", model.Name),
		logging.Int("ratio", model.Ratio),
		logging.Float64("scale", scale),
		logging.Int("frame_count", count),
	)

	const persistInterval = 2 * time.Second
	var lastPersisted time.Time
	sampler := logging.NewProgressSampler(5)

	for index := 1; index <= count; index++ {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrTransient, "upscaling", "upscale frames", "Upscaling interrupted", err)
		}
		if err := eng.UpscaleFrame(ctx, wd.FramePath(index), wd.UpscaledPath(index), scale); err != nil {
			return services.Wrap(
				services.ErrInference,
				"upscaling",
				"upscale frames",
				fmt.Sprintf("Inference failed on frame %d of %d", index, count),
				err,
			)
		}

		percent := float64(index) / float64(count) * 100
		message := fmt.Sprintf("Upscaled frame %d of %d", index, count)
		if sampler.ShouldLog(percent, "Upscaling", message) {
			logger.Info("upscale progress",
				logging.Int("frame", index),
				logging.Int("frame_count", count),
				logging.Float64("progress_percent", percent),
			)
		}

		now := time.Now()
		if index < count && !lastPersisted.IsZero() && now.Sub(lastPersisted) < persistInterval {
			continue
		}
		lastPersisted = now
		copy := *item
		copy.ProgressMessage = message
		copy.ProgressPercent = percent
		if err := u.store.UpdateProgress(ctx, &copy); err != nil {
			logger.Warn("failed to persist upscale progress", logging.Error(err))
			continue
		}
		*item = copy
	}

	verified, err := staging.CountSequence(upscaledDir, staging.UpscaledPrefix)
	if err != nil {
		return services.Wrap(services.ErrInference, "upscaling", "verify output", "Upscaled frame sequence is unusable", err)
	}
	if verified != count {
		return services.Wrap(
			services.ErrInference,
			"upscaling",
			"verify output",
			fmt.Sprintf("Upscaled %d of %d frames", verified, count),
			nil,
		)
	}

	item.SetProgress("Upscaling", fmt.Sprintf("Upscaled %d frames", count), 100)
	logger.Info("upscale completed",
		logging.String("model", model.Name),
		logging.Int("frame_count", count),
		logging.Duration("elapsed", time.Since(start)),
	)

	if u.notifier != nil {
		if err := u.notifier.Publish(ctx, notifications.EventUpscaleCompleted, notifications.Payload{
			"title": item.Title,
		}); err != nil {
			logger.Warn("upscale notification failed", logging.Error(err))
		}
	}
	return nil
}

func (u *Upscaler) HealthCheck(ctx context.Context) stage.Health {
	const name = "upscaling"
	if u.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(u.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	if strings.TrimSpace(u.cfg.Paths.WeightsDir) == "" {
		return stage.Unhealthy(name, "weights directory not configured")
	}
	if strings.TrimSpace(u.cfg.WorkerBinary()) == "" {
		return stage.Unhealthy(name, "inference worker binary not configured")
	}
	return stage.Healthy(name)
}

func (u *Upscaler) resolveModel(item *queue.Item) (engine.Spec, error) {
	name := strings.TrimSpace(item.Model)
	if name == "" {
		name = u.cfg.Upscaler.DefaultModel
	}
	model, ok := engine.Lookup(name)
	if !ok {
		return engine.Spec{}, services.Wrap(
			services.ErrValidation,
			"upscaling",
			"resolve model",
			fmt.Sprintf("Unknown model %q; supported models: %s", name, strings.Join(engine.Names(), ", ")),
			nil,
		)
	}
	return model, nil
}

func (u *Upscaler) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, u.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := u.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist upscale progress", logging.Error(err))
		return
	}
	*item = copy
}
