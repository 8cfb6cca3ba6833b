package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/703deuce/upscale/internal/config"
	"github.com/703deuce/upscale/internal/logging"
	"github.com/703deuce/upscale/internal/media/ffmpeg"
	"github.com/703deuce/upscale/internal/queue"
	"github.com/703deuce/upscale/internal/services"
	"github.com/703deuce/upscale/internal/stage"
	"github.com/703deuce/upscale/internal/staging"
)

// Extractor decodes the staged source video into a numbered PNG frame
// sequence the upscaler consumes.
type Extractor struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	runner ffmpeg.Runner
}

// NewExtractor constructs the extraction stage handler using default
// dependencies.
func NewExtractor(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Extractor {
	runner := ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary()))
	return NewExtractorWithDependencies(cfg, store, logger, runner)
}

// NewExtractorWithDependencies allows injecting collaborators (used in tests).
func NewExtractorWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, runner ffmpeg.Runner) *Extractor {
	e := &Extractor{store: store, cfg: cfg, runner: runner}
	e.SetLogger(logger)
	return e
}

// SetLogger updates the extractor's logging destination.
func (e *Extractor) SetLogger(logger *slog.Logger) {
	e.logger = logging.NewComponentLogger(logger, "extraction")
}

func (e *Extractor) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)
	item.InitProgress("Extracting", "Preparing frame extraction")
	logger.Debug("starting extraction preparation", logging.String("staged_file", item.StagedFile))
	return nil
}

func (e *Extractor) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)
	start := time.Now()

	staged, err := stage.RequireArtifact("extraction", item.StagedFile, "staged source video")
	if err != nil {
		return err
	}

	wd := staging.JobDir(e.cfg.Paths.StagingDir, item.ID)
	framesDir := wd.FramesDir()
	if err := os.RemoveAll(framesDir); err != nil {
		return services.Wrap(services.ErrTransient, "extraction", "reset frames dir", "Failed to clear previous frame output", err)
	}
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "extraction", "create frames dir", "Failed to create frame output directory", err)
	}

	meta, probeErr := probeMedia(ctx, e.cfg.FFprobeBinary(), staged)
	if probeErr != nil {
		logger.Warn("frame estimate unavailable",
			logging.Error(probeErr),
			logging.String(logging.FieldImpact, "extraction progress reported without percentages"),
		)
	}
	estimate := meta.EstimatedFrames()

	logger.Info("starting frame extraction",
		logging.String("staged_file", staged),
		logging.Int("estimated_frames", estimate),
	)
	e.updateProgress(ctx, item, "Decoding frames from source", 5)

	const persistInterval = 2 * time.Second
	var lastPersisted time.Time
	sampler := logging.NewProgressSampler(10)
	onProgress := func(p ffmpeg.Progress) {
		percent := extractPercent(p.Frame, estimate)
		message := fmt.Sprintf("Decoded %d frames", p.Frame)

		if sampler.ShouldLog(percent, "Extracting", message) {
			attrs := []logging.Attr{
				logging.Int64("frame", p.Frame),
				logging.Float64("decode_fps", p.FPS),
			}
			if percent >= 0 {
				attrs = append(attrs, logging.Float64("progress_percent", percent))
			}
			logger.Info("extraction progress", logging.Args(attrs...)...)
		}

		now := time.Now()
		if !p.Done && !lastPersisted.IsZero() && now.Sub(lastPersisted) < persistInterval {
			return
		}
		lastPersisted = now
		copy := *item
		copy.ProgressMessage = message
		if percent >= 0 {
			copy.ProgressPercent = percent
		}
		if err := e.store.UpdateProgress(ctx, &copy); err != nil {
			logger.Warn("failed to persist extraction progress", logging.Error(err))
			return
		}
		*item = copy
	}

	if err := e.runner.ExtractFrames(ctx, ffmpeg.ExtractRequest{Input: staged, Pattern: wd.FramePattern()}, onProgress); err != nil {
		return services.Wrap(services.ErrExternalTool, "extraction", "extract frames", "Frame extraction failed", err)
	}

	count, err := staging.CountSequence(framesDir, staging.FramePrefix)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "extraction", "verify frames", "Extracted frame sequence is unusable", err)
	}
	if count == 0 {
		return services.Wrap(
			services.ErrValidation,
			"extraction",
			"verify frames",
			"Source decoded to zero frames; verify the file is a playable video",
			nil,
		)
	}
	item.FrameCount = count

	item.SetProgress("Extracting", fmt.Sprintf("Extracted %d frames", count), 100)
	logger.Info("extraction completed",
		logging.Int("frame_count", count),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	const name = "extraction"
	if e.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(e.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	if strings.TrimSpace(e.cfg.FFmpegBinary()) == "" {
		return stage.Unhealthy(name, "ffmpeg binary not configured")
	}
	return stage.Healthy(name)
}

// extractPercent maps a decoded frame count onto the 5-95 band reserved for
// the ffmpeg run. Returns -1 when no estimate is available.
func extractPercent(frame int64, estimate int) float64 {
	if estimate <= 0 || frame < 0 {
		return -1
	}
	percent := 5 + float64(frame)/float64(estimate)*90
	if percent > 95 {
		percent = 95
	}
	return percent
}

func (e *Extractor) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, e.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := e.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist extraction progress", logging.Error(err))
		return
	}
	*item = copy
}
