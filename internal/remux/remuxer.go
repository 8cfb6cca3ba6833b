package remux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/703deuce/upscale/internal/config"
	"github.com/703deuce/upscale/internal/fileutil"
	"github.com/703deuce/upscale/internal/logging"
	"github.com/703deuce/upscale/internal/media/ffmpeg"
	"github.com/703deuce/upscale/internal/notifications"
	"github.com/703deuce/upscale/internal/queue"
	"github.com/703deuce/upscale/internal/services"
	"github.com/703deuce/upscale/internal/stage"
	"github.com/703deuce/upscale/internal/staging"
)

// Remuxer marries the encoded video stream with the source's audio and
// delivers the finished file into the output directory.
type Remuxer struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
	runner   ffmpeg.Runner
}

// NewRemuxer constructs the remux stage handler using default dependencies.
func NewRemuxer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Remuxer {
	runner := ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary()))
	return NewRemuxerWithDependencies(cfg, store, logger, notifications.NewService(cfg), runner)
}

// NewRemuxerWithDependencies allows injecting collaborators (used in tests).
func NewRemuxerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, runner ffmpeg.Runner) *Remuxer {
	r := &Remuxer{store: store, cfg: cfg, notifier: notifier, runner: runner}
	r.SetLogger(logger)
	return r
}

// SetLogger updates the remuxer's logging destination.
func (r *Remuxer) SetLogger(logger *slog.Logger) {
	r.logger = logging.NewComponentLogger(logger, "remux")
}

func (r *Remuxer) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, r.logger)
	item.InitProgress("Finalizing", "Preparing audio remux")
	logger.Debug("starting remux preparation", logging.String("encoded_file", item.EncodedFile))
	return nil
}

func (r *Remuxer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, r.logger)
	start := time.Now()

	encoded, err := stage.RequireArtifact("remux", item.EncodedFile, "encoded video")
	if err != nil {
		return err
	}
	staged, err := stage.RequireArtifact("remux", item.StagedFile, "staged source video")
	if err != nil {
		return err
	}

	wd := staging.JobDir(r.cfg.Paths.StagingDir, item.ID)
	final := wd.FinalFile()

	logger.Info("starting remux",
		logging.String("encoded_file", encoded),
		logging.Bool("has_audio", item.HasAudio),
	)
	r.updateProgress(ctx, item, "Remuxing audio streams", 20)

	req := ffmpeg.RemuxRequest{Video: encoded, Source: staged, Output: final}
	if err := r.runner.RemuxStreams(ctx, req); err != nil {
		return services.Wrap(services.ErrExternalTool, "remux", "remux streams", "Audio remux failed", err)
	}
	info, err := os.Stat(final)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "remux", "verify output", "Remux produced no output file", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "remux", "verify output", "Remux produced an empty output file", nil)
	}

	r.updateProgress(ctx, item, "Delivering finished video", 80)

	outputDir := strings.TrimSpace(r.cfg.Paths.OutputDir)
	if outputDir == "" {
		return services.Wrap(services.ErrConfiguration, "remux", "resolve output dir", "No output directory configured", nil)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "remux", "create output dir", "Failed to create the output directory", err)
	}
	target, err := nextOutputPath(outputDir, outputBasename(item), filepath.Ext(final))
	if err != nil {
		return services.Wrap(services.ErrTransient, "remux", "allocate output filename", "Unable to allocate an output filename", err)
	}
	if err := fileutil.MoveFile(final, target); err != nil {
		return services.Wrap(services.ErrTransient, "remux", "deliver output", "Failed to move the finished video into the output directory", err)
	}
	item.FinalFile = target

	if err := wd.Remove(); err != nil {
		logger.Warn("failed to remove job workdir",
			logging.Error(err),
			logging.String(logging.FieldImpact, "staging disk space not reclaimed"),
		)
	}

	item.SetProgressComplete("Completed", fmt.Sprintf("Available at %s", filepath.Base(target)))
	logger.Info("remux completed",
		logging.String("final_file", target),
		logging.Int64("size_bytes", info.Size()),
		logging.Duration("elapsed", time.Since(start)),
	)

	if r.notifier != nil {
		if err := r.notifier.Publish(ctx, notifications.EventProcessingCompleted, notifications.Payload{
			"title":     item.Title,
			"finalFile": target,
		}); err != nil {
			logger.Warn("completion notification failed", logging.Error(err))
		}
	}
	return nil
}

func (r *Remuxer) HealthCheck(ctx context.Context) stage.Health {
	const name = "remux"
	if r.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(r.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	if strings.TrimSpace(r.cfg.Paths.OutputDir) == "" {
		return stage.Unhealthy(name, "output directory not configured")
	}
	if strings.TrimSpace(r.cfg.FFmpegBinary()) == "" {
		return stage.Unhealthy(name, "ffmpeg binary not configured")
	}
	return stage.Healthy(name)
}

// outputBasename derives a filesystem-safe name for the delivered file from
// the job title.
func outputBasename(item *queue.Item) string {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return fmt.Sprintf("upscaled-%d", item.ID)
	}
	var b strings.Builder
	prevSpace := false
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_':
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	base := strings.TrimSpace(b.String())
	if base == "" {
		return fmt.Sprintf("upscaled-%d", item.ID)
	}
	return base
}

// nextOutputPath finds an available filename in the output directory,
// numbering collisions instead of overwriting earlier deliveries.
func nextOutputPath(dir, base, ext string) (string, error) {
	const maxAttempts = 10000
	if ext == "" {
		ext = ".mp4"
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		name := base + ext
		if attempt > 1 {
			name = fmt.Sprintf("%s-%d%s", base, attempt, ext)
		}
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return candidate, nil
			}
			return "", err
		}
	}
	return "", fmt.Errorf("exhausted output filename slots in %s", dir)
}

func (r *Remuxer) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, r.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := r.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist remux progress", logging.Error(err))
		return
	}
	*item = copy
}
