package assembly

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
	"github.com/703deuce/upscale/internal/media/ffprobe"
	"github.com/703deuce/upscale/internal/notifications"
	"github.com/703deuce/upscale/internal/queue"
	"github.com/703deuce/upscale/internal/services"
	"github.com/703deuce/upscale/internal/stage"
	"github.com/703deuce/upscale/internal/staging"
)

// Assembler encodes the upscaled frame sequence into an H.264 video stream.
type Assembler struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
	runner   ffmpeg.Runner
}

// NewAssembler constructs the assembly stage handler using default
// dependencies.
func NewAssembler(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Assembler {
	runner := ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary()))
	return NewAssemblerWithDependencies(cfg, store, logger, notifications.NewService(cfg), runner)
}

// NewAssemblerWithDependencies allows injecting collaborators (used in tests).
func NewAssemblerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, runner ffmpeg.Runner) *Assembler {
	a := &Assembler{store: store, cfg: cfg, notifier: notifier, runner: runner}
	a.SetLogger(logger)
	return a
}

// SetLogger updates the assembler's logging destination.
func (a *Assembler) SetLogger(logger *slog.Logger) {
	a.logger = logging.NewComponentLogger(logger, "assembly")
}

func (a *Assembler) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, a.logger)
	item.InitProgress("Encoding", "Preparing video assembly")
	logger.Debug("starting assembly preparation", logging.Int("frame_count", item.FrameCount))
	return nil
}

func (a *Assembler) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, a.logger)
	start := time.Now()

	wd := staging.JobDir(a.cfg.Paths.StagingDir, item.ID)
	upscaledDir, err := stage.RequireDir("assembly", wd.UpscaledDir(), "upscaled frames directory")
	if err != nil {
		return err
	}

	count, err := staging.CountSequence(upscaledDir, staging.UpscaledPrefix)
	if err != nil {
		return services.Wrap(
			services.ErrInference,
			"assembly",
			"verify frames",
			"Upscaled frame sequence has a gap; the encoder would misalign frames",
			err,
		)
	}
	if count == 0 {
		return services.Wrap(services.ErrValidation, "assembly", "verify frames", "No upscaled frames found; rerun upscaling", nil)
	}

	fps := outputFrameRate(item)
	crf := item.CRF
	if crf == 0 {
		crf = a.cfg.Encoding.CRF
	}
	preset := strings.TrimSpace(item.Preset)
	if preset == "" {
		preset = a.cfg.Encoding.Preset
	}

	encoded := wd.EncodedFile()
	logger.Info("starting video assembly",
		logging.Int("frame_count", count),
		logging.Float64("frame_rate", fps),
		logging.Int("crf", crf),
		logging.String("preset", preset),
	)
	a.updateProgress(ctx, item, fmt.Sprintf("Encoding %d frames", count), 5)

	const persistInterval = 2 * time.Second
	var lastPersisted time.Time
	sampler := logging.NewProgressSampler(10)
	onProgress := func(p ffmpeg.Progress) {
		percent := encodePercent(p.Frame, count)
		message := fmt.Sprintf("Encoded %d of %d frames", p.Frame, count)

		if sampler.ShouldLog(percent, "Encoding", message) {
			logger.Info("assembly progress",
				logging.Int64("frame", p.Frame),
				logging.Float64("encode_fps", p.FPS),
				logging.Float64("progress_percent", percent),
			)
		}

		now := time.Now()
		if !p.Done && !lastPersisted.IsZero() && now.Sub(lastPersisted) < persistInterval {
			return
		}
		lastPersisted = now
		copy := *item
		copy.ProgressMessage = message
		copy.ProgressPercent = percent
		if err := a.store.UpdateProgress(ctx, &copy); err != nil {
			logger.Warn("failed to persist assembly progress", logging.Error(err))
			return
		}
		*item = copy
	}

	req := ffmpeg.EncodeRequest{
		Pattern:   wd.UpscaledPattern(),
		FrameRate: fps,
		CRF:       crf,
		Preset:    preset,
		Output:    encoded,
	}
	if err := a.runner.EncodeSequence(ctx, req, onProgress); err != nil {
		return services.Wrap(services.ErrExternalTool, "assembly", "encode sequence", "Video encoding failed", err)
	}

	info, err := os.Stat(encoded)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "assembly", "verify output", "Encoder produced no output file", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "assembly", "verify output", "Encoder produced an empty output file", nil)
	}
	item.EncodedFile = encoded

	item.SetProgress("Encoding", fmt.Sprintf("Encoded %d frames", count), 100)
	logger.Info("assembly completed",
		logging.String("encoded_file", encoded),
		logging.Int64("size_bytes", info.Size()),
		logging.Duration("elapsed", time.Since(start)),
	)

	if a.notifier != nil {
		if err := a.notifier.Publish(ctx, notifications.EventEncodingCompleted, notifications.Payload{
			"title": item.Title,
		}); err != nil {
			logger.Warn("assembly notification failed", logging.Error(err))
		}
	}
	return nil
}

func (a *Assembler) HealthCheck(ctx context.Context) stage.Health {
	const name = "assembly"
	if a.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(a.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	if strings.TrimSpace(a.cfg.FFmpegBinary()) == "" {
		return stage.Unhealthy(name, "ffmpeg binary not configured")
	}
	return stage.Healthy(name)
}

// outputFrameRate picks the encode frame rate: an explicit request wins, then
// the probed source rate, then the probe fallback.
func outputFrameRate(item *queue.Item) float64 {
	if item.OutputFPS > 0 {
		return item.OutputFPS
	}
	if item.SourceFPS > 0 {
		return item.SourceFPS
	}
	return ffprobe.DefaultFrameRate
}

// encodePercent maps the encoder's frame counter onto the 5-95 band reserved
// for the ffmpeg run.
func encodePercent(frame int64, count int) float64 {
	if count <= 0 || frame < 0 {
		return -1
	}
	percent := 5 + float64(frame)/float64(count)*90
	if percent > 95 {
		percent = 95
	}
	return percent
}

func (a *Assembler) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, a.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := a.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist assembly progress", logging.Error(err))
		return
	}
	*item = copy
}
