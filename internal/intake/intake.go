package intake

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/703deuce/upscale/internal/config"
	"github.com/703deuce/upscale/internal/engine"
	"github.com/703deuce/upscale/internal/fileutil"
	"github.com/703deuce/upscale/internal/logging"
	"github.com/703deuce/upscale/internal/notifications"
	"github.com/703deuce/upscale/internal/queue"
	"github.com/703deuce/upscale/internal/services"
	"github.com/703deuce/upscale/internal/stage"
	"github.com/703deuce/upscale/internal/staging"
)

// Fetcher stages a job's source video into its workdir and records the
// probed source facts the later stages plan around.
type Fetcher struct {
	store      *queue.Store
	cfg        *config.Config
	logger     *slog.Logger
	notifier   notifications.Service
	httpClient *http.Client
}

// NewFetcher constructs the intake stage handler using default dependencies.
func NewFetcher(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Fetcher {
	// No client-level timeout: downloads of long videos run until the stage
	// context expires.
	client := &http.Client{}
	return NewFetcherWithDependencies(cfg, store, logger, notifications.NewService(cfg), client)
}

// NewFetcherWithDependencies allows injecting collaborators (used in tests).
func NewFetcherWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, httpClient *http.Client) *Fetcher {
	f := &Fetcher{store: store, cfg: cfg, notifier: notifier, httpClient: httpClient}
	if f.httpClient == nil {
		f.httpClient = http.DefaultClient
	}
	f.SetLogger(logger)
	return f
}

// SetLogger updates the fetcher's logging destination.
func (f *Fetcher) SetLogger(logger *slog.Logger) {
	f.logger = logging.NewComponentLogger(logger, "intake")
}

func (f *Fetcher) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, f.logger)
	item.InitProgress("Fetching", "Resolving source video")
	logger.Debug("starting fetch preparation", logging.String("source", item.Source()))
	return nil
}

func (f *Fetcher) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, f.logger)
	logger.Info("starting fetch", logging.String("source", item.Source()))

	if err := f.validateRequest(item); err != nil {
		return err
	}

	item.ResolvedScale = engine.ResolveScale(item.Scale, item.TargetResolution, f.cfg.Upscaler.DefaultScale)

	wd := staging.JobDir(f.cfg.Paths.StagingDir, item.ID)
	if err := wd.Create(); err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"intake",
			"create workdir",
			"Failed to create staging workdir; set staging_dir to a writable path",
			err,
		)
	}

	f.updateProgress(ctx, item, "Staging source video", 10)

	staged, err := f.stageSource(ctx, item, wd)
	if err != nil {
		return err
	}
	item.StagedFile = staged
	if strings.TrimSpace(item.Title) == "" {
		item.Title = deriveTitle(item.Source())
	}

	f.updateProgress(ctx, item, "Probing source metadata", 80)

	meta, probeErr := probeSource(ctx, f.cfg.FFprobeBinary(), staged)
	if probeErr != nil {
		logger.Warn("source probe degraded to defaults",
			logging.Error(probeErr),
			logging.Float64("default_fps", meta.FPS),
			logging.String(logging.FieldErrorHint, "check that ffprobe is installed and the source decodes"),
		)
	}
	item.SourceFPS = meta.FPS
	item.SourceWidth = meta.Width
	item.SourceHeight = meta.Height
	item.HasAudio = meta.HasAudio

	item.SetProgress("Fetching", fmt.Sprintf("Fetched %s", filepath.Base(staged)), 100)
	logger.Info("fetch completed",
		logging.String("staged_file", staged),
		logging.Float64("source_fps", meta.FPS),
		logging.Int("source_width", meta.Width),
		logging.Int("source_height", meta.Height),
		logging.Bool("has_audio", meta.HasAudio),
		logging.Float64("resolved_scale", item.ResolvedScale),
	)

	if f.notifier != nil {
		if err := f.notifier.Publish(ctx, notifications.EventFetchCompleted, notifications.Payload{
			"title": item.Title,
		}); err != nil {
			logger.Warn("fetch notification failed", logging.Error(err))
		}
	}
	return nil
}

func (f *Fetcher) HealthCheck(ctx context.Context) stage.Health {
	const name = "intake"
	if f.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(f.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	if strings.TrimSpace(f.cfg.FFprobeBinary()) == "" {
		return stage.Unhealthy(name, "ffprobe binary not configured")
	}
	return stage.Healthy(name)
}

func (f *Fetcher) validateRequest(item *queue.Item) error {
	if strings.TrimSpace(item.SourceURL) == "" && strings.TrimSpace(item.SourcePath) == "" {
		return services.Wrap(
			services.ErrValidation,
			"intake",
			"validate request",
			"Job carries neither a source URL nor a source path",
			nil,
		)
	}
	if item.Scale < 0 {
		return services.Wrap(
			services.ErrValidation,
			"intake",
			"validate request",
			fmt.Sprintf("Scale %v is invalid; omit it or use a positive value", item.Scale),
			nil,
		)
	}
	if item.OutputFPS < 0 {
		return services.Wrap(
			services.ErrValidation,
			"intake",
			"validate request",
			fmt.Sprintf("Output frame rate %v is invalid; omit it or use a positive value", item.OutputFPS),
			nil,
		)
	}
	if item.CRF < 0 || item.CRF > 51 {
		return services.Wrap(
			services.ErrValidation,
			"intake",
			"validate request",
			fmt.Sprintf("CRF %d is out of range; use a value between 0 and 51", item.CRF),
			nil,
		)
	}
	if preset := strings.TrimSpace(item.Preset); preset != "" && !config.IsValidPreset(preset) {
		return services.Wrap(
			services.ErrValidation,
			"intake",
			"validate request",
			fmt.Sprintf("Unknown encoder preset %q", preset),
			nil,
		)
	}
	model := strings.TrimSpace(item.Model)
	if model == "" {
		model = f.cfg.Upscaler.DefaultModel
	}
	if _, ok := engine.Lookup(model); !ok {
		return services.Wrap(
			services.ErrValidation,
			"intake",
			"validate request",
			fmt.Sprintf("Unknown model %q; supported models: %s", model, strings.Join(engine.Names(), ", ")),
			nil,
		)
	}
	return nil
}

func (f *Fetcher) stageSource(ctx context.Context, item *queue.Item, wd staging.Workdir) (string, error) {
	if sourceURL := strings.TrimSpace(item.SourceURL); sourceURL != "" {
		return f.downloadSource(ctx, sourceURL, wd)
	}
	return f.copyLocalSource(item.SourcePath, wd)
}

func (f *Fetcher) downloadSource(ctx context.Context, sourceURL string, wd staging.Workdir) (string, error) {
	staged := wd.SourceFile(sourceExt(sourceURL))
	status, err := download(ctx, f.httpClient, sourceURL, staged)
	if err != nil {
		if status >= 400 && status < 500 {
			return "", services.Wrap(
				services.ErrNotFound,
				"intake",
				"download source",
				fmt.Sprintf("Source URL answered HTTP %d; verify the URL and retry", status),
				err,
			)
		}
		return "", services.Wrap(
			services.ErrTransient,
			"intake",
			"download source",
			"Failed to download source video; check the network and the URL",
			err,
		)
	}
	info, err := os.Stat(staged)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "intake", "stage source", "Downloaded file vanished from staging", err)
	}
	if info.Size() == 0 {
		return "", services.Wrap(
			services.ErrValidation,
			"intake",
			"stage source",
			"Downloaded source file is empty",
			nil,
		)
	}
	return staged, nil
}

func (f *Fetcher) copyLocalSource(sourcePath string, wd staging.Workdir) (string, error) {
	source := strings.TrimSpace(sourcePath)
	info, err := os.Stat(source)
	if err != nil {
		return "", services.Wrap(
			services.ErrNotFound,
			"intake",
			"stat source",
			fmt.Sprintf("Source file %s is missing or unreadable", source),
			err,
		)
	}
	if info.IsDir() {
		return "", services.Wrap(
			services.ErrValidation,
			"intake",
			"stat source",
			fmt.Sprintf("Source path %s is a directory, not a video file", source),
			nil,
		)
	}
	if info.Size() == 0 {
		return "", services.Wrap(
			services.ErrValidation,
			"intake",
			"stat source",
			fmt.Sprintf("Source file %s is empty", source),
			nil,
		)
	}

	staged := wd.SourceFile(filepath.Ext(source))
	if err := fileutil.CopyFile(source, staged); err != nil {
		return "", services.Wrap(services.ErrTransient, "intake", "stage source", "Failed to copy source into staging", err)
	}
	return staged, nil
}

func (f *Fetcher) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, f.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := f.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist fetch progress", logging.Error(err))
		return
	}
	*item = copy
}
