package intake_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/703deuce/upscale/internal/intake"
	"github.com/703deuce/upscale/internal/logging"
	"github.com/703deuce/upscale/internal/media/ffprobe"
	"github.com/703deuce/upscale/internal/notifications"
	"github.com/703deuce/upscale/internal/queue"
	"github.com/703deuce/upscale/internal/services"
	"github.com/703deuce/upscale/internal/staging"
	"github.com/703deuce/upscale/internal/testsupport"
)

const sourceFixtureSize = 2 * 1024 * 1024

type stubNotifier struct {
	fetched []string
}

func (s *stubNotifier) Publish(ctx context.Context, event notifications.Event, payload notifications.Payload) error {
	if event == notifications.EventFetchCompleted && payload != nil {
		if title, _ := payload["title"].(string); title != "" {
			s.fetched = append(s.fetched, title)
		}
	}
	return nil
}

func stubIntakeProbe(t *testing.T, meta ffprobe.Metadata, err error) {
	t.Helper()
	restore := intake.SetProbeForTests(func(context.Context, string, string) (ffprobe.Metadata, error) {
		return meta, err
	})
	t.Cleanup(restore)
}

func TestFetcherStagesLocalSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	stubIntakeProbe(t, ffprobe.Metadata{FPS: 24000.0 / 1001.0, Width: 1280, Height: 720, HasAudio: true, Duration: 12}, nil)

	source := filepath.Join(t.TempDir(), "vacation clip.mkv")
	testsupport.WriteFile(t, source, sourceFixtureSize)
	item := testsupport.NewJob(t, store, source)
	item.Status = queue.StatusFetching

	notifier := &stubNotifier{}
	handler := intake.NewFetcherWithDependencies(cfg, store, logging.NewNop(), notifier, http.DefaultClient)
	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	wd := staging.JobDir(cfg.Paths.StagingDir, item.ID)
	want := wd.SourceFile(".mkv")
	if item.StagedFile != want {
		t.Fatalf("StagedFile = %q, want %q", item.StagedFile, want)
	}
	info, err := os.Stat(item.StagedFile)
	if err != nil {
		t.Fatalf("stat staged file: %v", err)
	}
	if info.Size() != sourceFixtureSize {
		t.Fatalf("staged size = %d, want %d", info.Size(), sourceFixtureSize)
	}
	if item.ResolvedScale != 1.5 {
		t.Fatalf("ResolvedScale = %v, want 1.5", item.ResolvedScale)
	}
	if got := item.SourceFPS; got < 23.975 || got > 23.977 {
		t.Fatalf("SourceFPS = %v, want about 23.976", got)
	}
	if item.SourceWidth != 1280 || item.SourceHeight != 720 {
		t.Fatalf("source dimensions = %dx%d, want 1280x720", item.SourceWidth, item.SourceHeight)
	}
	if !item.HasAudio {
		t.Fatal("expected HasAudio to be recorded")
	}
	if len(notifier.fetched) != 1 {
		t.Fatalf("fetch notifications = %d, want 1", len(notifier.fetched))
	}
}

func TestFetcherDownloadsSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	stubIntakeProbe(t, ffprobe.Metadata{FPS: 30, Width: 640, Height: 360}, nil)

	payload := strings.Repeat("v", 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	item := testsupport.NewURLJob(t, store, server.URL+"/road-trip.mp4")
	item.Status = queue.StatusFetching

	handler := intake.NewFetcherWithDependencies(cfg, store, logging.NewNop(), &stubNotifier{}, server.Client())
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	wd := staging.JobDir(cfg.Paths.StagingDir, item.ID)
	want := wd.SourceFile(".mp4")
	if item.StagedFile != want {
		t.Fatalf("StagedFile = %q, want %q", item.StagedFile, want)
	}
	data, err := os.ReadFile(item.StagedFile)
	if err != nil {
		t.Fatalf("read staged file: %v", err)
	}
	if string(data) != payload {
		t.Fatalf("staged content mismatch: got %d bytes", len(data))
	}
}

func TestFetcherDownloadHTTPFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	item := testsupport.NewURLJob(t, store, server.URL+"/missing.mp4")
	item.Status = queue.StatusFetching

	handler := intake.NewFetcherWithDependencies(cfg, store, logging.NewNop(), &stubNotifier{}, server.Client())
	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found marker, got %v", err)
	}
}

func TestFetcherDownloadNetworkFailureIsTransient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	item := testsupport.NewURLJob(t, store, server.URL+"/gone.mp4")
	item.Status = queue.StatusFetching

	handler := intake.NewFetcherWithDependencies(cfg, store, logging.NewNop(), &stubNotifier{}, http.DefaultClient)
	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestFetcherRejectsMissingLocalSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	item := testsupport.NewJob(t, store, filepath.Join(t.TempDir(), "nope.mkv"))
	item.Status = queue.StatusFetching

	handler := intake.NewFetcherWithDependencies(cfg, store, logging.NewNop(), &stubNotifier{}, http.DefaultClient)
	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found marker, got %v", err)
	}
}

func TestFetcherRejectsInvalidLocalSources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.mkv")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write empty fixture: %v", err)
	}

	cases := []struct {
		name   string
		source string
	}{
		{name: "directory", source: dir},
		{name: "empty file", source: empty},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := testsupport.NewJob(t, store, tc.source)
			item.Status = queue.StatusFetching

			handler := intake.NewFetcherWithDependencies(cfg, store, logging.NewNop(), &stubNotifier{}, http.DefaultClient)
			err := handler.Execute(context.Background(), item)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation marker, got %v", err)
			}
		})
	}
}

func TestFetcherValidatesRequest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	source := filepath.Join(t.TempDir(), "clip.mkv")
	testsupport.WriteFile(t, source, sourceFixtureSize)

	cases := []struct {
		name     string
		mutate   func(*queue.Item)
		contains string
	}{
		{
			name:     "negative scale",
			mutate:   func(item *queue.Item) { item.Scale = -1 },
			contains: "Scale",
		},
		{
			name:     "negative output fps",
			mutate:   func(item *queue.Item) { item.OutputFPS = -24 },
			contains: "frame rate",
		},
		{
			name:     "crf out of range",
			mutate:   func(item *queue.Item) { item.CRF = 99 },
			contains: "CRF",
		},
		{
			name:     "unknown preset",
			mutate:   func(item *queue.Item) { item.Preset = "warp" },
			contains: "preset",
		},
		{
			name:     "unknown model",
			mutate:   func(item *queue.Item) { item.Model = "waifu2x" },
			contains: "realesr-animevideov3",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := testsupport.NewJob(t, store, source)
			item.Status = queue.StatusFetching
			tc.mutate(item)

			handler := intake.NewFetcherWithDependencies(cfg, store, logging.NewNop(), &stubNotifier{}, http.DefaultClient)
			err := handler.Execute(context.Background(), item)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation marker, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.contains) {
				t.Fatalf("error %q does not mention %q", err, tc.contains)
			}
		})
	}
}

func TestFetcherProbeFailureDegradesToDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	stubIntakeProbe(t, ffprobe.Metadata{FPS: ffprobe.DefaultFrameRate}, errors.New("ffprobe exploded"))

	source := filepath.Join(t.TempDir(), "clip.mkv")
	testsupport.WriteFile(t, source, sourceFixtureSize)
	item := testsupport.NewJob(t, store, source)
	item.Status = queue.StatusFetching

	handler := intake.NewFetcherWithDependencies(cfg, store, logging.NewNop(), &stubNotifier{}, http.DefaultClient)
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.SourceFPS != ffprobe.DefaultFrameRate {
		t.Fatalf("SourceFPS = %v, want %v", item.SourceFPS, ffprobe.DefaultFrameRate)
	}
	if item.SourceWidth != 0 || item.SourceHeight != 0 {
		t.Fatalf("expected unknown dimensions, got %dx%d", item.SourceWidth, item.SourceHeight)
	}
	if item.HasAudio {
		t.Fatal("expected HasAudio to default to false")
	}
}

func TestFetcherResolvesScalePrecedence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	stubIntakeProbe(t, ffprobe.Metadata{FPS: 30}, nil)

	source := filepath.Join(t.TempDir(), "clip.mkv")
	testsupport.WriteFile(t, source, sourceFixtureSize)

	cases := []struct {
		name   string
		scale  float64
		target string
		want   float64
	}{
		{name: "named target", scale: 0, target: "2k", want: 2.0},
		{name: "explicit beats target", scale: 3.0, target: "1080p", want: 3.0},
		{name: "default", scale: 0, target: "", want: 1.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := testsupport.NewJob(t, store, source)
			item.Status = queue.StatusFetching
			item.Scale = tc.scale
			item.TargetResolution = tc.target

			handler := intake.NewFetcherWithDependencies(cfg, store, logging.NewNop(), &stubNotifier{}, http.DefaultClient)
			if err := handler.Execute(context.Background(), item); err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if item.ResolvedScale != tc.want {
				t.Fatalf("ResolvedScale = %v, want %v", item.ResolvedScale, tc.want)
			}
		})
	}
}

func TestFetcherHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	handler := intake.NewFetcherWithDependencies(cfg, store, logging.NewNop(), &stubNotifier{}, http.DefaultClient)
	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy, got %+v", health)
	}

	broken := *cfg
	broken.Paths.StagingDir = "   "
	handler = intake.NewFetcherWithDependencies(&broken, store, logging.NewNop(), &stubNotifier{}, http.DefaultClient)
	if health := handler.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy with blank staging dir")
	}
}
