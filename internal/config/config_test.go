package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(envModel, "")
	t.Setenv(envWeightsDir, "")

	cfg, path, exists, err := Load(filepath.Join(home, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatalf("expected missing config to report exists=false at %s", path)
	}
	if cfg.Upscaler.DefaultModel != "realesr-animevideov3" {
		t.Fatalf("unexpected default model: %s", cfg.Upscaler.DefaultModel)
	}
	if cfg.Upscaler.DefaultScale != 1.5 {
		t.Fatalf("unexpected default scale: %v", cfg.Upscaler.DefaultScale)
	}
	if cfg.Upscaler.TileEdge != 512 || cfg.Upscaler.TilePad != 10 {
		t.Fatalf("unexpected tile geometry: edge=%d pad=%d", cfg.Upscaler.TileEdge, cfg.Upscaler.TilePad)
	}
	if cfg.Encoding.CRF != 20 || cfg.Encoding.Preset != "medium" {
		t.Fatalf("unexpected encoding defaults: crf=%d preset=%s", cfg.Encoding.CRF, cfg.Encoding.Preset)
	}
	if cfg.API.Bind != "127.0.0.1:7613" {
		t.Fatalf("unexpected api bind: %s", cfg.API.Bind)
	}
	if !strings.HasPrefix(cfg.Paths.StagingDir, home) {
		t.Fatalf("staging dir not expanded under home: %s", cfg.Paths.StagingDir)
	}
}

func TestLoadParsesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(envModel, "")
	t.Setenv(envWeightsDir, "")

	payload := struct {
		Paths struct {
			StagingDir string `toml:"staging_dir"`
		} `toml:"paths"`
		API struct {
			Bind string `toml:"bind"`
		} `toml:"api"`
		Upscaler struct {
			DefaultModel string  `toml:"default_model"`
			DefaultScale float64 `toml:"default_scale"`
			TileEdge     int     `toml:"tile_edge"`
		} `toml:"upscaler"`
		Encoding struct {
			CRF    int    `toml:"crf"`
			Preset string `toml:"preset"`
		} `toml:"encoding"`
	}{}
	payload.Paths.StagingDir = "~/scratch/upscale"
	payload.API.Bind = "127.0.0.1:9000"
	payload.Upscaler.DefaultModel = "realesrgan-x2plus"
	payload.Upscaler.DefaultScale = 2.0
	payload.Upscaler.TileEdge = 256
	payload.Encoding.CRF = 18
	payload.Encoding.Preset = "slow"

	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	path := filepath.Join(home, "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %s to load, got exists=%v path=%s", path, exists, resolved)
	}
	if cfg.Paths.StagingDir != filepath.Join(home, "scratch/upscale") {
		t.Fatalf("staging dir not expanded: %s", cfg.Paths.StagingDir)
	}
	if cfg.API.Bind != "127.0.0.1:9000" {
		t.Fatalf("api bind not applied: %s", cfg.API.Bind)
	}
	if cfg.Upscaler.DefaultModel != "realesrgan-x2plus" {
		t.Fatalf("model not applied: %s", cfg.Upscaler.DefaultModel)
	}
	if cfg.Upscaler.DefaultScale != 2.0 {
		t.Fatalf("scale not applied: %v", cfg.Upscaler.DefaultScale)
	}
	if cfg.Upscaler.TileEdge != 256 {
		t.Fatalf("tile edge not applied: %d", cfg.Upscaler.TileEdge)
	}
	if cfg.Upscaler.TilePad != 10 {
		t.Fatalf("tile pad default lost: %d", cfg.Upscaler.TilePad)
	}
	if cfg.Encoding.CRF != 18 || cfg.Encoding.Preset != "slow" {
		t.Fatalf("encoding not applied: crf=%d preset=%s", cfg.Encoding.CRF, cfg.Encoding.Preset)
	}
	if cfg.Workflow.UpscaleTimeout != defaultUpscaleTimeout {
		t.Fatalf("workflow defaults lost: %d", cfg.Workflow.UpscaleTimeout)
	}
}

func TestEnvironmentOverridesBeatFileValues(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	weights := filepath.Join(home, "mounted-weights")
	t.Setenv(envModel, "realesrgan-x2plus")
	t.Setenv(envWeightsDir, weights)

	payload := struct {
		Paths struct {
			WeightsDir string `toml:"weights_dir"`
		} `toml:"paths"`
		Upscaler struct {
			DefaultModel string `toml:"default_model"`
		} `toml:"upscaler"`
	}{}
	payload.Paths.WeightsDir = "~/file-weights"
	payload.Upscaler.DefaultModel = "realesr-animevideov3"

	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	path := filepath.Join(home, "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Upscaler.DefaultModel != "realesrgan-x2plus" {
		t.Fatalf("env model override lost: %s", cfg.Upscaler.DefaultModel)
	}
	if cfg.Paths.WeightsDir != weights {
		t.Fatalf("env weights override lost: %s", cfg.Paths.WeightsDir)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, "config.toml")
	if err := os.WriteFile(path, []byte("[paths\nstaging_dir = \"x\""), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected parse error for malformed config")
	}
}

func TestCreateSample(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(envModel, "")
	t.Setenv(envWeightsDir, "")

	path := filepath.Join(home, "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("sample config not detected on disk")
	}
	if cfg.Upscaler.TileEdge != 512 {
		t.Fatalf("sample tile edge mismatch: %d", cfg.Upscaler.TileEdge)
	}
	if cfg.Encoding.Preset != "medium" {
		t.Fatalf("sample preset mismatch: %s", cfg.Encoding.Preset)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	base := func() Config {
		cfg := Default()
		cfg.Paths.StagingDir = "/tmp/staging"
		cfg.Paths.LogDir = "/tmp/logs"
		cfg.Paths.WeightsDir = "/tmp/weights"
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative scale", func(c *Config) { c.Upscaler.DefaultScale = -1 }},
		{"zero tile edge", func(c *Config) { c.Upscaler.TileEdge = 0 }},
		{"pad exceeds edge", func(c *Config) { c.Upscaler.TilePad = 600 }},
		{"bad precision", func(c *Config) { c.Upscaler.Precision = "int8" }},
		{"crf too high", func(c *Config) { c.Encoding.CRF = 52 }},
		{"unknown preset", func(c *Config) { c.Encoding.Preset = "turbo" }},
		{"zero poll interval", func(c *Config) { c.Workflow.QueuePollInterval = 0 }},
		{"heartbeat timeout too small", func(c *Config) {
			c.Workflow.HeartbeatInterval = 30
			c.Workflow.HeartbeatTimeout = 30
		}},
		{"zero notify timeout", func(c *Config) { c.Notifications.RequestTimeout = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("baseline config should validate: %v", err)
	}
}

func TestFFmpegBinaryFallsBack(t *testing.T) {
	cfg := Default()
	cfg.Tools.FFmpeg = "  "
	if got := cfg.FFmpegBinary(); got != "ffmpeg" {
		t.Fatalf("expected fallback ffmpeg, got %s", got)
	}
	cfg.Tools.FFmpeg = "/opt/ffmpeg/bin/ffmpeg"
	if got := cfg.FFmpegBinary(); got != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("expected configured path, got %s", got)
	}
}
