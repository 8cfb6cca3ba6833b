package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
	WeightsDir string `toml:"weights_dir"`
}

// API contains settings for the daemon's HTTP control listener.
type API struct {
	Bind string `toml:"bind"`
	// Token guards the API with bearer authentication when non-empty.
	Token string `toml:"token"`
}

// Tools contains names or paths of the external executables the pipeline drives.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
	Worker  string `toml:"worker"`
}

// Upscaler contains model selection and tiling geometry for inference.
type Upscaler struct {
	// DefaultModel names the network used when a job does not request one.
	// Weight files are resolved as <weights_dir>/<model>.pth.
	DefaultModel string `toml:"default_model"`
	// DefaultScale is the output scale applied when a job requests neither an
	// explicit scale nor a target resolution.
	DefaultScale float64 `toml:"default_scale"`
	// TileEdge is the side length of the square tiles frames are split into
	// before inference. Larger tiles need more device memory.
	TileEdge int `toml:"tile_edge"`
	// TilePad is the overlap margin added around each tile to suppress seams.
	TilePad   int    `toml:"tile_pad"`
	Precision string `toml:"precision"`
}

// Encoding contains defaults for the H.264 output encode.
type Encoding struct {
	CRF    int    `toml:"crf"`
	Preset string `toml:"preset"`
}

// Workflow contains configuration for daemon timing and intervals.
// Interval and timeout values are in seconds.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	FetchTimeout       int `toml:"fetch_timeout"`
	ExtractTimeout     int `toml:"extract_timeout"`
	UpscaleTimeout     int `toml:"upscale_timeout"`
	EncodeTimeout      int `toml:"encode_timeout"`
	RemuxTimeout       int `toml:"remux_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Queue          bool   `toml:"queue"`
	Completion     bool   `toml:"completion"`
	Review         bool   `toml:"review"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the upscaling service.
//
// Configuration sections by subsystem:
//   - Paths: staging/output/log/weights directories
//   - API: HTTP control listener bind address and optional bearer token
//   - Tools: ffmpeg, ffprobe, and inference worker executables
//   - Upscaler: model selection, scale default, and tile geometry
//   - Encoding: H.264 CRF and preset defaults for assembled output
//   - Workflow: daemon polling intervals, heartbeats, and stage timeouts
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Tools         Tools         `toml:"tools"`
	Upscaler      Upscaler      `toml:"upscaler"`
	Encoding      Encoding      `toml:"encoding"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/upscale/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/upscale/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("upscale.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// OutputDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir, c.Paths.WeightsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for extraction, encoding, and remuxing.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Tools.FFmpeg); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Tools.FFprobe); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

// WorkerBinary returns the inference worker executable driven by the upscale stage.
func (c *Config) WorkerBinary() string {
	if bin := strings.TrimSpace(c.Tools.Worker); bin != "" {
		return bin
	}
	return defaultWorkerBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
