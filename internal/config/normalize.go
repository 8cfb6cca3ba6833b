package config

import (
	"os"
	"strings"
)

// Environment overrides applied during normalization. These take precedence
// over file values so containerized deployments can mount weights and select
// models without editing the config file.
const (
	envModel      = "UPSCALE_MODEL"
	envWeightsDir = "UPSCALE_WEIGHTS_DIR"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeTools()
	c.normalizeUpscaler()
	c.normalizeEncoding()
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if env := strings.TrimSpace(os.Getenv(envWeightsDir)); env != "" {
		c.Paths.WeightsDir = env
	}

	expanded := []struct {
		value *string
		def   string
	}{
		{&c.Paths.StagingDir, defaultStagingDir},
		{&c.Paths.OutputDir, defaultOutputDir},
		{&c.Paths.LogDir, defaultLogDir},
		{&c.Paths.WeightsDir, defaultWeightsDir},
	}
	for _, entry := range expanded {
		if strings.TrimSpace(*entry.value) == "" {
			*entry.value = entry.def
		}
		resolved, err := expandPath(*entry.value)
		if err != nil {
			return err
		}
		*entry.value = resolved
	}

	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpegBinary
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobeBinary
	}
	c.Tools.Worker = strings.TrimSpace(c.Tools.Worker)
	if c.Tools.Worker == "" {
		c.Tools.Worker = defaultWorkerBinary
	}
}

func (c *Config) normalizeUpscaler() {
	if env := strings.TrimSpace(os.Getenv(envModel)); env != "" {
		c.Upscaler.DefaultModel = env
	}
	c.Upscaler.DefaultModel = strings.TrimSpace(c.Upscaler.DefaultModel)
	if c.Upscaler.DefaultModel == "" {
		c.Upscaler.DefaultModel = defaultModel
	}
	if c.Upscaler.DefaultScale == 0 {
		c.Upscaler.DefaultScale = defaultScale
	}
	if c.Upscaler.TileEdge == 0 {
		c.Upscaler.TileEdge = defaultTileEdge
	}
	c.Upscaler.Precision = strings.ToLower(strings.TrimSpace(c.Upscaler.Precision))
	if c.Upscaler.Precision == "" {
		c.Upscaler.Precision = defaultPrecision
	}
}

func (c *Config) normalizeEncoding() {
	c.Encoding.Preset = strings.ToLower(strings.TrimSpace(c.Encoding.Preset))
	if c.Encoding.Preset == "" {
		c.Encoding.Preset = defaultPreset
	}
}

func (c *Config) normalizeWorkflow() {
	fill := []struct {
		value *int
		def   int
	}{
		{&c.Workflow.QueuePollInterval, defaultQueuePollInterval},
		{&c.Workflow.ErrorRetryInterval, defaultErrorRetryInterval},
		{&c.Workflow.HeartbeatInterval, defaultHeartbeatInterval},
		{&c.Workflow.HeartbeatTimeout, defaultHeartbeatTimeout},
		{&c.Workflow.FetchTimeout, defaultFetchTimeout},
		{&c.Workflow.ExtractTimeout, defaultExtractTimeout},
		{&c.Workflow.UpscaleTimeout, defaultUpscaleTimeout},
		{&c.Workflow.EncodeTimeout, defaultEncodeTimeout},
		{&c.Workflow.RemuxTimeout, defaultRemuxTimeout},
	}
	for _, entry := range fill {
		if *entry.value == 0 {
			*entry.value = entry.def
		}
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
