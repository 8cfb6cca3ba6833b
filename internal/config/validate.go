package config

import (
	"fmt"
	"strings"
)

var validPresets = map[string]bool{
	"ultrafast": true,
	"superfast": true,
	"veryfast":  true,
	"faster":    true,
	"fast":      true,
	"medium":    true,
	"slow":      true,
	"slower":    true,
	"veryslow":  true,
	"placebo":   true,
}

// IsValidPreset reports whether preset names a recognized x264 speed preset.
func IsValidPreset(preset string) bool {
	return validPresets[strings.ToLower(strings.TrimSpace(preset))]
}

// Validate checks the configuration for invalid values. It assumes normalize
// has already run, so empty fields have been filled with defaults.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateUpscaler(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePaths() error {
	required := map[string]string{
		"paths.staging_dir": c.Paths.StagingDir,
		"paths.log_dir":     c.Paths.LogDir,
		"paths.weights_dir": c.Paths.WeightsDir,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
	}
	return nil
}

func (c *Config) validateUpscaler() error {
	if strings.TrimSpace(c.Upscaler.DefaultModel) == "" {
		return fmt.Errorf("upscaler.default_model must not be empty")
	}
	if c.Upscaler.DefaultScale <= 0 {
		return fmt.Errorf("upscaler.default_scale must be positive, got %v", c.Upscaler.DefaultScale)
	}
	if c.Upscaler.TileEdge <= 0 {
		return fmt.Errorf("upscaler.tile_edge must be positive, got %d", c.Upscaler.TileEdge)
	}
	if c.Upscaler.TilePad < 0 {
		return fmt.Errorf("upscaler.tile_pad must not be negative, got %d", c.Upscaler.TilePad)
	}
	if c.Upscaler.TilePad >= c.Upscaler.TileEdge {
		return fmt.Errorf("upscaler.tile_pad (%d) must be smaller than upscaler.tile_edge (%d)", c.Upscaler.TilePad, c.Upscaler.TileEdge)
	}
	switch c.Upscaler.Precision {
	case "fp16", "fp32":
	default:
		return fmt.Errorf("upscaler.precision must be fp16 or fp32, got %q", c.Upscaler.Precision)
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if c.Encoding.CRF < 0 || c.Encoding.CRF > 51 {
		return fmt.Errorf("encoding.crf must be between 0 and 51, got %d", c.Encoding.CRF)
	}
	if !validPresets[c.Encoding.Preset] {
		return fmt.Errorf("encoding.preset %q is not a valid x264 preset", c.Encoding.Preset)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.heartbeat_interval":   c.Workflow.HeartbeatInterval,
		"workflow.heartbeat_timeout":    c.Workflow.HeartbeatTimeout,
		"workflow.fetch_timeout":        c.Workflow.FetchTimeout,
		"workflow.extract_timeout":      c.Workflow.ExtractTimeout,
		"workflow.upscale_timeout":      c.Workflow.UpscaleTimeout,
		"workflow.encode_timeout":       c.Workflow.EncodeTimeout,
		"workflow.remux_timeout":        c.Workflow.RemuxTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return fmt.Errorf("workflow.heartbeat_timeout (%d) must be greater than workflow.heartbeat_interval (%d)",
			c.Workflow.HeartbeatTimeout, c.Workflow.HeartbeatInterval)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	return ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", key, value)
		}
	}
	return nil
}
