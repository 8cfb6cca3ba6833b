package api

import (
	"fmt"
	"strings"

	"github.com/703deuce/upscale/internal/config"
	"github.com/703deuce/upscale/internal/engine"
	"github.com/703deuce/upscale/internal/queue"
)

// Validate checks request shape before the job is enqueued. Checks that
// depend on daemon configuration (the defaulted model, weights presence)
// run again inside the intake stage.
func (r JobRequest) Validate() error {
	sourceURL := strings.TrimSpace(r.SourceURL)
	sourcePath := strings.TrimSpace(r.SourcePath)
	if sourceURL == "" && sourcePath == "" {
		return fmt.Errorf("a source url or source path is required")
	}
	if sourceURL != "" && sourcePath != "" {
		return fmt.Errorf("source url and source path are mutually exclusive")
	}
	if r.Scale < 0 {
		return fmt.Errorf("scale %v is invalid; omit it or use a positive value", r.Scale)
	}
	if r.OutputFPS < 0 {
		return fmt.Errorf("output fps %v is invalid; omit it or use a positive value", r.OutputFPS)
	}
	if r.CRF != nil && (*r.CRF < 0 || *r.CRF > 51) {
		return fmt.Errorf("crf %d is out of range; use a value between 0 and 51", *r.CRF)
	}
	if preset := strings.TrimSpace(r.Preset); preset != "" && !config.IsValidPreset(preset) {
		return fmt.Errorf("unknown encoder preset %q", preset)
	}
	if model := strings.TrimSpace(r.Model); model != "" {
		if _, ok := engine.Lookup(model); !ok {
			return fmt.Errorf("unknown model %q; supported models: %s", model, strings.Join(engine.Names(), ", "))
		}
	}
	return nil
}

// ToQueueRequest converts the transport request into its persistence form.
// An absent CRF maps to zero, which the assembly stage replaces with the
// configured default.
func (r JobRequest) ToQueueRequest() queue.JobRequest {
	req := queue.JobRequest{
		SourceURL:        strings.TrimSpace(r.SourceURL),
		SourcePath:       strings.TrimSpace(r.SourcePath),
		Title:            strings.TrimSpace(r.Title),
		Scale:            r.Scale,
		TargetResolution: strings.TrimSpace(r.TargetResolution),
		Model:            strings.TrimSpace(r.Model),
		OutputFPS:        r.OutputFPS,
		Preset:           strings.TrimSpace(r.Preset),
	}
	if r.CRF != nil {
		req.CRF = *r.CRF
	}
	return req
}
