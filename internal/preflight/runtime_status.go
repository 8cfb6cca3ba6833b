package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/703deuce/upscale/internal/config"
	"github.com/703deuce/upscale/internal/engine"
)

// CheckNtfyFromConfig evaluates notification status from config and connectivity.
func CheckNtfyFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	check := CheckNtfy(context.Background(), cfg.Notifications.NtfyTopic)
	if check.Passed {
		return Result{Name: name, Passed: true, Detail: check.Detail}
	}
	return Result{Name: name, Detail: check.Detail}
}

// ModelStatus reports weight availability for one registered model.
type ModelStatus struct {
	Name      string
	Available bool
	Path      string
	SizeBytes int64
}

// ProbeModels reports weight availability for every registered model under
// the weights directory.
func ProbeModels(weightsDir string) []ModelStatus {
	names := engine.Names()
	statuses := make([]ModelStatus, 0, len(names))
	for _, name := range names {
		path := engine.WeightsPath(weightsDir, name)
		status := ModelStatus{Name: name, Path: path}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			status.Available = true
			status.SizeBytes = info.Size()
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// WeightsDetail renders a display-friendly summary for status UIs.
func (m ModelStatus) WeightsDetail() string {
	if !m.Available {
		return "weights missing"
	}
	return fmt.Sprintf("%.1f MiB", float64(m.SizeBytes)/(1<<20))
}
