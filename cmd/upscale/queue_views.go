package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/703deuce/upscale/internal/api"
)

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	if len(items) == 0 {
		return nil
	}
	sorted := api.SortQueueItemsNewestFirst(items)

	rows := make([][]string, 0, len(sorted))
	for _, item := range sorted {
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			queueItemTitle(item),
			formatStatusLabel(item.Status),
			formatProgress(item),
			formatDisplayTime(item.CreatedAt),
		})
	}
	return rows
}

func queueItemTitle(item api.QueueItem) string {
	title := strings.TrimSpace(item.Title)
	if title != "" {
		return title
	}
	if source := strings.TrimSpace(item.SourcePath); source != "" {
		return filepath.Base(source)
	}
	if source := strings.TrimSpace(item.SourceURL); source != "" {
		return source
	}
	return "Unknown"
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

// formatProgress condenses the stage and percentage into one cell. Terminal
// items show nothing; percent is omitted while a stage is still at zero.
func formatProgress(item api.QueueItem) string {
	stage := strings.TrimSpace(item.Progress.Stage)
	if stage == "" {
		return "-"
	}
	if item.Progress.Percent <= 0 {
		return formatStatusLabel(stage)
	}
	return fmt.Sprintf("%s %.0f%%", formatStatusLabel(stage), item.Progress.Percent)
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

// queueItemDetailLines renders the long-form view used by queue show.
func queueItemDetailLines(item api.QueueItem) []string {
	lines := []string{
		fmt.Sprintf("ID:       %d", item.ID),
		fmt.Sprintf("Title:    %s", queueItemTitle(item)),
		fmt.Sprintf("Status:   %s", formatStatusLabel(item.Status)),
	}
	if source := strings.TrimSpace(item.SourceURL); source != "" {
		lines = append(lines, fmt.Sprintf("Source:   %s", source))
	} else if source := strings.TrimSpace(item.SourcePath); source != "" {
		lines = append(lines, fmt.Sprintf("Source:   %s", source))
	}
	if item.Source.Width > 0 && item.Source.Height > 0 {
		video := fmt.Sprintf("%dx%d", item.Source.Width, item.Source.Height)
		if item.Source.FPS > 0 {
			video += fmt.Sprintf(" @ %.3f fps", item.Source.FPS)
		}
		if !item.Source.HasAudio {
			video += " (no audio)"
		}
		lines = append(lines, fmt.Sprintf("Video:    %s", video))
	}
	if item.Params.ResolvedScale > 0 {
		lines = append(lines, fmt.Sprintf("Scale:    %gx", item.Params.ResolvedScale))
	} else if item.Params.Scale > 0 {
		lines = append(lines, fmt.Sprintf("Scale:    %gx (requested)", item.Params.Scale))
	}
	if model := strings.TrimSpace(item.Params.Model); model != "" {
		lines = append(lines, fmt.Sprintf("Model:    %s", model))
	}
	if stage := strings.TrimSpace(item.Progress.Stage); stage != "" {
		progress := formatStatusLabel(stage)
		if item.Progress.Percent > 0 {
			progress += fmt.Sprintf(" (%.0f%%)", item.Progress.Percent)
		}
		if msg := strings.TrimSpace(item.Progress.Message); msg != "" {
			progress += " " + msg
		}
		lines = append(lines, fmt.Sprintf("Progress: %s", progress))
	}
	if created := formatDisplayTime(item.CreatedAt); created != "" {
		lines = append(lines, fmt.Sprintf("Created:  %s", created))
	}
	if updated := formatDisplayTime(item.UpdatedAt); updated != "" {
		lines = append(lines, fmt.Sprintf("Updated:  %s", updated))
	}
	if final := strings.TrimSpace(item.FinalFile); final != "" {
		lines = append(lines, fmt.Sprintf("Output:   %s", final))
	}
	if item.NeedsReview {
		reason := strings.TrimSpace(item.ReviewReason)
		if reason == "" {
			reason = "needs review"
		}
		lines = append(lines, fmt.Sprintf("Review:   %s", reason))
	}
	if errMsg := strings.TrimSpace(item.ErrorMessage); errMsg != "" {
		lines = append(lines, fmt.Sprintf("Error:    %s", errMsg))
	}
	return lines
}
