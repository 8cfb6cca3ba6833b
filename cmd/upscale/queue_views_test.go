package main

import (
	"strings"
	"testing"

	"github.com/703deuce/upscale/internal/api"
)

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"pending":     "Pending",
		"upscaling":   "Upscaling",
		"not_started": "Not Started",
		"  failed  ":  "Failed",
		"":            "",
	}
	for input, want := range cases {
		if got := formatStatusLabel(input); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatDisplayTime(t *testing.T) {
	if got := formatDisplayTime("2026-03-01T10:30:00Z"); got != "2026-03-01 10:30" {
		t.Fatalf("unexpected display time: %q", got)
	}
	if got := formatDisplayTime("not a timestamp"); got != "not a timestamp" {
		t.Fatalf("expected passthrough for junk input, got %q", got)
	}
	if got := formatDisplayTime(""); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestFormatProgress(t *testing.T) {
	if got := formatProgress(api.QueueItem{}); got != "-" {
		t.Fatalf("expected dash for no stage, got %q", got)
	}
	item := api.QueueItem{Progress: api.QueueProgress{Stage: "upscaling"}}
	if got := formatProgress(item); got != "Upscaling" {
		t.Fatalf("expected stage label, got %q", got)
	}
	item.Progress.Percent = 42.4
	if got := formatProgress(item); got != "Upscaling 42%" {
		t.Fatalf("expected stage with percent, got %q", got)
	}
}

func TestQueueItemTitle(t *testing.T) {
	if got := queueItemTitle(api.QueueItem{Title: "Named"}); got != "Named" {
		t.Fatalf("expected explicit title, got %q", got)
	}
	if got := queueItemTitle(api.QueueItem{SourcePath: "/videos/clip.mkv"}); got != "clip.mkv" {
		t.Fatalf("expected base name, got %q", got)
	}
	if got := queueItemTitle(api.QueueItem{SourceURL: "https://example.com/clip.mp4"}); got != "https://example.com/clip.mp4" {
		t.Fatalf("expected url, got %q", got)
	}
	if got := queueItemTitle(api.QueueItem{}); got != "Unknown" {
		t.Fatalf("expected Unknown fallback, got %q", got)
	}
}

func TestBuildQueueListRowsOrdersNewestFirst(t *testing.T) {
	items := []api.QueueItem{
		{ID: 1, Title: "older", CreatedAt: "2026-03-01T08:00:00Z"},
		{ID: 2, Title: "newer", CreatedAt: "2026-03-01T09:00:00Z"},
		{ID: 3, Title: "tie-high", CreatedAt: "2026-03-01T08:00:00Z"},
	}
	rows := buildQueueListRows(items)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][1] != "newer" {
		t.Fatalf("expected newest first, got %q", rows[0][1])
	}
	if rows[1][1] != "tie-high" {
		t.Fatalf("expected higher id to win the tie, got %q", rows[1][1])
	}
	if rows[2][1] != "older" {
		t.Fatalf("expected oldest last, got %q", rows[2][1])
	}
}

func TestBuildQueueStatusRowsSortsKeys(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{"pending": 2, "completed": 1, "failed": 3})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "Completed" || rows[1][0] != "Failed" || rows[2][0] != "Pending" {
		t.Fatalf("unexpected row order: %v", rows)
	}
	if rows[2][1] != "2" {
		t.Fatalf("unexpected pending count: %v", rows[2])
	}
}

func TestQueueItemDetailLines(t *testing.T) {
	item := api.QueueItem{
		ID:           7,
		Title:        "Concert",
		Status:       "review",
		SourcePath:   "/videos/concert.mkv",
		Source:       api.SourceInfo{Width: 1280, Height: 720, FPS: 23.976, HasAudio: true},
		Params:       api.JobParams{ResolvedScale: 1.5, Model: "realesr-animevideov3"},
		CreatedAt:    "2026-03-01T10:00:00Z",
		FinalFile:    "/output/Concert.mp4",
		NeedsReview:  true,
		ReviewReason: "source below minimum resolution",
	}
	lines := queueItemDetailLines(item)
	joined := strings.Join(lines, "\n")
	requireContains(t, joined, "ID:       7")
	requireContains(t, joined, "Status:   Review")
	requireContains(t, joined, "1280x720 @ 23.976 fps")
	requireContains(t, joined, "Scale:    1.5x")
	requireContains(t, joined, "Model:    realesr-animevideov3")
	requireContains(t, joined, "Output:   /output/Concert.mp4")
	requireContains(t, joined, "Review:   source below minimum resolution")
}
