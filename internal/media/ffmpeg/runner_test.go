package ffmpeg

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestBuildExtractArgs(t *testing.T) {
	args, err := buildExtractArgs(ExtractRequest{
		Input:   "/work/job-7/source.mp4",
		Pattern: "/work/job-7/frames/frame_%08d.png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-progress", "pipe:1", "-nostats",
		"-i", "/work/job-7/source.mp4",
		"-q:v", "1",
		"/work/job-7/frames/frame_%08d.png",
	}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("unexpected args:\n got %v\nwant %v", args, want)
	}
}

func TestBuildExtractArgsRequiresInput(t *testing.T) {
	if _, err := buildExtractArgs(ExtractRequest{Pattern: "out_%08d.png"}); err == nil {
		t.Fatal("expected error for missing input")
	}
	if _, err := buildExtractArgs(ExtractRequest{Input: "in.mp4"}); err == nil {
		t.Fatal("expected error for missing pattern")
	}
}

func TestBuildEncodeArgs(t *testing.T) {
	args, err := buildEncodeArgs(EncodeRequest{
		Pattern:   "/work/job-7/upscaled/upscaled_%08d.png",
		FrameRate: 24000.0 / 1001.0,
		CRF:       20,
		Preset:    "medium",
		Output:    "/work/job-7/noaudio.mp4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-progress", "pipe:1", "-nostats",
		"-framerate", "23.976023976023978",
		"-i", "/work/job-7/upscaled/upscaled_%08d.png",
		"-c:v", "libx264",
		"-crf", "20",
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
		"/work/job-7/noaudio.mp4",
	}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("unexpected args:\n got %v\nwant %v", args, want)
	}
}

func TestBuildEncodeArgsValidates(t *testing.T) {
	base := EncodeRequest{
		Pattern:   "u_%08d.png",
		FrameRate: 30,
		CRF:       20,
		Preset:    "medium",
		Output:    "out.mp4",
	}

	bad := base
	bad.FrameRate = 0
	if _, err := buildEncodeArgs(bad); err == nil {
		t.Fatal("expected error for zero frame rate")
	}

	bad = base
	bad.CRF = 52
	if _, err := buildEncodeArgs(bad); err == nil {
		t.Fatal("expected error for out-of-range crf")
	}

	bad = base
	bad.Output = ""
	if _, err := buildEncodeArgs(bad); err == nil {
		t.Fatal("expected error for missing output")
	}
}

func TestBuildRemuxArgs(t *testing.T) {
	args, err := buildRemuxArgs(RemuxRequest{
		Video:  "/work/job-7/noaudio.mp4",
		Source: "/work/job-7/source.mp4",
		Output: "/work/job-7/final.mp4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", "/work/job-7/noaudio.mp4",
		"-i", "/work/job-7/source.mp4",
		"-map", "0:v:0",
		"-map", "1:a?",
		"-c", "copy",
		"-shortest",
		"/work/job-7/final.mp4",
	}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("unexpected args:\n got %v\nwant %v", args, want)
	}
}

func TestFormatFrameRate(t *testing.T) {
	if got := FormatFrameRate(30); got != "30" {
		t.Fatalf("expected 30, got %s", got)
	}
	if got := FormatFrameRate(23.976); got != "23.976" {
		t.Fatalf("expected 23.976, got %s", got)
	}
}

func TestConsumeProgress(t *testing.T) {
	stream := strings.Join([]string{
		"frame=48",
		"fps=31.9",
		"out_time=00:00:02.000000",
		"speed=1.33x",
		"progress=continue",
		"frame=96",
		"fps=32.1",
		"out_time=00:00:04.000000",
		"speed=1.35x",
		"progress=end",
		"",
	}, "\n")

	var updates []Progress
	err := consumeProgress(strings.NewReader(stream), func(p Progress) {
		updates = append(updates, p)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	first := updates[0]
	if first.Frame != 48 || first.Done {
		t.Fatalf("unexpected first update: %+v", first)
	}
	if first.OutTime != 2*time.Second {
		t.Fatalf("unexpected first out_time: %v", first.OutTime)
	}
	last := updates[1]
	if last.Frame != 96 || !last.Done {
		t.Fatalf("unexpected final update: %+v", last)
	}
	if last.Speed != "1.35x" {
		t.Fatalf("unexpected speed: %s", last.Speed)
	}
}

func TestConsumeProgressIgnoresNoise(t *testing.T) {
	stream := "not a key value line\nframe=abc\nprogress=end\n"
	var updates []Progress
	err := consumeProgress(strings.NewReader(stream), func(p Progress) {
		updates = append(updates, p)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 1 || !updates[0].Done {
		t.Fatalf("expected single final update, got %+v", updates)
	}
}

func TestParseClock(t *testing.T) {
	d, ok := parseClock("01:02:03.500000")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	want := time.Hour + 2*time.Minute + 3*time.Second + 500*time.Millisecond
	if d != want {
		t.Fatalf("expected %v, got %v", want, d)
	}

	if _, ok := parseClock("05.5"); ok {
		t.Fatal("expected failure for missing fields")
	}
	if _, ok := parseClock("aa:bb:cc"); ok {
		t.Fatal("expected failure for garbage")
	}
}
