package api

import (
	"strings"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestJobRequestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     JobRequest
		wantErr string
	}{
		{name: "url only", req: JobRequest{SourceURL: "https://example.com/clip.mp4"}},
		{name: "path only", req: JobRequest{SourcePath: "/videos/clip.mp4"}},
		{name: "no source", req: JobRequest{}, wantErr: "source url or source path is required"},
		{
			name:    "both sources",
			req:     JobRequest{SourceURL: "https://example.com/clip.mp4", SourcePath: "/videos/clip.mp4"},
			wantErr: "mutually exclusive",
		},
		{name: "negative scale", req: JobRequest{SourcePath: "/videos/clip.mp4", Scale: -2}, wantErr: "scale"},
		{name: "negative fps", req: JobRequest{SourcePath: "/videos/clip.mp4", OutputFPS: -24}, wantErr: "output fps"},
		{name: "crf too high", req: JobRequest{SourcePath: "/videos/clip.mp4", CRF: intPtr(52)}, wantErr: "out of range"},
		{name: "crf negative", req: JobRequest{SourcePath: "/videos/clip.mp4", CRF: intPtr(-1)}, wantErr: "out of range"},
		{name: "crf boundary", req: JobRequest{SourcePath: "/videos/clip.mp4", CRF: intPtr(0)}},
		{name: "unknown preset", req: JobRequest{SourcePath: "/videos/clip.mp4", Preset: "turbo"}, wantErr: "unknown encoder preset"},
		{name: "known preset", req: JobRequest{SourcePath: "/videos/clip.mp4", Preset: "slow"}},
		{name: "unknown model", req: JobRequest{SourcePath: "/videos/clip.mp4", Model: "waifu2x"}, wantErr: "unknown model"},
		{name: "known model", req: JobRequest{SourcePath: "/videos/clip.mp4", Model: "realesrgan-x2plus"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate returned error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestJobRequestToQueueRequestTrimsFields(t *testing.T) {
	req := JobRequest{
		SourceURL:        "  https://example.com/clip.mp4  ",
		Title:            " Clip ",
		Scale:            2,
		TargetResolution: " 1080p ",
		Model:            " realesrgan-x2plus ",
		OutputFPS:        24,
		Preset:           " slow ",
	}
	got := req.ToQueueRequest()
	if got.SourceURL != "https://example.com/clip.mp4" {
		t.Fatalf("source url not trimmed: %q", got.SourceURL)
	}
	if got.Title != "Clip" || got.TargetResolution != "1080p" || got.Model != "realesrgan-x2plus" || got.Preset != "slow" {
		t.Fatalf("fields not trimmed: %+v", got)
	}
	if got.Scale != 2 || got.OutputFPS != 24 {
		t.Fatalf("numeric fields lost: %+v", got)
	}
}

func TestJobRequestToQueueRequestCRF(t *testing.T) {
	absent := JobRequest{SourcePath: "/videos/clip.mp4"}
	if got := absent.ToQueueRequest(); got.CRF != 0 {
		t.Fatalf("absent crf should map to zero, got %d", got.CRF)
	}
	explicit := JobRequest{SourcePath: "/videos/clip.mp4", CRF: intPtr(18)}
	if got := explicit.ToQueueRequest(); got.CRF != 18 {
		t.Fatalf("explicit crf lost: %d", got.CRF)
	}
}
