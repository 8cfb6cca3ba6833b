package staging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestJobDir(t *testing.T) {
	w := JobDir("/srv/staging", 42)
	if w.Root != filepath.Join("/srv/staging", "job-42") {
		t.Fatalf("unexpected root: %s", w.Root)
	}
}

func TestItemIDFromDir(t *testing.T) {
	tests := []struct {
		name   string
		wantID int64
		wantOK bool
	}{
		{"job-7", 7, true},
		{"job-123456", 123456, true},
		{"job-", 0, false},
		{"job-0", 0, false},
		{"job--3", 0, false},
		{"job-abc", 0, false},
		{"queue-7", 0, false},
		{"lost+found", 0, false},
	}

	for _, tt := range tests {
		id, ok := ItemIDFromDir(tt.name)
		if ok != tt.wantOK || id != tt.wantID {
			t.Errorf("ItemIDFromDir(%q) = (%d, %v), want (%d, %v)", tt.name, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestCreateAndRemove(t *testing.T) {
	w := JobDir(t.TempDir(), 3)
	if err := w.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, dir := range []string{w.Root, w.FramesDir(), w.UpscaledDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("%s is not a directory", dir)
		}
	}

	if err := w.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(w.Root); !os.IsNotExist(err) {
		t.Fatal("workdir should have been removed")
	}
}

func TestRemoveEmptyRootIsNoop(t *testing.T) {
	if err := (Workdir{}).Remove(); err != nil {
		t.Fatalf("Remove on empty root: %v", err)
	}
}

func TestSourceFile(t *testing.T) {
	w := JobDir("/tmp", 1)
	tests := []struct {
		ext  string
		want string
	}{
		{".mkv", "source.mkv"},
		{"mkv", "source.mkv"},
		{"", "source.mp4"},
		{"  ", "source.mp4"},
	}
	for _, tt := range tests {
		got := w.SourceFile(tt.ext)
		if filepath.Base(got) != tt.want {
			t.Errorf("SourceFile(%q) = %s, want base %s", tt.ext, got, tt.want)
		}
	}
}

func TestFindSource(t *testing.T) {
	w := JobDir(t.TempDir(), 5)
	if err := w.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, ok := w.FindSource(); ok {
		t.Fatal("FindSource should fail before staging")
	}

	staged := w.SourceFile(".mkv")
	if err := os.WriteFile(staged, []byte("video"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	found, ok := w.FindSource()
	if !ok || found != staged {
		t.Fatalf("FindSource = (%q, %v), want (%q, true)", found, ok, staged)
	}
}

func TestFramePatternsAndPaths(t *testing.T) {
	w := JobDir("/data", 9)

	if got := w.FramePattern(); got != filepath.Join("/data", "job-9", "frames", "frame_%08d.png") {
		t.Errorf("FramePattern = %s", got)
	}
	if got := w.UpscaledPattern(); got != filepath.Join("/data", "job-9", "upscaled", "upscaled_%08d.png") {
		t.Errorf("UpscaledPattern = %s", got)
	}
	if got := w.FramePath(7); filepath.Base(got) != "frame_00000007.png" {
		t.Errorf("FramePath(7) = %s", got)
	}
	if got := w.UpscaledPath(12345678); filepath.Base(got) != "upscaled_12345678.png" {
		t.Errorf("UpscaledPath(12345678) = %s", got)
	}
	if got := w.EncodedFile(); filepath.Base(got) != "noaudio.mp4" {
		t.Errorf("EncodedFile = %s", got)
	}
	if got := w.FinalFile(); filepath.Base(got) != "final.mp4" {
		t.Errorf("FinalFile = %s", got)
	}
}

func TestSequenceName(t *testing.T) {
	if got := SequenceName(FramePrefix, 1); got != "frame_00000001.png" {
		t.Errorf("SequenceName = %s", got)
	}
	if got := SequenceName(UpscaledPrefix, 240); got != "upscaled_00000240.png" {
		t.Errorf("SequenceName = %s", got)
	}
}
