package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	jobDirPrefix    = "job-"
	sourceStem      = "source"
	framesDirName   = "frames"
	upscaledDirName = "upscaled"
	encodedFileName = "noaudio.mp4"
	finalFileName   = "final.mp4"

	// FramePrefix names extracted frames, UpscaledPrefix their upscaled
	// counterparts. Both use the same zero-padded index so frame N of the
	// input maps to frame N of the output.
	FramePrefix    = "frame_"
	UpscaledPrefix = "upscaled_"
	FrameExt       = ".png"

	indexDigits = 8
)

// Workdir is the staging directory layout for a single queue item. All
// intermediate artifacts for the item live under Root and are removed
// together when the item finishes, succeed or fail.
type Workdir struct {
	Root string
}

// JobDir returns the workdir for a queue item.
func JobDir(stagingDir string, itemID int64) Workdir {
	return Workdir{Root: filepath.Join(stagingDir, fmt.Sprintf("%s%d", jobDirPrefix, itemID))}
}

// ItemIDFromDir parses the item ID out of a workdir base name.
func ItemIDFromDir(name string) (int64, bool) {
	rest, found := strings.CutPrefix(name, jobDirPrefix)
	if !found || rest == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Create makes the workdir and its frame subdirectories.
func (w Workdir) Create() error {
	for _, dir := range []string{w.Root, w.FramesDir(), w.UpscaledDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create workdir %q: %w", dir, err)
		}
	}
	return nil
}

// Remove deletes the workdir and everything in it.
func (w Workdir) Remove() error {
	if strings.TrimSpace(w.Root) == "" {
		return nil
	}
	return os.RemoveAll(w.Root)
}

// SourceFile returns the staged source path for the given extension. The
// extension keeps its original container so ffmpeg sniffing stays accurate.
func (w Workdir) SourceFile(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		ext = ".mp4"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(w.Root, sourceStem+ext)
}

// FindSource locates a previously staged source file regardless of extension.
func (w Workdir) FindSource() (string, bool) {
	matches, err := filepath.Glob(filepath.Join(w.Root, sourceStem+".*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// FramesDir returns the directory holding extracted frames.
func (w Workdir) FramesDir() string {
	return filepath.Join(w.Root, framesDirName)
}

// UpscaledDir returns the directory holding upscaled frames.
func (w Workdir) UpscaledDir() string {
	return filepath.Join(w.Root, upscaledDirName)
}

// FramePattern returns the printf-style pattern ffmpeg uses to write frames.
func (w Workdir) FramePattern() string {
	return filepath.Join(w.FramesDir(), fmt.Sprintf("%s%%0%dd%s", FramePrefix, indexDigits, FrameExt))
}

// UpscaledPattern returns the printf-style pattern ffmpeg reads upscaled
// frames from.
func (w Workdir) UpscaledPattern() string {
	return filepath.Join(w.UpscaledDir(), fmt.Sprintf("%s%%0%dd%s", UpscaledPrefix, indexDigits, FrameExt))
}

// FramePath returns the path of the extracted frame with the given index.
func (w Workdir) FramePath(index int) string {
	return filepath.Join(w.FramesDir(), SequenceName(FramePrefix, index))
}

// UpscaledPath returns the path of the upscaled frame with the given index.
func (w Workdir) UpscaledPath(index int) string {
	return filepath.Join(w.UpscaledDir(), SequenceName(UpscaledPrefix, index))
}

// EncodedFile returns the path of the assembled video before audio remux.
func (w Workdir) EncodedFile() string {
	return filepath.Join(w.Root, encodedFileName)
}

// FinalFile returns the path of the remuxed video awaiting delivery.
func (w Workdir) FinalFile() string {
	return filepath.Join(w.Root, finalFileName)
}

// SequenceName renders the file name for a numbered sequence member.
func SequenceName(prefix string, index int) string {
	return fmt.Sprintf("%s%0*d%s", prefix, indexDigits, index, FrameExt)
}
