package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// ExtractRequest describes a frame extraction run. Frames are written as
// lossless PNGs following the output pattern, numbered from 1.
type ExtractRequest struct {
	Input   string
	Pattern string
}

// EncodeRequest describes assembling a numbered frame sequence into an H.264
// video without audio.
type EncodeRequest struct {
	Pattern   string
	FrameRate float64
	CRF       int
	Preset    string
	Output    string
}

// RemuxRequest describes copying audio streams from the original source into
// the encoded video. Sources without audio remux cleanly.
type RemuxRequest struct {
	Video  string
	Source string
	Output string
}

// Runner abstracts ffmpeg execution for stage handlers.
type Runner interface {
	ExtractFrames(ctx context.Context, req ExtractRequest, onProgress func(Progress)) error
	EncodeSequence(ctx context.Context, req EncodeRequest, onProgress func(Progress)) error
	RemuxStreams(ctx context.Context, req RemuxRequest) error
}

// Option configures the CLI runner.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the ffmpeg command line tool.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI runner using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// ExtractFrames decodes every frame of the input into the numbered PNG
// sequence described by the request pattern. Any ffmpeg failure is fatal for
// the run; partially written frames are the caller's cleanup concern.
func (c *CLI) ExtractFrames(ctx context.Context, req ExtractRequest, onProgress func(Progress)) error {
	args, err := buildExtractArgs(req)
	if err != nil {
		return err
	}
	return c.runWithProgress(ctx, args, onProgress)
}

// EncodeSequence assembles the numbered frame sequence into an H.264 video.
func (c *CLI) EncodeSequence(ctx context.Context, req EncodeRequest, onProgress func(Progress)) error {
	args, err := buildEncodeArgs(req)
	if err != nil {
		return err
	}
	return c.runWithProgress(ctx, args, onProgress)
}

// RemuxStreams copies the source's audio next to the encoded video stream.
func (c *CLI) RemuxStreams(ctx context.Context, req RemuxRequest) error {
	args, err := buildRemuxArgs(req)
	if err != nil {
		return err
	}

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg remux failed: %w: %s", err, tail(output))
	}
	return nil
}

func buildExtractArgs(req ExtractRequest) ([]string, error) {
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return nil, errors.New("extract: input path required")
	}
	pattern := strings.TrimSpace(req.Pattern)
	if pattern == "" {
		return nil, errors.New("extract: output pattern required")
	}
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-progress", "pipe:1", "-nostats",
		"-i", input,
		"-q:v", "1",
		pattern,
	}, nil
}

func buildEncodeArgs(req EncodeRequest) ([]string, error) {
	pattern := strings.TrimSpace(req.Pattern)
	if pattern == "" {
		return nil, errors.New("encode: input pattern required")
	}
	output := strings.TrimSpace(req.Output)
	if output == "" {
		return nil, errors.New("encode: output path required")
	}
	if req.FrameRate <= 0 {
		return nil, fmt.Errorf("encode: invalid frame rate %v", req.FrameRate)
	}
	if req.CRF < 0 || req.CRF > 51 {
		return nil, fmt.Errorf("encode: crf %d out of range", req.CRF)
	}
	preset := strings.TrimSpace(req.Preset)
	if preset == "" {
		preset = "medium"
	}
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-progress", "pipe:1", "-nostats",
		"-framerate", FormatFrameRate(req.FrameRate),
		"-i", pattern,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(req.CRF),
		"-preset", preset,
		"-pix_fmt", "yuv420p",
		output,
	}, nil
}

func buildRemuxArgs(req RemuxRequest) ([]string, error) {
	video := strings.TrimSpace(req.Video)
	if video == "" {
		return nil, errors.New("remux: video path required")
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return nil, errors.New("remux: source path required")
	}
	output := strings.TrimSpace(req.Output)
	if output == "" {
		return nil, errors.New("remux: output path required")
	}
	// The trailing ? on the audio map keeps sources without audio working.
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", video,
		"-i", source,
		"-map", "0:v:0",
		"-map", "1:a?",
		"-c", "copy",
		"-shortest",
		output,
	}, nil
}

// FormatFrameRate renders a frame rate the way ffmpeg expects, using the
// shortest decimal form that round-trips.
func FormatFrameRate(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}

func (c *CLI) runWithProgress(ctx context.Context, args []string, onProgress func(Progress)) error {
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	if err := consumeProgress(stdout, onProgress); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("read ffmpeg progress: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(stderr.Bytes()))
	}
	return nil
}

func tail(output []byte) string {
	const limit = 2048
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) > limit {
		trimmed = trimmed[len(trimmed)-limit:]
	}
	return string(trimmed)
}

func consumeProgress(r io.Reader, onProgress func(Progress)) error {
	scanner := bufio.NewScanner(r)
	var current Progress
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		done, ok := applyProgressLine(&current, line)
		if !ok {
			continue
		}
		if done {
			current.Done = true
		}
		if onProgress != nil {
			onProgress(current)
		}
		if done {
			break
		}
	}
	return scanner.Err()
}

var _ Runner = (*CLI)(nil)
