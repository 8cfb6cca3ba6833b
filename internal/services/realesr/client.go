package realesr

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/703deuce/upscale/internal/engine"
	"github.com/703deuce/upscale/internal/logging"
)

var commandContext = exec.CommandContext

const closeWait = 5 * time.Second

// request is one JSON line sent to the worker.
type request struct {
	ID     int64  `json:"id"`
	Op     string `json:"op"`
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
}

// message is one JSON line read from the worker, either a response to a
// request (ID set) or an unsolicited event such as the ready handshake.
type message struct {
	ID    int64  `json:"id,omitempty"`
	OK    bool   `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`

	Event   string `json:"event,omitempty"`
	Model   string `json:"model,omitempty"`
	Ratio   int    `json:"ratio,omitempty"`
	Message string `json:"message,omitempty"`
}

// Option configures the worker client.
type Option func(*Client)

// WithBinary overrides the default worker binary name.
func WithBinary(binary string) Option {
	return func(c *Client) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithPrecision selects the inference precision (fp16 or fp32).
func WithPrecision(precision string) Option {
	return func(c *Client) {
		if precision != "" {
			c.precision = precision
		}
	}
}

// WithScratchDir sets the directory tile files pass through. Defaults to a
// private temp directory created on Start and removed on Close.
func WithScratchDir(dir string) Option {
	return func(c *Client) { c.scratchDir = dir }
}

// WithLogger attaches a logger for worker diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client runs model inference through a long-lived worker subprocess. It
// implements engine.Backend. Safe for concurrent use; requests are
// serialized because the worker owns a single device.
type Client struct {
	model     engine.Spec
	weights   string
	binary    string
	precision string
	logger    *slog.Logger

	scratchDir   string
	ownedScratch bool

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	messages chan message
	seq      int64
}

// New builds a client for the given model. The worker is not launched until
// Start.
func New(model engine.Spec, weightsPath string, opts ...Option) *Client {
	c := &Client{
		model:     model,
		weights:   weightsPath,
		binary:    "realesr-worker",
		precision: "fp16",
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ratio reports the model's native upscale ratio.
func (c *Client) Ratio() int {
	return c.model.Ratio
}

// Start launches the worker and waits for its ready handshake. Calling
// Start on a running client is a no-op; a client whose worker has exited is
// relaunched. Weights load once here and are reused for every subsequent
// tile.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd != nil {
		return nil
	}

	if _, err := os.Stat(c.weights); err != nil {
		return fmt.Errorf("model weights %s: %w", c.weights, err)
	}
	if err := c.ensureScratchDir(); err != nil {
		return err
	}

	args := []string{
		"serve",
		"--model", c.model.Name,
		"--weights", c.weights,
		"--precision", c.precision,
	}
	cmd := commandContext(context.WithoutCancel(ctx), c.binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	messages := make(chan message, 4)
	go readMessages(stdout, messages)
	go c.logStderr(stderr)

	ready, err := c.awaitReady(ctx, messages)
	if err != nil {
		stdin.Close()
		cmd.Process.Kill()
		cmd.Wait()
		return err
	}
	if ready.Ratio != c.model.Ratio {
		stdin.Close()
		cmd.Process.Kill()
		cmd.Wait()
		return fmt.Errorf("worker loaded ratio %d weights, model %s requires %d",
			ready.Ratio, c.model.Name, c.model.Ratio)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.messages = messages
	c.logger.Info("inference worker ready",
		logging.String("model", c.model.Name),
		logging.Int("ratio", c.model.Ratio),
		logging.String("precision", c.precision),
	)
	return nil
}

// Enhance upscales one tile through the worker. The tile is written to the
// scratch directory, referenced in a request line, and the worker's output
// file is read back and removed.
func (c *Client) Enhance(ctx context.Context, tile *image.NRGBA) (*image.NRGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd == nil {
		return nil, errors.New("worker not running")
	}

	c.seq++
	inPath := filepath.Join(c.scratchDir, fmt.Sprintf("tile_%d_in.png", c.seq))
	outPath := filepath.Join(c.scratchDir, fmt.Sprintf("tile_%d_out.png", c.seq))
	if err := engine.WriteImage(inPath, tile); err != nil {
		return nil, err
	}
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	resp, err := c.exchange(ctx, request{ID: c.seq, Op: "enhance", Input: inPath, Output: outPath})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		detail := strings.TrimSpace(resp.Error)
		if detail == "" {
			detail = "unspecified inference failure"
		}
		return nil, fmt.Errorf("inference failed: %s", detail)
	}
	return engine.ReadImage(outPath)
}

// Close shuts the worker down by closing its stdin and waiting for exit,
// killing it if it lingers.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd == nil {
		c.removeOwnedScratch()
		return nil
	}

	c.stdin.Close()
	timer := time.AfterFunc(closeWait, func() { c.cmd.Process.Kill() })
	err := c.cmd.Wait()
	timer.Stop()

	c.cmd = nil
	c.stdin = nil
	c.messages = nil
	c.removeOwnedScratch()
	if err != nil {
		return fmt.Errorf("worker exit: %w", err)
	}
	return nil
}

// exchange sends one request and waits for its matching response. Callers
// hold c.mu, so at most one request is outstanding; stale responses from an
// abandoned wait are skipped by ID.
func (c *Client) exchange(ctx context.Context, req request) (message, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return message{}, fmt.Errorf("encode request: %w", err)
	}
	if _, err := c.stdin.Write(append(payload, '\n')); err != nil {
		c.markDead()
		return message{}, fmt.Errorf("write to worker: %w", err)
	}

	for {
		select {
		case msg, ok := <-c.messages:
			if !ok {
				c.markDead()
				return message{}, errors.New("worker exited unexpectedly")
			}
			if msg.Event != "" {
				c.logger.Debug("worker event",
					logging.String("event", msg.Event),
					logging.String("message", msg.Message),
				)
				continue
			}
			if msg.ID < req.ID {
				continue
			}
			if msg.ID != req.ID {
				c.markDead()
				return message{}, fmt.Errorf("worker answered request %d, want %d", msg.ID, req.ID)
			}
			return msg, nil
		case <-ctx.Done():
			return message{}, ctx.Err()
		}
	}
}

func (c *Client) awaitReady(ctx context.Context, messages chan message) (message, error) {
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return message{}, errors.New("worker exited before ready handshake")
			}
			if msg.Event == "ready" {
				return msg, nil
			}
		case <-ctx.Done():
			return message{}, fmt.Errorf("waiting for worker ready: %w", ctx.Err())
		}
	}
}

// markDead forgets the dead process so the next Start relaunches. Callers
// hold c.mu.
func (c *Client) markDead() {
	if c.cmd == nil {
		return
	}
	go c.cmd.Wait()
	c.cmd = nil
	c.stdin = nil
	c.messages = nil
}

func (c *Client) ensureScratchDir() error {
	if c.scratchDir == "" {
		dir, err := os.MkdirTemp("", "realesr-")
		if err != nil {
			return fmt.Errorf("create scratch dir: %w", err)
		}
		c.scratchDir = dir
		c.ownedScratch = true
		return nil
	}
	if err := os.MkdirAll(c.scratchDir, 0o755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	return nil
}

func (c *Client) removeOwnedScratch() {
	if c.ownedScratch && c.scratchDir != "" {
		os.RemoveAll(c.scratchDir)
		c.scratchDir = ""
		c.ownedScratch = false
	}
}

func (c *Client) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.logger.Debug("worker stderr", logging.String("line", line))
	}
}

func readMessages(r io.Reader, out chan<- message) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		out <- msg
	}
}

var _ engine.Backend = (*Client)(nil)
