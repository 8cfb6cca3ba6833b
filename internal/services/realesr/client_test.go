package realesr

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/703deuce/upscale/internal/engine"
)

var testSpec = engine.Spec{Name: "realesrgan-x2plus", Ratio: 2}

func TestNewDefaults(t *testing.T) {
	c := New(testSpec, "/srv/weights/realesrgan-x2plus.pth")
	if c.binary != "realesr-worker" {
		t.Fatalf("default binary = %q", c.binary)
	}
	if c.precision != "fp16" {
		t.Fatalf("default precision = %q", c.precision)
	}
	if c.Ratio() != 2 {
		t.Fatalf("Ratio() = %d", c.Ratio())
	}

	c = New(testSpec, "w.pth", WithBinary("/opt/worker"), WithPrecision("fp32"))
	if c.binary != "/opt/worker" || c.precision != "fp32" {
		t.Fatalf("options not applied: %q %q", c.binary, c.precision)
	}
}

func TestStartMissingWeights(t *testing.T) {
	c := New(testSpec, filepath.Join(t.TempDir(), "missing.pth"))
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected error for missing weights")
	}
}

func TestStartAndEnhance(t *testing.T) {
	launches := setHelperCommand(t, "serve")
	scratch := t.TempDir()

	c := newTestClient(t, WithScratchDir(scratch))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	args := lastLaunch(t, launches)
	if args[0] != "serve" {
		t.Fatalf("expected serve subcommand, got %v", args)
	}
	assertFlag(t, args, "--model", testSpec.Name)
	assertFlag(t, args, "--precision", "fp16")

	tile := image.NewNRGBA(image.Rect(0, 0, 3, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 3; x++ {
			tile.SetNRGBA(x, y, color.NRGBA{R: uint8(40 * x), G: uint8(50 * y), A: 255})
		}
	}

	out, err := c.Enhance(context.Background(), tile)
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if got := out.Bounds(); got.Dx() != 6 || got.Dy() != 8 {
		t.Fatalf("enhanced size %v, want 6x8", got)
	}
	if got, want := out.NRGBAAt(5, 7), tile.NRGBAAt(2, 3); got != want {
		t.Fatalf("corner pixel %v, want %v", got, want)
	}

	// Tile files pass through scratch and are removed afterwards.
	entries, err := os.ReadDir(scratch)
	if err != nil {
		t.Fatalf("read scratch: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch dir should be empty, found %d entries", len(entries))
	}
}

func TestStartIdempotent(t *testing.T) {
	launches := setHelperCommand(t, "serve")

	c := newTestClient(t)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer c.Close()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if got := len(*launches); got != 1 {
		t.Fatalf("expected 1 worker launch, got %d", got)
	}
}

func TestStartRatioMismatch(t *testing.T) {
	setHelperCommand(t, "ratio3")

	c := newTestClient(t)
	err := c.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ratio") {
		t.Fatalf("expected ratio mismatch error, got %v", err)
	}
}

func TestStartHandshakeTimeout(t *testing.T) {
	setHelperCommand(t, "noready")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	c := newTestClient(t)
	err := c.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "ready") {
		t.Fatalf("expected handshake timeout error, got %v", err)
	}
}

func TestEnhanceWithoutStart(t *testing.T) {
	c := New(testSpec, "w.pth")
	if _, err := c.Enhance(context.Background(), image.NewNRGBA(image.Rect(0, 0, 2, 2))); err == nil {
		t.Fatal("expected error before Start")
	}
}

func TestEnhanceWorkerReportsError(t *testing.T) {
	setHelperCommand(t, "error")

	c := newTestClient(t)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	_, err := c.Enhance(context.Background(), image.NewNRGBA(image.Rect(0, 0, 2, 2)))
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Fatalf("expected worker error text, got %v", err)
	}
}

func TestEnhanceSkipsNoise(t *testing.T) {
	setHelperCommand(t, "noise")

	c := newTestClient(t)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	out, err := c.Enhance(context.Background(), image.NewNRGBA(image.Rect(0, 0, 2, 2)))
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if got := out.Bounds(); got.Dx() != 4 || got.Dy() != 4 {
		t.Fatalf("enhanced size %v, want 4x4", got)
	}
}

func TestEnhanceAfterWorkerDeath(t *testing.T) {
	setHelperCommand(t, "die")

	c := newTestClient(t)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err := c.Enhance(context.Background(), image.NewNRGBA(image.Rect(0, 0, 2, 2)))
	if err == nil || !strings.Contains(err.Error(), "exited") {
		t.Fatalf("expected worker exit error, got %v", err)
	}

	// The dead worker is forgotten; the next Enhance reports not running
	// until Start relaunches.
	if _, err := c.Enhance(context.Background(), image.NewNRGBA(image.Rect(0, 0, 2, 2))); err == nil {
		t.Fatal("expected error while worker is down")
	}
}

func TestCloseWithoutStart(t *testing.T) {
	c := New(testSpec, "w.pth")
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	weights := filepath.Join(t.TempDir(), testSpec.Name+".pth")
	if err := os.WriteFile(weights, []byte("weights"), 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}
	return New(testSpec, weights, opts...)
}

func setHelperCommand(t *testing.T, mode string) *[][]string {
	t.Helper()
	launches := &[][]string{}
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		*launches = append(*launches, append([]string(nil), args...))
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("REALESR_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return launches
}

func lastLaunch(t *testing.T, launches *[][]string) []string {
	t.Helper()
	if len(*launches) == 0 {
		t.Fatal("expected a worker launch")
	}
	return (*launches)[len(*launches)-1]
}

func assertFlag(t *testing.T, args []string, flag, want string) {
	t.Helper()
	for i, arg := range args {
		if arg == flag {
			if i+1 >= len(args) || args[i+1] != want {
				t.Fatalf("flag %s = %q, want %q (args %v)", flag, args[i+1], want, args)
			}
			return
		}
	}
	t.Fatalf("args %v missing flag %s", args, flag)
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	mode := os.Getenv("REALESR_HELPER_MODE")
	switch mode {
	case "noready":
		time.Sleep(2 * time.Second)
		os.Exit(0)
	case "ratio3":
		fmt.Println(`{"event":"ready","model":"helper","ratio":3}`)
		bufio.NewScanner(os.Stdin).Scan()
		os.Exit(0)
	default:
		runHelperWorker(mode)
	}
}

func runHelperWorker(mode string) {
	fmt.Println(`{"event":"ready","model":"helper","ratio":2}`)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		switch mode {
		case "die":
			os.Exit(1)
		case "error":
			fmt.Printf("{\"id\":%d,\"ok\":false,\"error\":\"CUDA error: out of memory\"}\n", req.ID)
		case "noise":
			fmt.Println("worker chatter, not json")
			fmt.Println(`{"event":"log","message":"tile received"}`)
			respondScaled(req)
		default:
			respondScaled(req)
		}
	}
	os.Exit(0)
}

func respondScaled(req request) {
	src, err := engine.ReadImage(req.Input)
	if err != nil {
		fmt.Printf("{\"id\":%d,\"ok\":false,\"error\":%q}\n", req.ID, err.Error())
		return
	}
	if err := engine.WriteImage(req.Output, nearestScale(src, 2)); err != nil {
		fmt.Printf("{\"id\":%d,\"ok\":false,\"error\":%q}\n", req.ID, err.Error())
		return
	}
	fmt.Printf("{\"id\":%d,\"ok\":true}\n", req.ID)
}

func nearestScale(src *image.NRGBA, ratio int) *image.NRGBA {
	b := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx()*ratio, b.Dy()*ratio))
	for y := 0; y < out.Bounds().Dy(); y++ {
		for x := 0; x < out.Bounds().Dx(); x++ {
			out.SetNRGBA(x, y, src.NRGBAAt(b.Min.X+x/ratio, b.Min.Y+y/ratio))
		}
	}
	return out
}
