// Package daemonctl orchestrates the daemon process from the CLI: launching
// it detached, waiting for its HTTP API, stopping it with escalation, and
// assembling status snapshots with offline fallbacks.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/703deuce/upscale/internal/api"
	"github.com/703deuce/upscale/internal/config"
	"github.com/703deuce/upscale/internal/preflight"
	"github.com/703deuce/upscale/internal/queue"
)

const (
	pidFileName  = "upscaled.pid"
	lockFileName = "upscaled.lock"

	probeInterval = 200 * time.Millisecond
)

// ErrDaemonNotRunning indicates the daemon API is unreachable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	Status   *api.DaemonStatus
}

// Launch starts a detached daemon process using the CLI's own binary.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfgPath := strings.TrimSpace(opts.ConfigPath); cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForDaemon polls the daemon API until it reports running.
func WaitForDaemon(ctx context.Context, client *api.Client, timeout time.Duration) (*api.DaemonStatus, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		status, err := client.Status(ctx)
		if err == nil && status != nil && status.Running {
			return status, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("daemon reachable but not running")
		}
		time.Sleep(probeInterval)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon when it is not reachable and waits for
// it to report running.
func EnsureStarted(ctx context.Context, client *api.Client, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if status, err := client.Status(ctx); err == nil && status != nil {
		if status.Running {
			return StartResult{State: StartStateAlreadyRunning, Status: status}, nil
		}
		// The process exists but has not finished starting yet.
		status, err = WaitForDaemon(ctx, client, waitTimeout)
		if err != nil {
			return StartResult{}, err
		}
		return StartResult{State: StartStateAlreadyRunning, Status: status}, nil
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	status, err := WaitForDaemon(ctx, client, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Launched: true, Status: status}, nil
}

// WaitForShutdown waits for the daemon API to become unreachable.
func WaitForShutdown(ctx context.Context, client *api.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := client.Status(ctx)
		if err != nil && !isAPIResponse(err) {
			return nil
		}
		time.Sleep(probeInterval)
	}
	return fmt.Errorf("daemon did not stop: still reachable after %s", timeout)
}

// ProcessInfo reports whether the daemon API is reachable and the daemon PID
// when available.
func ProcessInfo(ctx context.Context, client *api.Client) (bool, int, error) {
	status, err := client.Status(ctx)
	if err != nil {
		// A decoded API error means a process answered the request.
		if isAPIResponse(err) {
			return true, 0, err
		}
		return false, 0, nil
	}
	return true, status.PID, nil
}

// DeriveLogDir determines the daemon log directory from status and config hints.
func DeriveLogDir(lockPath, queueDBPath string, cfg *config.Config) string {
	if lockPath != "" {
		return filepath.Dir(lockPath)
	}
	if queueDBPath != "" {
		return filepath.Dir(queueDBPath)
	}
	if cfg != nil && strings.TrimSpace(cfg.Paths.LogDir) != "" {
		return cfg.Paths.LogDir
	}
	return ""
}

// ForceKillProcess sends SIGKILL to the daemon process and cleans up its
// pid and lock files.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	if err == nil {
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && parsed > 0 {
			pid = parsed
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	ForcedKill bool
	PID        int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// StopAndTerminate signals the daemon to shut down and force-kills the
// process if it is still reachable after gracePeriod.
func StopAndTerminate(ctx context.Context, client *api.Client, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	status, err := client.Status(ctx)
	if err != nil {
		if isAPIResponse(err) {
			return StopResult{}, fmt.Errorf("daemon responded but status failed: %w", err)
		}
		return StopResult{}, ErrDaemonNotRunning
	}

	pid := status.PID
	if pid <= 0 {
		return StopResult{}, fmt.Errorf("daemon did not report its pid")
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to stop current process (pid %d)", pid)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			return StopResult{PID: pid}, nil
		}
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	result := StopResult{PID: pid}
	if waitErr := WaitForShutdown(ctx, client, gracePeriod); waitErr == nil {
		return result, nil
	}

	logDir := DeriveLogDir(status.LockFilePath, status.QueueDBPath, cfg)
	if logDir == "" {
		return result, fmt.Errorf("daemon still running and its log directory is unknown")
	}
	killedPID, killErr := ForceKillProcess(filepath.Join(logDir, pidFileName), filepath.Join(logDir, lockFileName), pid)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started again.
func Restart(ctx context.Context, client *api.Client, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(ctx, client, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(ctx, client, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// isAPIResponse reports whether err came from a daemon that answered the
// request, as opposed to a transport failure.
func isAPIResponse(err error) bool {
	var statusErr *api.StatusError
	return errors.As(err, &statusErr)
}

// StatusLine is a labeled severity/detail pair for status output.
type StatusLine struct {
	Label    string
	Severity string
	Detail   string
}

// DependencySummary aggregates dependency readiness for status output.
type DependencySummary struct {
	Total           int
	Available       int
	MissingRequired int
	MissingOptional int
	Severity        string
	Detail          string
}

// StatusSnapshot combines daemon status with CLI-side checks so the status
// command renders the same sections whether or not the daemon is up.
type StatusSnapshot struct {
	Daemon            api.DaemonStatus
	DaemonReachable   bool
	QueueStats        map[string]int
	Dependencies      []api.DependencyStatus
	DependencySummary DependencySummary
	SystemChecks      []StatusLine
	Models            []preflight.ModelStatus
}

// BuildStatusSnapshot collects daemon status and applies offline fallbacks
// for queue stats and dependency checks.
func BuildStatusSnapshot(ctx context.Context, client *api.Client, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}

	snapshot := &StatusSnapshot{}
	if status, err := client.Status(ctx); err == nil && status != nil {
		snapshot.Daemon = *status
		snapshot.DaemonReachable = true
		snapshot.QueueStats = status.Workflow.QueueStats
		snapshot.Dependencies = status.Dependencies
	}

	if !snapshot.DaemonReachable {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if store, openErr := queue.Open(cfg); openErr == nil {
			stats, statsErr := store.Stats(queryCtx)
			_ = store.Close()
			if statsErr == nil {
				snapshot.QueueStats = api.MergeQueueStats(stats)
			}
		}
	}

	if len(snapshot.Dependencies) == 0 {
		snapshot.Dependencies = api.FromDependencyStatuses(preflight.CheckSystemDeps(cfg))
	}

	snapshot.DependencySummary = BuildDependencySummary(snapshot.Dependencies)
	snapshot.SystemChecks = BuildSystemChecks(cfg, snapshot.Daemon.Running)
	snapshot.Models = preflight.ProbeModels(cfg.Paths.WeightsDir)
	return snapshot, nil
}

// BuildSystemChecks resolves status lines that combine runtime state and
// config checks.
func BuildSystemChecks(cfg *config.Config, daemonRunning bool) []StatusLine {
	lines := make([]StatusLine, 0, 5)
	if daemonRunning {
		lines = append(lines, StatusLine{Label: "Daemon", Severity: "ok", Detail: "Running"})
	} else {
		lines = append(lines, StatusLine{Label: "Daemon", Severity: "warn", Detail: "Not running (run `upscale start`)"})
	}

	for _, dir := range []struct {
		label string
		path  string
	}{
		{label: "Staging", path: cfg.Paths.StagingDir},
		{label: "Output", path: cfg.Paths.OutputDir},
	} {
		result := preflight.CheckDirectoryAccess(dir.label, dir.path)
		severity := "error"
		if result.Passed {
			severity = "ok"
		}
		lines = append(lines, StatusLine{Label: dir.label, Severity: severity, Detail: result.Detail})
	}

	weights := preflight.CheckModelWeights(cfg.Paths.WeightsDir, cfg.Upscaler.DefaultModel)
	if weights.Passed {
		lines = append(lines, StatusLine{Label: "Default model", Severity: "ok", Detail: weights.Detail})
	} else {
		lines = append(lines, StatusLine{Label: "Default model", Severity: "error", Detail: weights.Detail})
	}

	ntfy := preflight.CheckNtfyFromConfig(cfg)
	switch {
	case ntfy.Passed && strings.EqualFold(strings.TrimSpace(ntfy.Detail), "Disabled"):
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "info", Detail: ntfy.Detail})
	case ntfy.Passed:
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "ok", Detail: ntfy.Detail})
	default:
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "warn", Detail: ntfy.Detail})
	}

	return lines
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(deps []api.DependencyStatus) DependencySummary {
	if len(deps) == 0 {
		return DependencySummary{
			Severity: "info",
			Detail:   "No dependency checks configured",
		}
	}

	missingRequired := 0
	missingOptional := 0
	for _, dep := range deps {
		if dep.Available {
			continue
		}
		if dep.Optional {
			missingOptional++
		} else {
			missingRequired++
		}
	}

	missingCount := missingRequired + missingOptional
	available := len(deps) - missingCount
	severity := "ok"
	if missingRequired > 0 {
		severity = "error"
	} else if missingOptional > 0 {
		severity = "warn"
	}
	detail := fmt.Sprintf("%d/%d available (missing: %d required, %d optional)", available, len(deps), missingRequired, missingOptional)
	if missingCount == 0 {
		detail = fmt.Sprintf("%d/%d available", available, len(deps))
	}

	return DependencySummary{
		Total:           len(deps),
		Available:       available,
		MissingRequired: missingRequired,
		MissingOptional: missingOptional,
		Severity:        severity,
		Detail:          detail,
	}
}
