package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/703deuce/upscale/internal/config"
	"github.com/703deuce/upscale/internal/deps"
	"github.com/703deuce/upscale/internal/logging"
	"github.com/703deuce/upscale/internal/preflight"
	"github.com/703deuce/upscale/internal/queue"
	"github.com/703deuce/upscale/internal/staging"
	"github.com/703deuce/upscale/internal/workflow"
)

// staleWorkdirAge is how old an untouched staging workdir must be before the
// startup sweep reclaims it. It has to exceed the longest stage timeout so an
// in-flight upscale never loses its frames.
const staleWorkdirAge = 48 * time.Hour

var (
	errJobNotFound   = errors.New("job not found")
	errJobProcessing = errors.New("job is processing")
)

// Daemon coordinates background queue processing and enforces single-instance
// execution. It owns the workflow manager lifecycle, the startup maintenance
// sweeps, and the HTTP control API.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	Dependencies []deps.Status
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "upscaled.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, reconciles persisted state, and launches
// the workflow manager and the API listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another upscale daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.runStartupMaintenance(d.ctx)

	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.workflow.Stop()
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("upscale daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api_bind", d.cfg.API.Bind),
	)
	return nil
}

// runStartupMaintenance reconciles the queue with reality before lanes start:
// jobs interrupted by a crash return to pending, staging disk left behind by
// earlier runs is reclaimed, and environment problems are surfaced early.
func (d *Daemon) runStartupMaintenance(ctx context.Context) {
	if reset, err := d.store.ResetStuckProcessing(ctx); err != nil {
		d.logger.Warn("failed to reset interrupted jobs", logging.Error(err))
	} else if reset > 0 {
		d.logger.Info("reset interrupted jobs to pending", logging.Int64("count", reset))
	}

	stagingDir := d.cfg.Paths.StagingDir
	if items, err := d.store.List(ctx); err != nil {
		d.logger.Warn("skipping staging sweep; queue listing failed", logging.Error(err))
	} else {
		// Pending jobs restart from intake and terminal jobs have already
		// delivered or released their artifacts; only checkpointed jobs
		// still need their workdirs.
		active := make(map[int64]struct{}, len(items))
		for _, item := range items {
			if item.Status == queue.StatusPending || queue.IsTerminal(item.Status) {
				continue
			}
			active[item.ID] = struct{}{}
		}
		staging.CleanOrphaned(ctx, stagingDir, active, d.logger)
	}
	staging.CleanStale(ctx, stagingDir, staleWorkdirAge, d.logger)

	for _, result := range preflight.RunAll(ctx, d.cfg) {
		if result.Passed {
			continue
		}
		d.logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "jobs may fail until this is resolved"),
		)
	}
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("upscale daemon stopped")
}

// Close stops the daemon and releases stage resources and the queue store.
func (d *Daemon) Close() error {
	d.Stop()
	var firstErr error
	if err := d.workflow.Close(); err != nil {
		firstErr = err
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
		QueueDBPath:  queue.DatabasePath(d.cfg),
		LockFilePath: d.lockPath,
	}
}

// SubmitJob enqueues an already validated job request.
func (d *Daemon) SubmitJob(ctx context.Context, req queue.JobRequest) (*queue.Item, error) {
	item, err := d.store.NewJob(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	d.logger.Info("job queued",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("title", item.Title),
		logging.String("source", item.Source()),
	)
	return item, nil
}

// RemoveJob deletes a queue item and reclaims its staging directory. Jobs
// currently being processed must finish or fail before removal.
func (d *Daemon) RemoveJob(ctx context.Context, id int64) error {
	item, err := d.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load job %d: %w", id, err)
	}
	if item == nil {
		return errJobNotFound
	}
	if item.IsProcessing() {
		return errJobProcessing
	}
	removed, err := d.store.Remove(ctx, id)
	if err != nil {
		return fmt.Errorf("remove job %d: %w", id, err)
	}
	if !removed {
		return errJobNotFound
	}
	// Checkpointed jobs still hold staged artifacts on disk.
	if err := staging.JobDir(d.cfg.Paths.StagingDir, id).Remove(); err != nil {
		d.logger.Warn("failed to remove job workdir",
			logging.Int64(logging.FieldItemID, id),
			logging.Error(err),
			logging.String(logging.FieldImpact, "staging disk space not reclaimed"),
		)
	}
	d.logger.Info("job removed", logging.Int64(logging.FieldItemID, id))
	return nil
}

// RetryJobs resets failed and review jobs back to pending. Without ids every
// failed or review job is retried.
func (d *Daemon) RetryJobs(ctx context.Context, ids ...int64) (int64, error) {
	updated, err := d.store.RetryFailed(ctx, ids...)
	if err != nil {
		return 0, fmt.Errorf("retry jobs: %w", err)
	}
	if updated > 0 {
		d.logger.Info("jobs reset for retry", logging.Int64("count", updated))
	}
	return updated, nil
}

// ClearQueue removes queue items by scope: "completed", "failed", or "all".
// An empty scope clears everything.
func (d *Daemon) ClearQueue(ctx context.Context, scope string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(scope)) {
	case "completed":
		return d.store.ClearCompleted(ctx)
	case "failed":
		return d.store.ClearFailed(ctx)
	case "", "all":
		return d.store.Clear(ctx)
	default:
		return 0, fmt.Errorf("unknown clear scope %q; use completed, failed, or all", scope)
	}
}
