package upscaling

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/703deuce/upscale/internal/config"
	"github.com/703deuce/upscale/internal/engine"
	"github.com/703deuce/upscale/internal/logging"
	"github.com/703deuce/upscale/internal/services/realesr"
)

// BackendProvider hands out a ready inference backend for a model.
type BackendProvider interface {
	Acquire(ctx context.Context, model engine.Spec, weightsPath string) (engine.Backend, error)
	Close() error
}

// poolClient is the slice of realesr.Client the pool manages.
type poolClient interface {
	engine.Backend
	Start(ctx context.Context) error
}

// newWorkerClient is a package-level variable so tests can override it.
var newWorkerClient = func(model engine.Spec, weightsPath string, opts ...realesr.Option) poolClient {
	return realesr.New(model, weightsPath, opts...)
}

// WorkerPool keeps one inference worker alive across jobs and replaces it
// only when a job requests a different model. The worker occupies the
// accelerator for its whole lifetime, so there is never more than one.
type WorkerPool struct {
	binary    string
	precision string
	logger    *slog.Logger

	mu      sync.Mutex
	current poolClient
	model   string
}

// NewWorkerPool builds a pool from the configured worker binary and precision.
func NewWorkerPool(cfg *config.Config, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WorkerPool{
		binary:    cfg.WorkerBinary(),
		precision: cfg.Upscaler.Precision,
		logger:    logger,
	}
}

// Acquire returns a started backend for the model, reusing the resident
// worker when the model matches and swapping it out otherwise. Weights load
// once per worker lifetime; every job sharing the model shares the load.
func (p *WorkerPool) Acquire(ctx context.Context, model engine.Spec, weightsPath string) (engine.Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil && p.model != model.Name {
		p.logger.Info("replacing inference worker",
			logging.String("previous_model", p.model),
			logging.String("model", model.Name),
		)
		if err := p.current.Close(); err != nil {
			p.logger.Warn("failed to close previous inference worker", logging.Error(err))
		}
		p.current = nil
		p.model = ""
	}

	if p.current == nil {
		p.current = newWorkerClient(model, weightsPath,
			realesr.WithBinary(p.binary),
			realesr.WithPrecision(p.precision),
			realesr.WithLogger(p.logger),
		)
		p.model = model.Name
	}

	// Start is idempotent and relaunches a worker that has died since the
	// previous job.
	if err := p.current.Start(ctx); err != nil {
		return nil, err
	}
	return p.current, nil
}

// Close shuts down the resident worker if one is running.
func (p *WorkerPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil
	}
	err := p.current.Close()
	p.current = nil
	p.model = ""
	return err
}

// ActiveModel reports the model the resident worker is serving, or "" when
// no worker is resident.
func (p *WorkerPool) ActiveModel() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.TrimSpace(p.model)
}

var _ BackendProvider = (*WorkerPool)(nil)
