// Package daemonrun hosts the daemon runtime loop shared by the upscaled
// binary and the CLI's foreground daemon command.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/703deuce/upscale/internal/assembly"
	"github.com/703deuce/upscale/internal/config"
	"github.com/703deuce/upscale/internal/daemon"
	"github.com/703deuce/upscale/internal/extraction"
	"github.com/703deuce/upscale/internal/intake"
	"github.com/703deuce/upscale/internal/logging"
	"github.com/703deuce/upscale/internal/queue"
	"github.com/703deuce/upscale/internal/remux"
	"github.com/703deuce/upscale/internal/upscaling"
	"github.com/703deuce/upscale/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides the configured log level when non-empty.
	LogLevel string
}

// Run starts the upscale daemon and blocks until the context is canceled or
// a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "upscaled.log")
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "upscaled.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	manager := workflow.NewManager(cfg, store, logger)
	manager.ConfigureStages(buildStageSet(cfg, store, logger))

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("upscale daemon shutting down")
	return nil
}

func buildStageSet(cfg *config.Config, store *queue.Store, logger *slog.Logger) workflow.StageSet {
	return workflow.StageSet{
		Fetcher:   intake.NewFetcher(cfg, store, logger),
		Extractor: extraction.NewExtractor(cfg, store, logger),
		Upscaler:  upscaling.NewUpscaler(cfg, store, logger),
		Assembler: assembly.NewAssembler(cfg, store, logger),
		Remuxer:   remux.NewRemuxer(cfg, store, logger),
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
