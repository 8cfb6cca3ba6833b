package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/703deuce/upscale/internal/api"
	"github.com/703deuce/upscale/internal/config"
	"github.com/703deuce/upscale/internal/logging"
)

// newRunCommand processes a single video synchronously, without the daemon.
// State lives in a throwaway work directory so a one-shot run never touches
// the daemon's queue database or staging area; only the output directory is
// shared.
func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	var jsonOut bool
	var outputDir string

	cmd := &cobra.Command{
		Use:   "run <url-or-path>",
		Short: "Upscale one video synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req, err := flags.buildJobRequest(args[0], cmd.Flags().Changed("crf"))
			if err != nil {
				return err
			}

			workDir, err := os.MkdirTemp("", "upscale-run-")
			if err != nil {
				return fmt.Errorf("create work directory: %w", err)
			}
			defer os.RemoveAll(workDir)

			runCfg := *cfg
			runCfg.Paths.StagingDir = filepath.Join(workDir, "staging")
			runCfg.Paths.LogDir = filepath.Join(workDir, "log")
			if outputDir != "" {
				expanded, err := config.ExpandPath(outputDir)
				if err != nil {
					return fmt.Errorf("resolve output directory: %w", err)
				}
				runCfg.Paths.OutputDir = expanded
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			result, err := api.RunJobToCompletion(signalCtx, api.RunJobRequest{
				Config:  &runCfg,
				Logger:  logger,
				Request: req.ToQueueRequest(),
			})
			if err != nil {
				return err
			}
			if jsonOut {
				item := api.FromQueueItem(result.Item)
				return writeJSON(cmd, api.QueueItemResponse{Item: item})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Output written to %s\n", result.Item.FinalFile)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Write the result here instead of the configured output directory")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the finished item as JSON")
	return cmd
}
