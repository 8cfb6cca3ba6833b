package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/703deuce/upscale/internal/api"
	"github.com/703deuce/upscale/internal/queue"
)

// newResultCommand copies a completed job's output next to the caller. With
// the daemon running the bytes stream over the API, so the command also works
// from hosts that cannot read the daemon's output directory.
func newResultCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "result <itemID>",
		Short: "Fetch the finished video for a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			id := ids[0]

			if client, err := ctx.dialDaemon(cmd.Context()); err == nil {
				return downloadResult(cmd, client, id, outputPath)
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			item, err := store.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if item == nil {
				return fmt.Errorf("item %d not found", id)
			}
			if item.Status != queue.StatusCompleted || strings.TrimSpace(item.FinalFile) == "" {
				return fmt.Errorf("job %d is not completed", id)
			}

			dest := outputPath
			if dest == "" {
				dest = filepath.Base(item.FinalFile)
			}
			if err := copyFile(item.FinalFile, dest); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (defaults to the job's output name)")
	return cmd
}

// downloadResult streams the result over the API into a temporary file and
// renames it into place once the transfer finished.
func downloadResult(cmd *cobra.Command, client *api.Client, id int64, outputPath string) error {
	destDir := "."
	if outputPath != "" {
		destDir = filepath.Dir(outputPath)
	}
	tmp, err := os.CreateTemp(destDir, ".upscale-result-*")
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	name, err := client.DownloadResult(cmd.Context(), id, tmp)
	if err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("flush download: %w", err)
	}

	dest := outputPath
	if dest == "" {
		if name == "" {
			name = fmt.Sprintf("job-%d.mp4", id)
		}
		// The daemon controls the suggested name; keep only its base so a
		// malicious header cannot write outside the working directory.
		dest = filepath.Base(name)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("move result into place: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", dest)
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open result file: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("copy result: %w", err)
	}
	return out.Close()
}
