package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/703deuce/upscale/internal/api"
)

// jobFlags holds the submission parameters shared by the add and run commands.
type jobFlags struct {
	title      string
	scale      float64
	resolution string
	model      string
	fps        float64
	crf        int
	preset     string
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Display title for the job")
	cmd.Flags().Float64Var(&f.scale, "scale", 0, "Output scale factor (e.g. 2.0)")
	cmd.Flags().StringVar(&f.resolution, "resolution", "", "Target resolution (1080p, 1440p, 2k)")
	cmd.Flags().StringVar(&f.model, "model", "", "Super-resolution model name")
	cmd.Flags().Float64Var(&f.fps, "fps", 0, "Output frame rate override")
	cmd.Flags().IntVar(&f.crf, "crf", -1, "H.264 CRF quality (0-51)")
	cmd.Flags().StringVar(&f.preset, "preset", "", "H.264 encoder preset")
}

// buildJobRequest resolves the positional source argument into a validated
// job request. Anything containing a URL scheme is treated as a remote
// source; everything else must be an existing local file.
func (f *jobFlags) buildJobRequest(source string, crfSet bool) (api.JobRequest, error) {
	req := api.JobRequest{
		Title:            strings.TrimSpace(f.title),
		Scale:            f.scale,
		TargetResolution: strings.TrimSpace(f.resolution),
		Model:            strings.TrimSpace(f.model),
		OutputFPS:        f.fps,
		Preset:           strings.TrimSpace(f.preset),
	}
	if crfSet {
		crf := f.crf
		req.CRF = &crf
	}

	source = strings.TrimSpace(source)
	if strings.Contains(source, "://") {
		req.SourceURL = source
	} else {
		absPath, err := filepath.Abs(source)
		if err != nil {
			return api.JobRequest{}, fmt.Errorf("resolve path: %w", err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return api.JobRequest{}, fmt.Errorf("file does not exist: %s", absPath)
			}
			return api.JobRequest{}, fmt.Errorf("inspect file: %w", err)
		}
		if info.IsDir() {
			return api.JobRequest{}, fmt.Errorf("%s is a directory", absPath)
		}
		req.SourcePath = absPath
	}

	if err := req.Validate(); err != nil {
		return api.JobRequest{}, err
	}
	return req, nil
}

func sourceLabel(req api.JobRequest) string {
	if req.Title != "" {
		return req.Title
	}
	if req.SourcePath != "" {
		return filepath.Base(req.SourcePath)
	}
	return req.SourceURL
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "add <url-or-path>",
		Short: "Queue a video for upscaling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.buildJobRequest(args[0], cmd.Flags().Changed("crf"))
			if err != nil {
				return err
			}

			session, err := ctx.openQueue(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			item, err := session.Access.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, item)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued job #%d (%s)\n", item.ID, sourceLabel(req))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the queued item as JSON")
	return cmd
}
