// Command upscaled runs the video upscaling daemon in the foreground,
// suitable for systemd or other supervisors. The upscale CLI embeds the same
// runtime behind its hidden daemon subcommand.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/703deuce/upscale/internal/config"
	"github.com/703deuce/upscale/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
