package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/703deuce/upscale/internal/api"
	"github.com/703deuce/upscale/internal/config"
	"github.com/703deuce/upscale/internal/queue"
	"github.com/703deuce/upscale/internal/queueaccess"
)

// daemonProbeTimeout bounds how long queue commands wait to discover whether
// the daemon is up before falling back to direct database access.
const daemonProbeTimeout = 2 * time.Second

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// apiClient builds a daemon API client from the configured bind address,
// overridden by the --api flag when set.
func (c *commandContext) apiClient() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	addr := cfg.API.Bind
	if c.apiFlag != nil {
		if flagged := strings.TrimSpace(*c.apiFlag); flagged != "" {
			addr = flagged
		}
	}
	return api.NewClient(addr, cfg.API.Token), nil
}

// dialDaemon returns a client only when the daemon answers a status probe.
func (c *commandContext) dialDaemon(ctx context.Context) (*api.Client, error) {
	client, err := c.apiClient()
	if err != nil {
		return nil, err
	}
	probeCtx, cancel := context.WithTimeout(ctx, daemonProbeTimeout)
	defer cancel()
	if _, err := client.Status(probeCtx); err != nil {
		return nil, err
	}
	return client, nil
}

// openQueue yields queue access through the daemon when it is running and
// directly through the database otherwise.
func (c *commandContext) openQueue(ctx context.Context) (queueaccess.Session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return queueaccess.Session{}, err
	}
	return queueaccess.OpenWithFallback(ctx, c.dialDaemon, func() (*queue.Store, error) {
		return queue.Open(cfg)
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
