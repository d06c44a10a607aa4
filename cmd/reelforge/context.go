package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"reelforge/internal/config"
	"reelforge/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	serverFlag   *string
	tokenFlag    *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag, serverFlag, tokenFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		serverFlag:   serverFlag,
		tokenFlag:    tokenFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
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

func (c *commandContext) resolvedLogLevel(cfg *config.Config) string {
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			return level
		}
	}
	if cfg == nil {
		return "info"
	}
	return cfg.Logging.Level
}

// cliLogger writes to stderr so command output on stdout stays parseable.
func (c *commandContext) cliLogger(cfg *config.Config) (*slog.Logger, error) {
	format := "console"
	if cfg != nil {
		format = cfg.Logging.Format
	}
	return logging.New(logging.Options{
		Level:       c.resolvedLogLevel(cfg),
		Format:      format,
		OutputPaths: []string{"stderr"},
	})
}

func (c *commandContext) serverURL(cfg *config.Config) string {
	if c.serverFlag != nil {
		if server := strings.TrimSpace(*c.serverFlag); server != "" {
			return strings.TrimRight(server, "/")
		}
	}
	bind := "127.0.0.1:7490"
	if cfg != nil && strings.TrimSpace(cfg.Paths.APIBind) != "" {
		bind = cfg.Paths.APIBind
	}
	host, port, err := net.SplitHostPort(bind)
	if err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		bind = net.JoinHostPort("127.0.0.1", port)
	}
	return "http://" + bind
}

func (c *commandContext) apiToken(cfg *config.Config) string {
	if c.tokenFlag != nil {
		if token := strings.TrimSpace(*c.tokenFlag); token != "" {
			return token
		}
	}
	if cfg == nil {
		return ""
	}
	return cfg.Paths.APIToken
}

func (c *commandContext) client() (*apiClient, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return newAPIClient(c.serverURL(cfg), c.apiToken(cfg)), nil
}

func (c *commandContext) withClient(fn func(*apiClient) error) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	return wrapDialError(fn(client), client.baseURL)
}

func wrapDialError(err error, server string) error {
	if err == nil {
		return nil
	}
	var opErr *net.OpError
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: %s refused the connection; start it with `reelforge daemon`", server)
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return fmt.Errorf("connect to daemon at %s: %w", server, err)
	default:
		return err
	}
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
