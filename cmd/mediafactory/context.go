package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mediafactory/internal/config"
	"mediafactory/internal/daemonrun"
	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
)

const defaultEnvFile = ".env"

type commandContext struct {
	configFlag *string
	envFlag    *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(configFlag, envFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		envFlag:    envFlag,
		jsonFlag:   jsonFlag,
	}
}

// loadEnv applies a .env file before configuration is read. Variables
// already present in the environment win.
func (c *commandContext) loadEnv() error {
	path := ""
	if c.envFlag != nil {
		path = strings.TrimSpace(*c.envFlag)
	}
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(defaultEnvFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", defaultEnvFile, err)
	}
	if err := godotenv.Load(defaultEnvFile); err != nil {
		return fmt.Errorf("load %s: %w", defaultEnvFile, err)
	}
	return nil
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// withRuntime opens the stores for the duration of fn.
func (c *commandContext) withRuntime(cmd *cobra.Command, fn func(*daemonrun.Runtime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	rt, err := daemonrun.Open(cmd.Context(), cfg, logging.NewNop())
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
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

func orderedStatuses() []string {
	all := jobs.AllStatuses()
	out := make([]string, 0, len(all))
	for _, status := range all {
		out = append(out, string(status))
	}
	return out
}
