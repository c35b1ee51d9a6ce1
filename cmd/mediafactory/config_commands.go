package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"mediafactory/internal/config"
)

const redacted = "********"

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var pathFlag string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(pathFlag)
			if target == "" {
				path, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = path
			}
			target, err := config.ExpandPath(target)
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file %s already exists (use --overwrite to replace)", target)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&pathFlag, "path", "p", "", "Destination path (default ~/.config/mediafactory/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			view := redactConfig(*cfg)
			if ctx.jsonOutput() {
				return writeJSON(cmd, view)
			}
			data, err := toml.Marshal(view)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			if ctx.configSeen {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", ctx.configPath)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func redactConfig(cfg config.Config) config.Config {
	mask := func(value *string) {
		if strings.TrimSpace(*value) != "" {
			*value = redacted
		}
	}
	mask(&cfg.LLM.APIKey)
	mask(&cfg.Voice.APIKey)
	mask(&cfg.Assets.APIKey)
	mask(&cfg.API.Token)
	mask(&cfg.API.JWTSecret)
	if cfg.Database.Driver != "sqlite" {
		mask(&cfg.Database.DSN)
	}
	return cfg
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			source := ctx.configPath
			if !ctx.configSeen {
				source = "defaults, no file at " + ctx.configPath
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration valid (%s)\n", source)
			fmt.Fprintf(cmd.OutOrStdout(), "Final stage: %s\n", cfg.FinalStage())
			fmt.Fprintf(cmd.OutOrStdout(), "Publishing enabled: %s\n", yesNo(cfg.Publish.Enabled))
			fmt.Fprintf(cmd.OutOrStdout(), "API enabled: %s\n", yesNo(cfg.API.Enabled))
			return nil
		},
	}
}
