package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediafactory/internal/daemon"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.API.JWTSecret) == "" {
				return fmt.Errorf("api.jwt_secret is not configured")
			}
			token, err := daemon.IssueToken(cfg.API.JWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"token":     token,
					"subject":   subject,
					"expiresAt": time.Now().Add(ttl).UTC().Format(time.RFC3339),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "cli", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
