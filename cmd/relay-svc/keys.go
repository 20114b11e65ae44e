package main

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"supportrelay/internal/common"
)

// NewHashKeyCommand prints the bcrypt hash to put in MODERATOR_KEY_HASH
func NewHashKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <moderator-key>",
		Short: "Hash a moderator key for MODERATOR_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := common.HashModeratorKey(args[0])
			if err != nil {
				return errors.WithMessage(err, "couldn't hash key")
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// NewIssueTokenCommand signs a bearer token for local testing of the user routes
func NewIssueTokenCommand() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "issue-token <user-id>",
		Short: "Sign a bearer token with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLogs, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLogs()

			if ttl <= 0 {
				ttl = time.Duration(cfg.Auth.TokenTTL) * time.Hour
			}
			token, err := common.NewTokenIssuer(cfg.Auth.JWTSecret, ttl).GenerateToken(args[0])
			if err != nil {
				return errors.WithMessage(err, "couldn't issue token")
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default JWT_TTL_HOURS)")
	return cmd
}
