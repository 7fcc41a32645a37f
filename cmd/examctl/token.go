package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/service"
)

func newTokenCmd(cfg *config.Config) *cobra.Command {
	var (
		user   string
		expiry time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID := uuid.New()
			if user != "" {
				var err error
				if userID, err = uuid.Parse(user); err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
			}

			token, err := service.NewAuthService(cfg.JWTSecret, expiry).GenerateToken(userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "user_id: %s\n", userID)
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user UUID (random when omitted)")
	cmd.Flags().DurationVar(&expiry, "expiry", cfg.JWTExpiry, "token lifetime")
	return cmd
}
