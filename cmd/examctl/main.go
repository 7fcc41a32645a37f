// Command examctl administers the mock test backend: schema migrations,
// catalog seeding, development tokens and the completion-event queue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stemsi/mocktest-backend/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:           "examctl",
		Short:         "Administrative tooling for the mock test backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection URL")
	cmd.AddCommand(newMigrateCmd(cfg))
	cmd.AddCommand(newSeedCmd(cfg))
	cmd.AddCommand(newTokenCmd(cfg))
	cmd.AddCommand(newEventsCmd(cfg))
	return cmd
}
