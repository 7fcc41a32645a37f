package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/events"
)

func newEventsCmd(cfg *config.Config) *cobra.Command {
	var (
		follow bool
		wait   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Drain attempt-completed events from the Redis queue and print them as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("parse redis URL: %w", err)
			}
			rdb := redis.NewClient(opt)
			defer rdb.Close()

			queue := events.NewRedisPublisher(rdb)
			enc := json.NewEncoder(cmd.OutOrStdout())
			for {
				e, err := queue.Next(cmd.Context(), wait)
				if err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					return err
				}
				if e == nil {
					if !follow {
						return nil
					}
					continue
				}
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
		},
	}

	cmd.Flags().StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis connection URL")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep waiting for new events")
	cmd.Flags().DurationVar(&wait, "wait", time.Second, "how long to block for each event")
	return cmd
}
