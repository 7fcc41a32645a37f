package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stemsi/mocktest-backend/internal/catalog"
	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/database"
	"github.com/stemsi/mocktest-backend/internal/logger"
	"github.com/stemsi/mocktest-backend/internal/repository"
	"github.com/stemsi/mocktest-backend/internal/service"
)

func newSeedCmd(cfg *config.Config) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load tests and questions from a YAML catalog into PostgreSQL and clear their cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := catalog.LoadFile(cfg.CatalogFile)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s  %-40s questions=%d marks=%d duration=%dm\n",
					e.Test.ID, e.Test.Title, e.Test.TotalQuestions, e.Test.TotalMarks, e.Test.DurationMinutes)
			}
			if dryRun {
				return nil
			}

			log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
			pool, err := database.NewPostgresPool(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			rdb, err := database.NewRedisClient(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			if rdb != nil {
				defer rdb.Close()
			}

			tests := repository.NewTestRepository(pool)
			cache := service.NewCatalogService(tests, rdb, cfg.CatalogCacheTTL, log)
			if err := catalog.Apply(cmd.Context(), tests, cache, entries); err != nil {
				return err
			}
			fmt.Printf("Seeded %d tests\n", len(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.CatalogFile, "file", cfg.CatalogFile, "catalog YAML file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and print the catalog without writing")
	return cmd
}
