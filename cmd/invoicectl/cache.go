package main

import (
	"fmt"

	"github.com/BerylCAtieno/invoice-chat-api/internal/config"
	"github.com/BerylCAtieno/invoice-chat-api/internal/promptcache"
	"github.com/BerylCAtieno/invoice-chat-api/internal/repository"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"
	"github.com/spf13/cobra"
)

func cacheCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the prompt cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired prompt cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, closeDB, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			n, err := cache.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expired entries\n", n)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show prompt cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, closeDB, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			stats, err := cache.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Entries:          %d\n", stats.TotalEntries)
			fmt.Fprintf(out, "Hits:             %d\n", stats.TotalHits)
			fmt.Fprintf(out, "Tokens saved:     %d\n", stats.TotalTokensSaved)
			fmt.Fprintf(out, "Hits per entry:   %.2f\n", stats.AverageHitsPerEntry)
			return nil
		},
	})

	return cmd
}

func openCache(cfg *config.Config) (*promptcache.Cache, func() error, error) {
	database, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}

	logger := utils.NewLogger(cfg.LogLevel)
	cache := promptcache.New(repository.NewPromptCacheRepository(database), logger, promptcache.WithTTL(cfg.CacheTTL))
	return cache, database.Close, nil
}
