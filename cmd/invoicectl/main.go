package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BerylCAtieno/invoice-chat-api/internal/config"
	"github.com/BerylCAtieno/invoice-chat-api/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cfg := config.Read()

	cmd := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Maintenance commands for the invoice chat API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "path to the sqlite database")

	cmd.AddCommand(migrateCmd(cfg))
	cmd.AddCommand(cacheCmd(cfg))
	cmd.AddCommand(usageCmd(cfg))

	return cmd
}

func openDB(cfg *config.Config) (*sqlx.DB, error) {
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.DatabasePath, err)
	}
	return database, nil
}

func migrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.RunMigrations(cfg.DatabasePath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s is up to date\n", cfg.DatabasePath)
			return nil
		},
	}
}
