// Package cmd implements the ecoleta command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"ecoleta/config"
	"ecoleta/storage"
	"ecoleta/storage/mongostore"
	"ecoleta/storage/sqlstore"

	"github.com/spf13/cobra"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "ecoleta",
	Short: "Recycling collection point registry",
	Long:  `Ecoleta serves the recyclable-item catalog and the registry of collection points, and drives the point creation form from the terminal.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		slog.SetDefault(config.NewLogger(cfg.LogLevel))
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, createPointCmd, lookupCmd, tokenCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore connects to the backend selected by ECOLETA_STORE.
func openStore(ctx context.Context) (storage.Store, error) {
	switch cfg.Store {
	case "postgres":
		return sqlstore.OpenPostgres(ctx, cfg.DatabaseURL)
	case "mongo":
		return mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return sqlstore.OpenSQLite(cfg.DatabaseURL)
	}
}
