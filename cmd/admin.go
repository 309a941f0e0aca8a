package cmd

import (
	"fmt"
	"time"

	"ecoleta/middleware"
	"ecoleta/services"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and indexes in the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.InitSchema(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", cfg.Store)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed [catalog.yaml]",
	Short: "Upsert the item catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.CatalogFile
		if len(args) == 1 {
			path = args[0]
		}
		catalog, err := services.LoadCatalog(path)
		if err != nil {
			return err
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.InitSchema(cmd.Context()); err != nil {
			return err
		}
		if err := services.NewItemService(store, nil, cfg.PublicURL).Seed(cmd.Context(), catalog); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d items\n", len(catalog))
		return nil
	},
}

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a bearer token accepted by POST /points",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.JWTSecret == "" {
			return fmt.Errorf("ECOLETA_JWT_SECRET is not set")
		}
		token, err := middleware.IssueToken(cfg.JWTSecret, tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "ecoleta-web", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}
