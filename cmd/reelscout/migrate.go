package main

import (
	"context"

	"github.com/spf13/cobra"

	"reelscout/internal/store"
	"reelscout/pkg/config"
	"reelscout/pkg/ui"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the projects, sources and reels tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, nil, func(ctx context.Context, cfg *config.Config, st *store.Store) error {
			if err := st.Health(ctx); err != nil {
				return err
			}
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			ui.PrintSuccess("Schema is up to date")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
