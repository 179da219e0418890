package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// migrateCmd creates the schema on a fresh database. Opening the store applies
// the schema idempotently, so running it twice is harmless.
func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			db, err := a.openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready at %s\n", cfg.Database.Path)
			return nil
		},
	}
}
