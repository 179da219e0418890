package main

import (
	"encoding/json"
	"fmt"

	"csbridge/internal/database"
	"csbridge/internal/timestamps"

	"github.com/spf13/cobra"
)

func (a *app) backfillCmd() *cobra.Command {
	var (
		dryRun bool
		tables []string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "backfill-timestamps",
		Short: "Rewrite legacy local-time created_at values as UTC",
		Long: `Walks every row of the given tables one at a time and decides, from the
stored created_at and the current time, whether it was written in the local
reference zone. Such rows are rewritten in the canonical UTC layout. Rows that
cannot be resolved are listed for manual review and left untouched.`,
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

			backfill := timestamps.NewBackfill(db, zoneOf(cfg), timestamps.SystemClock(), a.logger, dryRun)
			reports, runErr := backfill.Run(cmd.Context(), tables...)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
				return runErr
			}

			if dryRun {
				fmt.Fprintln(out, "dry run: no rows were written")
			}
			for _, r := range reports {
				fmt.Fprintf(out, "%s: scanned=%d converted=%d unchanged=%d failed=%d review=%d\n",
					r.Table, r.Scanned, r.Converted, r.Unchanged, r.Failed, len(r.Review))
				for _, item := range r.Review {
					fmt.Fprintf(out, "  review %s#%d %q (%s)\n", item.Table, item.ID, item.Raw, item.Reason)
				}
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report decisions without writing")
	cmd.Flags().StringSliceVar(&tables, "table", database.TimestampTables, "tables to walk, in order")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the reports as JSON")
	return cmd
}
