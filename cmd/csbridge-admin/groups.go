package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"csbridge/pkg/whatsapp"
	"csbridge/pkg/whatsapp/types"

	"github.com/spf13/cobra"
)

func (a *app) groupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List the WhatsApp groups of the session with their ids",
		Long: `Prints the id and name of every group the linked account belongs to.
Group ids are what the exclusion list expects.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			client := whatsapp.NewClient(types.ClientConfig{
				BaseURL:     cfg.WhatsApp.APIBaseURL,
				APIKey:      cfg.WhatsApp.APIKey,
				SessionName: cfg.WhatsApp.SessionName,
				Timeout:     time.Duration(cfg.WhatsApp.TimeoutMs) * time.Millisecond,
			})

			groups, err := client.GetGroups(cmd.Context())
			if err != nil {
				return fmt.Errorf("list groups: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for i := range groups {
				fmt.Fprintf(w, "%s\t%s\n", groups[i].ID, groups[i].GetDisplayName())
			}
			return w.Flush()
		},
	}
}
