package main

import (
	"fmt"
	"strings"

	"csbridge/internal/exclusions"

	"github.com/spf13/cobra"
)

func (a *app) exclusionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exclusions",
		Short: "List or edit the conversations the bridge never answers",
	}

	open := func() (*exclusions.FileStore, error) {
		cfg, err := a.loadConfig()
		if err != nil {
			return nil, err
		}
		return exclusions.NewFileStore(cfg.Gate.ExclusionsFile)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every excluded conversation id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			list, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range list {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <conversation-id>",
		Short: "Exclude a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			added, err := store.Add(cmd.Context(), id)
			if err != nil {
				return err
			}
			if added {
				fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already excluded\n", id)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <conversation-id>",
		Short: "Stop excluding a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			removed, err := store.Remove(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%s is not excluded", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
			return nil
		},
	})

	return cmd
}
