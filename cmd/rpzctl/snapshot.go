package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSnapshotCmd(withConfig appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage stored zone dumps",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Args:  cobra.NoArgs,
		RunE: withConfig(func(cmd *cobra.Command, app *Application, _ []string) error {
			store, err := app.snapshots()
			if err != nil {
				return err
			}
			metas, err := store.List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ZONE\tSERIAL\tSAVED")
			for _, m := range metas {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", m.Name, m.Serial, m.SavedAt.UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <zone>",
		Short: "Delete a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: withConfig(func(cmd *cobra.Command, app *Application, args []string) error {
			store, err := app.snapshots()
			if err != nil {
				return err
			}
			return store.Delete(args[0])
		}),
	})

	return cmd
}
