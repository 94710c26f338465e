package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReconcileCommand(workspaceDir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Report divergences between the SQLite rows and the Markdown files",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(*workspaceDir)
			if err != nil {
				return err
			}
			defer e.Close()

			report, err := e.repo.Reconcile(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if report.IsConsistent {
				fmt.Fprintln(out, "store is consistent")
				return nil
			}
			fmt.Fprintln(out, "store is inconsistent:")
			for _, id := range report.MissingFiles {
				fmt.Fprintf(out, "  missing file for memory %s\n", id)
			}
			for _, id := range report.ContentMismatches {
				fmt.Fprintf(out, "  content mismatch for memory %s\n", id)
			}
			for _, name := range report.OrphanedFiles {
				fmt.Fprintf(out, "  orphaned file %s\n", name)
			}
			return nil
		},
	}
	return cmd
}
