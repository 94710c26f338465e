package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiosk404/reinsmem/internal/memory/exportfmt"
	"github.com/kiosk404/reinsmem/internal/memory/store"
)

func newExportCommand(workspaceDir *string) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every memory to the v1.0 JSON format",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(*workspaceDir)
			if err != nil {
				return err
			}
			defer e.Close()

			records, err := e.repo.List(cmd.Context(), store.ListFilter{Limit: 1 << 30})
			if err != nil {
				return err
			}
			doc := exportfmt.Export(records, time.Now().UTC())
			data, err := exportfmt.Marshal(doc)
			if err != nil {
				return err
			}

			if outPath == "" || outPath == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d memories to %s\n", len(records), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "output file path (default: stdout)")
	return cmd
}
