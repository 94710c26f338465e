package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/internal/memory/exportfmt"
)

func newImportCommand(workspaceDir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import memories from a v1.0 export JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(*workspaceDir)
			if err != nil {
				return err
			}
			defer e.Close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := exportfmt.Parse(data)
			if err != nil {
				return err
			}

			var records []*entity.MemoryRecord
			for _, rec := range doc.Memories {
				records = append(records, rec.ToMemoryRecord())
			}
			saved := e.svc.SaveBatch(cmd.Context(), records)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d memories\n", len(saved), len(records))
			return nil
		},
	}
	return cmd
}
