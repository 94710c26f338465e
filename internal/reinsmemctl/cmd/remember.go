package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/internal/memory/service"
)

func newRememberCommand(workspaceDir *string) *cobra.Command {
	var implicit bool
	var memType string
	var importance float64
	var confidence float64
	var tags string
	var conversationID string

	cmd := &cobra.Command{
		Use:   "remember <content>",
		Short: "Save a new memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(*workspaceDir)
			if err != nil {
				return err
			}
			defer e.Close()

			content := args[0]
			var tagList []string
			if tags != "" {
				tagList = strings.Split(tags, ",")
			}

			var rec *entity.MemoryRecord
			if implicit {
				rec, err = e.svc.SaveImplicit(cmd.Context(), content, service.ImplicitOptions{
					Type: entity.MemoryType(memType), Importance: importance, Confidence: confidence,
					Tags: tagList, ConversationID: conversationID,
				})
			} else {
				rec, err = e.svc.RememberExplicit(cmd.Context(), content, service.ExplicitOptions{
					Type: entity.MemoryType(memType), Importance: importance, Confidence: confidence,
					Tags: tagList, ConversationID: conversationID,
				})
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "remembered %s\n", rec.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&implicit, "implicit", false, "save as an implicitly sourced memory")
	cmd.Flags().StringVar(&memType, "type", "", "memory type override")
	cmd.Flags().Float64Var(&importance, "importance", 0, "importance override")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "confidence override")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags")
	cmd.Flags().StringVar(&conversationID, "conversation-id", "", "conversation id (required for --implicit)")
	return cmd
}
