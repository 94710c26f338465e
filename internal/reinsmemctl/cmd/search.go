package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiosk404/reinsmem/internal/memory/search/hybrid"
)

func newSearchCommand(workspaceDir *string) *cobra.Command {
	var limit int
	var minScore float64
	var policyName string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memories via the hybrid BM25 + vector retriever",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(*workspaceDir)
			if err != nil {
				return err
			}
			defer e.Close()

			results, err := e.svc.Search(cmd.Context(), args[0], hybrid.Options{
				Limit: limit, MinScore: minScore, Policy: hybrid.Policy(policyName),
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "no matches")
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(out, "%-36s  score=%.3f  bm25=%.3f  vector=%.3f  %s\n",
					r.MemoryID, r.Score, r.BM25Score, r.VectorScore, truncate(r.Content, 60))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default from config)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum fused score")
	cmd.Flags().StringVar(&policyName, "policy", "", "ranking policy: weighted_sum or rrf")
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
