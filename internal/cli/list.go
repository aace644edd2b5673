package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/landerd/landerd/internal/store"
)

var listStatus string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List experiments",
	Long:  `List experiments with their status and visitor totals.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (draft|running|paused|completed)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()

		experiments, err := s.ListExperiments(ctx, store.ExperimentStatus(listStatus))
		if err != nil {
			return fmt.Errorf("failed to list experiments: %w", err)
		}

		if len(experiments) == 0 {
			fmt.Println("No experiments yet.")
			fmt.Println()
			fmt.Println("Create one with: landerd create")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tVARIANTS\tVISITORS\tWINNER\tCREATED")

		for _, e := range experiments {
			winner := "-"
			if e.Winner != nil {
				if v := e.Variant(e.Winner.VariantID); v != nil {
					winner = v.Name
				} else {
					winner = e.Winner.VariantID
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
				e.ID,
				e.Name,
				strings.ToUpper(string(e.Status)),
				len(e.Variants),
				e.TotalVisitors,
				winner,
				e.CreatedAt.Format("2006-01-02"),
			)
		}

		w.Flush()
		return nil
	})
}
