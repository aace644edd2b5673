package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/landerd/landerd/internal/experiment"
	"github.com/landerd/landerd/internal/stats"
	"github.com/landerd/landerd/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results <id>",
	Short: "Show detailed results for an experiment",
	Long:  `Show per-variant conversion rates, confidence intervals and the significance verdict.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	id := args[0]

	return withRegistry(func(r *experiment.Registry, _ *store.SQLiteStore) error {
		ctx := context.Background()

		e, rows, analysis, err := r.Statistics(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("experiment '%s' not found", id)
			}
			return fmt.Errorf("failed to load statistics: %w", err)
		}

		fmt.Printf("EXPERIMENT: %s\n", e.Name)
		fmt.Printf("STATUS: %s\n", strings.ToUpper(string(e.Status)))
		for _, g := range e.Goals {
			if g.IsPrimary {
				fmt.Printf("GOAL: %s (%s on %s)\n", g.Name, g.Type, g.Target)
				break
			}
		}
		fmt.Printf("CREATED: %s\n", e.CreatedAt.Format("2006-01-02"))
		fmt.Println()

		fmt.Println("VARIANT           VISITORS  CONVERSIONS  RATE     95% CI")
		fmt.Println(strings.Repeat("─", 64))

		intervals := make(map[string]stats.Interval, len(analysis.Intervals))
		for _, iv := range analysis.Intervals {
			intervals[iv.VariantID] = iv
		}

		for _, row := range rows {
			v := e.Variant(row.VariantID)
			name := row.VariantID
			if v != nil {
				name = v.Name
			}
			if len(name) > 16 {
				name = name[:13] + "..."
			}

			indicator := ""
			if analysis.Significant && analysis.WinnerID == row.VariantID {
				indicator = " ← WINNER"
			}

			ciStr := "N/A"
			if iv, ok := intervals[row.VariantID]; ok && row.Visitors > 0 {
				ciStr = fmt.Sprintf("[%.1f%%, %.1f%%]", iv.Lower*100, iv.Upper*100)
			}

			fmt.Printf("%-16s  %-8d  %-11d  %-7s  %s%s\n",
				name,
				row.Visitors,
				row.Conversions,
				formatPercent(row.ConversionRate),
				ciStr,
				indicator,
			)
		}

		fmt.Println()

		switch {
		case analysis.Significant:
			winner := analysis.WinnerID
			if v := e.Variant(analysis.WinnerID); v != nil {
				winner = v.Name
			}
			fmt.Printf("Statistical significance: p=%.4f, \"%s\" wins with %+.1f%% improvement\n",
				analysis.PValue, winner, analysis.Improvement)
		case analysis.Reason == stats.ReasonInsufficientData:
			fmt.Println("Statistical significance: not enough data yet")
		default:
			fmt.Printf("Statistical significance: no significant difference (p=%.4f)\n", analysis.PValue)
		}

		return nil
	})
}

func formatPercent(rate float64) string {
	if rate == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", rate*100)
}
