package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/landerd/landerd/internal/experiment"
	"github.com/landerd/landerd/internal/store"
)

func init() {
	rootCmd.AddCommand(startCmd, pauseCmd, stopCmd)
}

var startCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Start a draft or paused experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(func(r *experiment.Registry, _ *store.SQLiteStore) error {
			e, err := r.Start(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Started experiment '%s'", e.Name)
			if e.EndDate != nil {
				fmt.Printf(", runs until %s", e.EndDate.Format("2006-01-02"))
			}
			fmt.Println()
			return nil
		})
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause a running experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(func(r *experiment.Registry, _ *store.SQLiteStore) error {
			e, err := r.Pause(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Paused experiment '%s'\n", e.Name)
			return nil
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <id>",
	Short: "Stop an experiment and compute the final analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(func(r *experiment.Registry, _ *store.SQLiteStore) error {
			e, analysis, err := r.Stop(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Stopped experiment '%s'\n", e.Name)
			if e.Winner != nil {
				winner := e.Winner.VariantID
				if v := e.Variant(e.Winner.VariantID); v != nil {
					winner = v.Name
				}
				fmt.Printf("Winner: %s (%+.1f%% improvement, p=%.4f)\n",
					winner, e.Winner.Improvement, analysis.PValue)
			} else {
				fmt.Println("No significant winner")
			}
			return nil
		})
	},
}
