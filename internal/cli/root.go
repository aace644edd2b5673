package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath string
)

var rootCmd = &cobra.Command{
	Use:   "landerd",
	Short: "landerd - self-hosted landing page gateway with cloaking and A/B experiments",
	Long: `landerd serves landing page bundles, filters out ad-platform
reviewers with configurable cloaking, and splits real visitors across
experiment variants. Single Go binary, embedded SQLite.

Running without a subcommand starts the server (same as 'landerd serve').`,
	RunE: runServe, // Default action is to start the server
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("LANDERD_DB", "landerd.db"), "database path")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
