package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/landerd/landerd/internal/cloak"
	"github.com/landerd/landerd/internal/config"
	"github.com/landerd/landerd/internal/events"
	"github.com/landerd/landerd/internal/experiment"
	"github.com/landerd/landerd/internal/geo"
	"github.com/landerd/landerd/internal/hooks"
	"github.com/landerd/landerd/internal/metrics"
	"github.com/landerd/landerd/internal/server"
	"github.com/landerd/landerd/internal/store"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the landerd HTTP server.

The server provides:
  - Landing page delivery with cloaking and variant assignment
  - Management API for experiments, domains and pages
  - Event ingestion, health and metrics endpoints

Example:
  landerd serve --port 8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides LANDERD_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	// Flags override the environment
	if port > 0 {
		cfg.Port = port
	}
	if dbPath != "" {
		// --db already defaults from LANDERD_DB
		cfg.DBPath = dbPath
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	geoDB := geo.Default()
	if cfg.GeoPath != "" {
		geoDB, err = geo.Load(cfg.GeoPath)
		if err != nil {
			return fmt.Errorf("failed to load geo dataset: %w", err)
		}
	}

	var engine hooks.Engine = hooks.LogEngine{Logger: logger}
	if cfg.WebhookURL != "" {
		engine = hooks.NewWebhookEngine(cfg.WebhookURL, logger)
	}

	m := metrics.New()
	classifier := cloak.NewClassifier(cloak.DefaultLists(), geoDB, logger)
	registry := experiment.NewRegistry(s, engine, logger)

	recorder := events.NewRecorder(s, engine, m, logger, cfg.EventQueueSize)
	recorder.Start()
	defer recorder.Close()

	srv := server.New(server.Deps{
		Store:      s,
		Registry:   registry,
		Classifier: classifier,
		Recorder:   recorder,
		Metrics:    m,
		Logger:     logger,
	}, server.Config{
		Port:       cfg.Port,
		TokenFile:  cfg.TokenFile,
		Production: cfg.Production,
	})
	return srv.Start()
}
