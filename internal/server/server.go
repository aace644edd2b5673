// Package server wires the serving pipeline and the management API onto
// a gorilla/mux router.
package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/landerd/landerd/internal/cloak"
	"github.com/landerd/landerd/internal/events"
	"github.com/landerd/landerd/internal/experiment"
	"github.com/landerd/landerd/internal/metrics"
	"github.com/landerd/landerd/internal/store"
)

// Deps are the services the server dispatches into. All of them are
// constructed by the caller and injected.
type Deps struct {
	Store      store.Store
	Registry   *experiment.Registry
	Classifier *cloak.Classifier
	Recorder   *events.Recorder
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Config carries the listener settings.
type Config struct {
	Port       int
	TokenFile  string
	Production bool
}

type Server struct {
	store      store.Store
	registry   *experiment.Registry
	classifier *cloak.Classifier
	recorder   *events.Recorder
	metrics    *metrics.Metrics
	logger     *slog.Logger

	port       int
	token      string
	tokenFile  string
	production bool
	router     *mux.Router
	limiter    *ipLimiter
	startTime  time.Time
}

func New(deps Deps, cfg Config) *Server {
	s := &Server{
		store:      deps.Store,
		registry:   deps.Registry,
		classifier: deps.Classifier,
		recorder:   deps.Recorder,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		port:       cfg.Port,
		token:      generateToken(),
		tokenFile:  cfg.TokenFile,
		production: cfg.Production,
		router:     mux.NewRouter(),
		limiter:    newIPLimiter(10, 30),
		startTime:  time.Now(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(s.loggingMiddleware)

	// Public endpoints
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/page/{id}", s.handlePage).Methods(http.MethodGet)
	r.Handle("/api/ab-tests/{id}/events",
		s.rateLimitMiddleware(http.HandlerFunc(s.handleRecordEvent))).Methods(http.MethodPost)

	// Management endpoints (protected)
	protected := func(h http.HandlerFunc) http.Handler { return s.authMiddleware(h) }

	r.Handle("/api/ab-tests", protected(s.handleCreateExperiment)).Methods(http.MethodPost)
	r.Handle("/api/ab-tests", protected(s.handleListExperiments)).Methods(http.MethodGet)
	r.Handle("/api/ab-tests/{id}", protected(s.handleGetExperiment)).Methods(http.MethodGet)
	r.Handle("/api/ab-tests/{id}", protected(s.handleUpdateExperiment)).Methods(http.MethodPut)
	r.Handle("/api/ab-tests/{id}", protected(s.handleDeleteExperiment)).Methods(http.MethodDelete)
	r.Handle("/api/ab-tests/{id}/start", protected(s.handleStartExperiment)).Methods(http.MethodPost)
	r.Handle("/api/ab-tests/{id}/pause", protected(s.handlePauseExperiment)).Methods(http.MethodPost)
	r.Handle("/api/ab-tests/{id}/stop", protected(s.handleStopExperiment)).Methods(http.MethodPost)
	r.Handle("/api/ab-tests/{id}/clone", protected(s.handleCloneExperiment)).Methods(http.MethodPost)
	r.Handle("/api/ab-tests/{id}/statistics", protected(s.handleStatistics)).Methods(http.MethodGet)

	r.Handle("/api/cloak/test-ip", protected(s.handleTestIP)).Methods(http.MethodPost)
	r.Handle("/api/cloak/settings", protected(s.handleCloakSettings)).Methods(http.MethodGet)

	r.Handle("/api/domains", protected(s.handleCreateDomain)).Methods(http.MethodPost)
	r.Handle("/api/domains/{id}", protected(s.handleGetDomain)).Methods(http.MethodGet)
	r.Handle("/api/pages", protected(s.handleCreatePage)).Methods(http.MethodPost)
	r.Handle("/api/pages/{id}", protected(s.handleGetPage)).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	return s.StartWithOptions(true)
}

// StartQuiet starts the server without printing startup messages.
func (s *Server) StartQuiet() error {
	return s.StartWithOptions(false)
}

func (s *Server) StartWithOptions(printMessages bool) error {
	// Write token to file so CLI commands can authenticate
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0600); err != nil {
			s.logger.Warn("failed to write token file", "path", s.tokenFile, "error", err)
		}
	}

	addr := fmt.Sprintf(":%d", s.port)

	if printMessages {
		fmt.Println()
		fmt.Printf("landerd running on http://localhost:%d\n", s.port)
		fmt.Printf("API token: %s\n", s.token)
		fmt.Println()
		fmt.Println("Press Ctrl+C to stop")
	}

	return http.ListenAndServe(addr, s.router)
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func generateToken() string {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a fixed token if crypto/rand fails
		return "a1b2c3d4"
	}
	return hex.EncodeToString(bytes)
}
