// Package testutil provides shared helpers for integration tests.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/landerd/landerd/internal/cloak"
	"github.com/landerd/landerd/internal/events"
	"github.com/landerd/landerd/internal/experiment"
	"github.com/landerd/landerd/internal/geo"
	"github.com/landerd/landerd/internal/metrics"
	"github.com/landerd/landerd/internal/server"
	"github.com/landerd/landerd/internal/store"
)

// SetupTestStore creates a test database and returns the store.
// Uses t.TempDir() for automatic cleanup on test completion.
func SetupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := tmpDir + "/test.db"

	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestServer bundles a fully wired server with the services tests poke at
// directly.
type TestServer struct {
	Server   *server.Server
	Store    *store.SQLiteStore
	Registry *experiment.Registry
	Recorder *events.Recorder
}

// SetupTestServer wires a server against a fresh store with the default
// classifier lists and embedded geo data. The recorder worker is running;
// call DrainEvents before asserting on counters.
func SetupTestServer(t *testing.T) *TestServer {
	t.Helper()

	s := SetupTestStore(t)
	logger := Logger()
	m := metrics.New()

	classifier := cloak.NewClassifier(cloak.DefaultLists(), geo.Default(), logger)
	registry := experiment.NewRegistry(s, nil, logger)
	recorder := events.NewRecorder(s, nil, m, logger, 256)
	recorder.Start()

	srv := server.New(server.Deps{
		Store:      s,
		Registry:   registry,
		Classifier: classifier,
		Recorder:   recorder,
		Metrics:    m,
		Logger:     logger,
	}, server.Config{Port: 8080})

	return &TestServer{
		Server:   srv,
		Store:    s,
		Registry: registry,
		Recorder: recorder,
	}
}

// DrainEvents stops the recorder and waits until every queued event has
// been applied. The server must not receive further traffic afterwards.
func (ts *TestServer) DrainEvents() {
	ts.Recorder.Close()
}
