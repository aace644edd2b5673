package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/landerd/landerd/internal/experiment"
	"github.com/landerd/landerd/internal/store"
)

// withStore opens the database, executes the function, and handles cleanup.
func withStore(fn func(*store.SQLiteStore) error) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(s)
}

// withRegistry opens the database and hands an experiment registry to the
// function. CLI commands log quietly; the registry's own log lines go to
// stderr at warn and above.
func withRegistry(fn func(*experiment.Registry, *store.SQLiteStore) error) error {
	return withStore(func(s *store.SQLiteStore) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		return fn(experiment.NewRegistry(s, nil, logger), s)
	})
}

// quietLogger discards everything, for code paths that must stay silent.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
