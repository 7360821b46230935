// ABOUTME: Backend selection for the conversation store
// ABOUTME: Opens the durable SQLite store and falls back to in-memory when its schema is unavailable

package store

import (
	"log/slog"
)

// Backend bundles the Store with its ServiceStore side. Only this factory
// knows which implementation is live; calling code never branches on it.
type Backend struct {
	Store    Store
	Services ServiceStore

	// Fallback is true when the in-memory store was engaged. State is then
	// process-lifetime only and service bookkeeping reports ErrSchemaMissing.
	Fallback bool
}

// Open initializes the durable store at path. If the durable store cannot be
// opened or its schema cannot be created, Open engages the in-memory fallback
// with a warning instead of failing: conversation and message flows keep the
// same invariants on either backend.
func Open(path string, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	sqlite, err := NewSQLiteStore(path)
	if err != nil {
		logger.Warn("durable store unavailable, using in-memory fallback",
			"path", path,
			"error", err)
		mem := NewMemoryStore()
		return &Backend{Store: mem, Services: mem, Fallback: true}
	}

	return &Backend{Store: sqlite, Services: sqlite}
}
