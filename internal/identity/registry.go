// ABOUTME: Role registry backed by the user directory with a local fallback
// ABOUTME: Resolves roles for authorization and lazily provisions directory entries

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/propstead/messaging/internal/store"
)

// Registry resolves user roles and lazily provisions directory entries.
// When the directory returns nothing for an id, the registry falls back to a
// locally tracked role for that id, defaulting to buyer.
type Registry struct {
	store  store.Store
	logger *slog.Logger

	mu    sync.RWMutex
	local map[string]Role // roles asserted for ids the directory doesn't know
}

// NewRegistry creates a role registry over the given store.
func NewRegistry(s store.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:  s,
		logger: logger.With("component", "identity"),
		local:  make(map[string]Role),
	}
}

// RoleOf resolves a user's role. Directory first, then the local fallback,
// then buyer.
func (r *Registry) RoleOf(ctx context.Context, userID string) (Role, error) {
	user, err := r.store.GetUser(ctx, userID)
	if err == nil {
		return ParseRole(user.Role), nil
	}
	if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrSchemaMissing) {
		return RoleBuyer, fmt.Errorf("resolving role for %s: %w", userID, err)
	}

	r.mu.RLock()
	role, ok := r.local[userID]
	r.mu.RUnlock()
	if ok {
		return role, nil
	}
	return RoleBuyer, nil
}

// EnsureUser lazily provisions a directory entry the first time a caller
// asserts a display name and role for an id. An existing entry's identity is
// never overwritten, only backfilled. The asserted role is also tracked
// locally so role resolution keeps working if the directory is unavailable.
func (r *Registry) EnsureUser(ctx context.Context, id, displayName string, role Role) error {
	r.mu.Lock()
	if _, ok := r.local[id]; !ok {
		r.local[id] = role
	}
	r.mu.Unlock()

	err := r.store.EnsureUser(ctx, &store.User{
		ID:          id,
		DisplayName: displayName,
		Role:        string(role),
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("ensuring user %s: %w", id, err)
	}

	r.logger.Debug("ensured user", "id", id, "role", role)
	return nil
}

// DisplayNameOf returns the directory display name for an id, or the empty
// string when the directory doesn't know the user.
func (r *Registry) DisplayNameOf(ctx context.Context, userID string) string {
	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return ""
	}
	return user.DisplayName
}
