// ABOUTME: Authorization policy for conversation reads and writes
// ABOUTME: Admins may observe any conversation; everyone else must be a member of a strictly 1:1 thread

package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/propstead/messaging/internal/identity"
	"github.com/propstead/messaging/internal/store"
)

// ErrForbidden is returned when an authenticated caller is not authorized
// for a conversation or action. Distinct from store.ErrNotFound so API
// layers can render "you don't have access" rather than "doesn't exist".
var ErrForbidden = errors.New("forbidden")

// Guard is the single authorization policy consulted before every
// conversation read or write.
type Guard struct {
	roles  *identity.Registry
	logger *slog.Logger
}

// NewGuard creates an access guard over the given role registry.
func NewGuard(roles *identity.Registry, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		roles:  roles,
		logger: logger.With("component", "access"),
	}
}

// CanAccess decides whether actorID may read or write a conversation with
// the given membership.
//
// Admins are granted unconditionally: an admin observing a 1:1 thread does
// not become a disqualifying third party for the original two users. The
// resulting extra membership is tolerated but flagged.
//
// Non-admin actors must be recorded members, and the conversation's
// non-admin membership must still number at most two - a conversation that
// somehow grew a third non-admin member is treated as forbidden rather than
// silently served.
func (g *Guard) CanAccess(ctx context.Context, actorID string, members []*store.Member) error {
	actorRole, err := g.roles.RoleOf(ctx, actorID)
	if err != nil {
		return fmt.Errorf("resolving actor role: %w", err)
	}

	nonAdmin, err := g.countNonAdmin(ctx, members)
	if err != nil {
		return err
	}

	if actorRole.Admin() {
		if len(members) > nonAdmin && nonAdmin == 2 {
			g.logger.Debug("admin observing 1:1 conversation", "actor_id", actorID, "members", len(members))
		}
		return nil
	}

	if !isMember(actorID, members) {
		return fmt.Errorf("user %s is not a member: %w", actorID, ErrForbidden)
	}
	if nonAdmin > 2 {
		g.logger.Warn("conversation exceeds two non-admin members", "actor_id", actorID, "non_admin_members", nonAdmin)
		return fmt.Errorf("conversation membership exceeds two participants: %w", ErrForbidden)
	}
	return nil
}

// CheckNewPair enforces the pairing rule for conversation creation: a
// non-admin requester may not open a conversation with themselves as both
// parties.
func (g *Guard) CheckNewPair(ctx context.Context, requesterID, recipientID string) error {
	if requesterID != recipientID {
		return nil
	}

	role, err := g.roles.RoleOf(ctx, requesterID)
	if err != nil {
		return fmt.Errorf("resolving requester role: %w", err)
	}
	if role.Admin() {
		return nil
	}
	return fmt.Errorf("cannot open a conversation with yourself: %w", ErrForbidden)
}

// IsAdmin resolves whether the actor holds the admin role.
func (g *Guard) IsAdmin(ctx context.Context, actorID string) (bool, error) {
	role, err := g.roles.RoleOf(ctx, actorID)
	if err != nil {
		return false, err
	}
	return role.Admin(), nil
}

func (g *Guard) countNonAdmin(ctx context.Context, members []*store.Member) (int, error) {
	count := 0
	for _, m := range members {
		role, err := g.roles.RoleOf(ctx, m.UserID)
		if err != nil {
			return 0, fmt.Errorf("resolving member role: %w", err)
		}
		if !role.Admin() {
			count++
		}
	}
	return count, nil
}

func isMember(userID string, members []*store.Member) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
