// ABOUTME: Tests for the access guard
// ABOUTME: Covers membership checks, admin bypass, and the non-admin 1:1 cap

package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propstead/messaging/internal/identity"
	"github.com/propstead/messaging/internal/store"
)

func setupGuard(t *testing.T) (*Guard, *identity.Registry) {
	t.Helper()
	reg := identity.NewRegistry(store.NewMemoryStore(), nil)
	return NewGuard(reg, nil), reg
}

func members(userIDs ...string) []*store.Member {
	result := make([]*store.Member, len(userIDs))
	for i, id := range userIDs {
		result[i] = &store.Member{ConversationID: "conv-1", UserID: id, Role: store.MemberParticipant}
	}
	return result
}

func TestGuard_MemberAllowed(t *testing.T) {
	guard, _ := setupGuard(t)
	err := guard.CanAccess(context.Background(), "u1", members("u1", "u2"))
	assert.NoError(t, err)
}

func TestGuard_NonMemberForbidden(t *testing.T) {
	guard, _ := setupGuard(t)
	err := guard.CanAccess(context.Background(), "u3", members("u1", "u2"))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGuard_AdminAlwaysAllowed(t *testing.T) {
	guard, reg := setupGuard(t)
	ctx := context.Background()
	require.NoError(t, reg.EnsureUser(ctx, "uA", "Moderator", identity.RoleAdmin))

	// Admin is not a member, access still granted
	assert.NoError(t, guard.CanAccess(ctx, "uA", members("u1", "u2")))

	// Admin access to a thread they joined as a third member
	assert.NoError(t, guard.CanAccess(ctx, "uA", members("u1", "u2", "uA")))
}

func TestGuard_AdminThirdPartyDoesNotBreakParticipants(t *testing.T) {
	guard, reg := setupGuard(t)
	ctx := context.Background()
	require.NoError(t, reg.EnsureUser(ctx, "uA", "Moderator", identity.RoleAdmin))

	// After an admin joins, the original two users still have access: the cap
	// counts only non-admin members.
	assert.NoError(t, guard.CanAccess(ctx, "u1", members("u1", "u2", "uA")))
	assert.NoError(t, guard.CanAccess(ctx, "u2", members("u1", "u2", "uA")))
}

func TestGuard_ThirdNonAdminMemberForbidden(t *testing.T) {
	guard, _ := setupGuard(t)

	// A conversation that somehow grew three non-admin members is refused
	// for non-admin actors, even recorded ones.
	err := guard.CanAccess(context.Background(), "u1", members("u1", "u2", "u3"))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGuard_CheckNewPair_SelfRejected(t *testing.T) {
	guard, _ := setupGuard(t)
	err := guard.CheckNewPair(context.Background(), "u1", "u1")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGuard_CheckNewPair_AdminSelfAllowed(t *testing.T) {
	guard, reg := setupGuard(t)
	ctx := context.Background()
	require.NoError(t, reg.EnsureUser(ctx, "uA", "Moderator", identity.RoleAdmin))
	assert.NoError(t, guard.CheckNewPair(ctx, "uA", "uA"))
}

func TestGuard_CheckNewPair_DistinctUsersAllowed(t *testing.T) {
	guard, _ := setupGuard(t)
	assert.NoError(t, guard.CheckNewPair(context.Background(), "u1", "u2"))
}

func TestGuard_ForbiddenDistinctFromNotFound(t *testing.T) {
	guard, _ := setupGuard(t)
	err := guard.CanAccess(context.Background(), "u3", members("u1", "u2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotErrorIs(t, err, store.ErrNotFound)
}
