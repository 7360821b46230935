// ABOUTME: Conformance test suite shared by SQLiteStore and MemoryStore
// ABOUTME: Both backends must satisfy the same Store invariants

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupSQLiteStore creates a temporary SQLite store for testing.
func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// forEachStore runs the test against both backends. The conformance suite is
// what lets calling code stay backend-agnostic.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("sqlite", func(t *testing.T) {
		fn(t, setupSQLiteStore(t))
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
}

func listingRef(id string) *string {
	return &id
}

func testConversation(id string, listingID *string) *Conversation {
	now := time.Now().UTC().Truncate(time.Second)
	scope := ScopeSupport
	if listingID != nil {
		scope = ScopeListing
	}
	return &Conversation{
		ID:        id,
		Subject:   "Property Inquiry",
		ListingID: listingID,
		Scope:     scope,
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testMembers(conversationID string, userIDs ...string) []*Member {
	now := time.Now().UTC().Truncate(time.Second)
	members := make([]*Member, len(userIDs))
	for i, id := range userIDs {
		role := MemberParticipant
		if i == 0 {
			role = MemberOwner
		}
		members[i] = &Member{
			ConversationID: conversationID,
			UserID:         id,
			Role:           role,
			CreatedAt:      now,
		}
	}
	return members
}

func TestStore_CreateConversation(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		conv := testConversation("conv-1", listingRef("listing-1"))
		err := s.CreateConversation(ctx, conv, testMembers("conv-1", "u1", "u2"))
		require.NoError(t, err)

		retrieved, err := s.GetConversation(ctx, "conv-1")
		require.NoError(t, err)
		assert.Equal(t, "conv-1", retrieved.ID)
		assert.Equal(t, ScopeListing, retrieved.Scope)
		require.NotNil(t, retrieved.ListingID)
		assert.Equal(t, "listing-1", *retrieved.ListingID)
		assert.Equal(t, StatusOpen, retrieved.Status)

		members, err := s.ListMembers(ctx, "conv-1")
		require.NoError(t, err)
		require.Len(t, members, 2)
		assert.Equal(t, MemberOwner, members[0].Role)
		assert.Equal(t, MemberParticipant, members[1].Role)
	})
}

func TestStore_CreateConversation_Duplicate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		conv := testConversation("conv-1", nil)
		require.NoError(t, s.CreateConversation(ctx, conv, testMembers("conv-1", "u1", "u2")))

		err := s.CreateConversation(ctx, conv, testMembers("conv-1", "u1", "u2"))
		assert.ErrorIs(t, err, ErrDuplicateConversation)
	})
}

func TestStore_GetConversation_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.GetConversation(context.Background(), "nonexistent")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_FindConversationsForPair(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		require.NoError(t, s.CreateConversation(ctx, testConversation("conv-1", listingRef("L1")), testMembers("conv-1", "u1", "u2")))
		require.NoError(t, s.CreateConversation(ctx, testConversation("conv-2", listingRef("L2")), testMembers("conv-2", "u1", "u3")))

		convs, err := s.FindConversationsForPair(ctx, "u1", "u2")
		require.NoError(t, err)
		require.Len(t, convs, 1)
		assert.Equal(t, "conv-1", convs[0].ID)

		// Order of the pair must not matter
		convs, err = s.FindConversationsForPair(ctx, "u2", "u1")
		require.NoError(t, err)
		require.Len(t, convs, 1)

		convs, err = s.FindConversationsForPair(ctx, "u2", "u3")
		require.NoError(t, err)
		assert.Empty(t, convs)
	})
}

func TestStore_AddMember_Idempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		require.NoError(t, s.CreateConversation(ctx, testConversation("conv-1", nil), testMembers("conv-1", "u1", "u2")))

		member := &Member{
			ConversationID: "conv-1",
			UserID:         "u1",
			Role:           MemberSupport,
			CreatedAt:      time.Now().UTC().Truncate(time.Second),
		}
		require.NoError(t, s.AddMember(ctx, member))
		require.NoError(t, s.AddMember(ctx, member))

		members, err := s.ListMembers(ctx, "conv-1")
		require.NoError(t, err)
		assert.Len(t, members, 2, "re-adding an existing member must not duplicate the row")

		// The original role survives: adding an existing member is a no-op.
		for _, m := range members {
			if m.UserID == "u1" {
				assert.Equal(t, MemberOwner, m.Role)
			}
		}
	})
}

func TestStore_Messages_Order(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		require.NoError(t, s.CreateConversation(ctx, testConversation("conv-1", nil), testMembers("conv-1", "u1", "u2")))

		// Same created_at for all three: ties must be broken by insertion order.
		at := time.Now().UTC().Truncate(time.Second)
		sender := "u1"
		for i, content := range []string{"first", "second", "third"} {
			msg := &Message{
				ID:             fmt.Sprintf("msg-%d", i),
				ConversationID: "conv-1",
				SenderID:       &sender,
				Type:           MessageTypeText,
				Content:        content,
				CreatedAt:      at,
			}
			require.NoError(t, s.SaveMessage(ctx, msg))
		}

		messages, err := s.ListMessages(ctx, "conv-1")
		require.NoError(t, err)
		require.Len(t, messages, 3)
		assert.Equal(t, "first", messages[0].Content)
		assert.Equal(t, "second", messages[1].Content)
		assert.Equal(t, "third", messages[2].Content)

		latest, err := s.LatestMessage(ctx, "conv-1")
		require.NoError(t, err)
		assert.Equal(t, "third", latest.Content)

		count, err := s.CountMessages(ctx, "conv-1")
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}

func TestStore_SaveMessages_Batch(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		require.NoError(t, s.CreateConversation(ctx, testConversation("conv-1", nil), testMembers("conv-1", "u1", "u2")))

		at := time.Now().UTC().Truncate(time.Second)
		sender := "u2"
		msgs := []*Message{
			{ID: "seed-1", ConversationID: "conv-1", Type: MessageTypeSystem, Content: "safety notice", CreatedAt: at},
			{ID: "seed-2", ConversationID: "conv-1", SenderID: &sender, Type: MessageTypeText, Content: "hello", CreatedAt: at},
		}
		require.NoError(t, s.SaveMessages(ctx, msgs))

		messages, err := s.ListMessages(ctx, "conv-1")
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.True(t, messages[0].System())
		assert.False(t, messages[1].System())
	})
}

func TestStore_Message_MetadataRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		require.NoError(t, s.CreateConversation(ctx, testConversation("conv-1", nil), testMembers("conv-1", "u1", "u2")))

		sender := "u1"
		msg := &Message{
			ID:             "msg-1",
			ConversationID: "conv-1",
			SenderID:       &sender,
			Type:           MessageTypeIssueCard,
			Content:        "Issue update",
			Meta: &MessageMeta{
				IssueCard: &IssueCard{
					Title:      "Misleading photos",
					Message:    "Listing photos do not match the unit",
					ProblemTag: "misrepresentation",
					Status:     "open",
					ListingID:  "L1",
				},
				Attachments: []Attachment{
					{
						BucketID:      "chat-uploads",
						StoragePath:   "conv-1/photo.jpg",
						FileName:      "photo.jpg",
						MimeType:      "image/jpeg",
						FileSizeBytes: 2048,
						PreviewURL:    "https://example.invalid/never-persisted",
					},
				},
			},
			CreatedAt: time.Now().UTC().Truncate(time.Second),
		}
		require.NoError(t, s.SaveMessage(ctx, msg))

		messages, err := s.ListMessages(ctx, "conv-1")
		require.NoError(t, err)
		require.Len(t, messages, 1)
		require.NotNil(t, messages[0].Meta)
		require.NotNil(t, messages[0].Meta.IssueCard)
		assert.Equal(t, "Misleading photos", messages[0].Meta.IssueCard.Title)
		assert.Equal(t, "misrepresentation", messages[0].Meta.IssueCard.ProblemTag)
		require.Len(t, messages[0].Meta.Attachments, 1)
		assert.Equal(t, "photo.jpg", messages[0].Meta.Attachments[0].FileName)
	})
}

func TestStore_PreviewURLNeverPersisted(t *testing.T) {
	// The SQLite backend serializes metadata to JSON; PreviewURL must not
	// survive the round trip.
	s := setupSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateConversation(ctx, testConversation("conv-1", nil), testMembers("conv-1", "u1", "u2")))

	sender := "u1"
	msg := &Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       &sender,
		Type:           MessageTypeText,
		Content:        "Shared attachment: deed.pdf",
		Meta: &MessageMeta{
			Attachments: []Attachment{{
				BucketID:    "chat-uploads",
				StoragePath: "conv-1/deed.pdf",
				FileName:    "deed.pdf",
				MimeType:    "application/pdf",
				PreviewURL:  "https://signed.example/deed.pdf?sig=abc",
			}},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SaveMessage(ctx, msg))

	messages, err := s.ListMessages(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Len(t, messages[0].Meta.Attachments, 1)
	assert.Empty(t, messages[0].Meta.Attachments[0].PreviewURL)
}

func TestStore_CloseConversation_Idempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		require.NoError(t, s.CreateConversation(ctx, testConversation("conv-1", listingRef("L1")), testMembers("conv-1", "u1", "u2")))

		at := time.Now().UTC().Truncate(time.Second)
		closed, err := s.CloseConversation(ctx, "conv-1", "sold", at)
		require.NoError(t, err)
		assert.True(t, closed)

		closed, err = s.CloseConversation(ctx, "conv-1", "sold", at)
		require.NoError(t, err)
		assert.False(t, closed, "second close must report no transition")

		conv, err := s.GetConversation(ctx, "conv-1")
		require.NoError(t, err)
		assert.Equal(t, StatusClosed, conv.Status)
		assert.Equal(t, "sold", conv.ClosedReason)
		require.NotNil(t, conv.ClosedAt)
	})
}

func TestStore_ListConversationsByListing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		require.NoError(t, s.CreateConversation(ctx, testConversation("conv-1", listingRef("L1")), testMembers("conv-1", "u1", "u2")))
		require.NoError(t, s.CreateConversation(ctx, testConversation("conv-2", listingRef("L1")), testMembers("conv-2", "u3", "u2")))
		require.NoError(t, s.CreateConversation(ctx, testConversation("conv-3", listingRef("L2")), testMembers("conv-3", "u1", "u4")))

		convs, err := s.ListConversationsByListing(ctx, "L1")
		require.NoError(t, err)
		assert.Len(t, convs, 2)
	})
}

func TestStore_ListConversationsForUser_RecentFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		base := time.Now().UTC().Truncate(time.Second)
		for i, id := range []string{"conv-old", "conv-mid", "conv-new"} {
			conv := testConversation(id, nil)
			conv.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			conv.UpdatedAt = conv.CreatedAt
			require.NoError(t, s.CreateConversation(ctx, conv, testMembers(id, "u1", fmt.Sprintf("peer-%d", i))))
		}

		convs, err := s.ListConversationsForUser(ctx, "u1", 0)
		require.NoError(t, err)
		require.Len(t, convs, 3)
		assert.Equal(t, "conv-new", convs[0].ID)
		assert.Equal(t, "conv-old", convs[2].ID)

		// Touching the oldest moves it to the front
		require.NoError(t, s.TouchConversation(ctx, "conv-old", base.Add(time.Hour)))
		convs, err = s.ListConversationsForUser(ctx, "u1", 0)
		require.NoError(t, err)
		assert.Equal(t, "conv-old", convs[0].ID)
	})
}

func TestStore_EnsureUser(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Second)

		require.NoError(t, s.EnsureUser(ctx, &User{ID: "u1", DisplayName: "Ada", Role: "buyer", CreatedAt: now}))

		// A second ensure with a different name must not overwrite
		require.NoError(t, s.EnsureUser(ctx, &User{ID: "u1", DisplayName: "Impostor", Role: "admin", CreatedAt: now}))

		u, err := s.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Ada", u.DisplayName)
		assert.Equal(t, "buyer", u.Role)
	})
}

func TestStore_EnsureUser_BackfillsDisplayName(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Second)

		require.NoError(t, s.EnsureUser(ctx, &User{ID: "u1", Role: "buyer", CreatedAt: now}))
		require.NoError(t, s.EnsureUser(ctx, &User{ID: "u1", DisplayName: "Ada", Role: "buyer", CreatedAt: now}))

		u, err := s.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Ada", u.DisplayName)
	})
}

func TestStore_GetUser_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.GetUser(context.Background(), "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in   string
		want Scope
	}{
		{"listing", ScopeListing},
		{"renting", ScopeRenting},
		{"service", ScopeService},
		{"support", ScopeSupport},
		{"", ScopeSupport},
		{"garbage", ScopeSupport},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseScope(tt.in), "ParseScope(%q)", tt.in)
	}
}
