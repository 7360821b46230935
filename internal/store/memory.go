// ABOUTME: In-memory Store implementation used as the process-lifetime fallback
// ABOUTME: Engaged when the durable schema is unavailable; also backs unit tests

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-memory Store implementation. State lives
// for the process lifetime only. It is constructed once and passed by
// reference; tests construct a fresh store per case.
//
// MemoryStore deliberately does not implement ServiceStore semantics: service
// bookkeeping has no soft fallback, so those methods return ErrSchemaMissing.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation // keyed by conversation ID
	members       map[string][]*Member     // keyed by conversation ID, insertion order
	messages      map[string][]*Message    // keyed by conversation ID, append order
	users         map[string]*User         // keyed by user ID
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
		members:       make(map[string][]*Member),
		messages:      make(map[string][]*Message),
		users:         make(map[string]*User),
	}
}

// CreateConversation stores a conversation and its membership rows.
func (m *MemoryStore) CreateConversation(ctx context.Context, conv *Conversation, members []*Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[conv.ID]; exists {
		return ErrDuplicateConversation
	}

	// Copy to avoid external modification
	c := *conv
	m.conversations[c.ID] = &c

	for _, member := range members {
		m.addMemberLocked(member)
	}

	return nil
}

// addMemberLocked appends a membership row if the (conversation, user) pair
// is not already present. Caller holds the write lock.
func (m *MemoryStore) addMemberLocked(member *Member) {
	for _, existing := range m.members[member.ConversationID] {
		if existing.UserID == member.UserID {
			return
		}
	}
	mc := *member
	m.members[member.ConversationID] = append(m.members[member.ConversationID], &mc)
}

// GetConversation retrieves a conversation by ID.
func (m *MemoryStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}

	result := *c
	return &result, nil
}

// FindConversationsForPair returns conversations both users belong to,
// most recently updated first.
func (m *MemoryStore) FindConversationsForPair(ctx context.Context, userA, userB string) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Conversation
	for id, c := range m.conversations {
		if m.hasMemberLocked(id, userA) && m.hasMemberLocked(id, userB) {
			conv := *c
			result = append(result, &conv)
		}
	}

	sortConversationsByUpdated(result)
	return result, nil
}

func (m *MemoryStore) hasMemberLocked(conversationID, userID string) bool {
	for _, member := range m.members[conversationID] {
		if member.UserID == userID {
			return true
		}
	}
	return false
}

func sortConversationsByUpdated(convs []*Conversation) {
	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].UpdatedAt.Equal(convs[j].UpdatedAt) {
			return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
		}
		return convs[i].ID < convs[j].ID
	})
}

// ListConversationsForUser retrieves conversations the user is a member of,
// ordered by most recent activity.
func (m *MemoryStore) ListConversationsForUser(ctx context.Context, userID string, limit int) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = normalizeLimit(limit)

	var result []*Conversation
	for id, c := range m.conversations {
		if m.hasMemberLocked(id, userID) {
			conv := *c
			result = append(result, &conv)
		}
	}

	sortConversationsByUpdated(result)
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListConversations retrieves the most recently updated conversations.
func (m *MemoryStore) ListConversations(ctx context.Context, limit int) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = normalizeLimit(limit)

	result := make([]*Conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		conv := *c
		result = append(result, &conv)
	}

	sortConversationsByUpdated(result)
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListConversationsByListing retrieves all conversations referencing a listing.
func (m *MemoryStore) ListConversationsByListing(ctx context.Context, listingID string) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Conversation
	for _, c := range m.conversations {
		if c.ListingID != nil && *c.ListingID == listingID {
			conv := *c
			result = append(result, &conv)
		}
	}

	sortConversationsByUpdated(result)
	return result, nil
}

// TouchConversation stamps updated_at.
func (m *MemoryStore) TouchConversation(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.UpdatedAt = at
	return nil
}

// CloseConversation transitions an open conversation to closed. Returns
// false without error if it was already closed.
func (m *MemoryStore) CloseConversation(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return false, nil
	}
	if c.Status == StatusClosed {
		return false, nil
	}

	closedAt := at
	c.Status = StatusClosed
	c.ClosedAt = &closedAt
	c.ClosedReason = reason
	c.UpdatedAt = at
	return true, nil
}

// AddMember adds a membership row. Idempotent.
func (m *MemoryStore) AddMember(ctx context.Context, member *Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addMemberLocked(member)
	return nil
}

// ListMembers returns the membership rows for a conversation in the order
// they were added.
func (m *MemoryStore) ListMembers(ctx context.Context, conversationID string) ([]*Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := m.members[conversationID]
	result := make([]*Member, len(members))
	for i, member := range members {
		mc := *member
		result[i] = &mc
	}
	return result, nil
}

// SaveMessage appends a message to the conversation's log.
func (m *MemoryStore) SaveMessage(ctx context.Context, msg *Message) error {
	return m.SaveMessages(ctx, []*Message{msg})
}

// SaveMessages appends a batch of messages. All become visible together.
func (m *MemoryStore) SaveMessages(ctx context.Context, msgs []*Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range msgs {
		mc := copyMessage(msg)
		m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], mc)
	}
	return nil
}

func copyMessage(msg *Message) *Message {
	mc := *msg
	if msg.SenderID != nil {
		sender := *msg.SenderID
		mc.SenderID = &sender
	}
	if msg.Meta != nil {
		meta := MessageMeta{}
		if msg.Meta.Attachments != nil {
			meta.Attachments = make([]Attachment, len(msg.Meta.Attachments))
			copy(meta.Attachments, msg.Meta.Attachments)
		}
		if msg.Meta.IssueCard != nil {
			card := *msg.Meta.IssueCard
			meta.IssueCard = &card
		}
		mc.Meta = &meta
	}
	return &mc
}

// ListMessages returns the full message history in append order. Append
// order matches created_at order for single-writer conversations, which is
// the ordering guarantee the durable store provides via its rowid tiebreak.
func (m *MemoryStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[conversationID]
	result := make([]*Message, len(msgs))
	for i, msg := range msgs {
		result[i] = copyMessage(msg)
	}
	return result, nil
}

// CountMessages returns the number of messages in a conversation.
func (m *MemoryStore) CountMessages(ctx context.Context, conversationID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.messages[conversationID]), nil
}

// LatestMessage returns the most recently appended message.
func (m *MemoryStore) LatestMessage(ctx context.Context, conversationID string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[conversationID]
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	return copyMessage(msgs[len(msgs)-1]), nil
}

// GetUser retrieves a user directory entry.
func (m *MemoryStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	result := *u
	return &result, nil
}

// EnsureUser lazily provisions a directory entry, backfilling an empty
// display name but never overwriting an existing identity.
func (m *MemoryStore) EnsureUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.users[user.ID]
	if !ok {
		u := *user
		m.users[user.ID] = &u
		return nil
	}

	if existing.DisplayName == "" && user.DisplayName != "" {
		existing.DisplayName = user.DisplayName
	}
	return nil
}

// UpsertCatalogEntry reports the missing durable schema. Service bookkeeping
// must not silently degrade to process-lifetime state.
func (m *MemoryStore) UpsertCatalogEntry(ctx context.Context, entry *CatalogEntry) error {
	return ErrSchemaMissing
}

// UpsertServiceRequest reports the missing durable schema.
func (m *MemoryStore) UpsertServiceRequest(ctx context.Context, req *ServiceRequest) error {
	return ErrSchemaMissing
}

// UpsertTranscript reports the missing durable schema.
func (m *MemoryStore) UpsertTranscript(ctx context.Context, rec *TranscriptRecord) error {
	return ErrSchemaMissing
}

// GetServiceRequest reports the missing durable schema.
func (m *MemoryStore) GetServiceRequest(ctx context.Context, conversationID string) (*ServiceRequest, error) {
	return nil, ErrSchemaMissing
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}

// Verify MemoryStore implements the store interfaces at compile time.
var _ Store = (*MemoryStore)(nil)
var _ ServiceStore = (*MemoryStore)(nil)
