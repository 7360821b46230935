// ABOUTME: Store interfaces and data types for conversation persistence
// ABOUTME: Defines Conversation, Member, Message, User structs and the Store/ServiceStore interfaces

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when a conversation insert hits a uniqueness constraint
var ErrDuplicateConversation = errors.New("conversation already exists")

// ErrConversationClosed is returned when appending to a closed conversation
var ErrConversationClosed = errors.New("conversation is closed")

// ErrSchemaMissing is returned when the backing schema for an operation is absent.
// The conversation/message path falls back to the in-memory store on this error;
// the service bookkeeping path surfaces it as a configuration error.
var ErrSchemaMissing = errors.New("backing schema missing")

// Scope classifies the purpose of a conversation
type Scope string

const (
	ScopeListing Scope = "listing"
	ScopeRenting Scope = "renting"
	ScopeService Scope = "service"
	ScopeSupport Scope = "support"
)

// ParseScope maps free-form input to a Scope, defaulting to support.
func ParseScope(s string) Scope {
	switch Scope(s) {
	case ScopeListing, ScopeRenting, ScopeService, ScopeSupport:
		return Scope(s)
	default:
		return ScopeSupport
	}
}

// ConversationStatus is the lifecycle state of a conversation
type ConversationStatus string

const (
	StatusOpen   ConversationStatus = "open"
	StatusClosed ConversationStatus = "closed"
)

// MemberRole is a user's role within one conversation
type MemberRole string

const (
	MemberOwner       MemberRole = "owner"
	MemberParticipant MemberRole = "participant"
	MemberSupport     MemberRole = "support"
)

// MessageType constants for message types
const (
	MessageTypeText      = "text"
	MessageTypeSystem    = "system"
	MessageTypeIssueCard = "issue_card"
)

// User is a directory entry referenced by conversations. The messaging core
// creates entries lazily and never overwrites an existing identity.
type User struct {
	ID          string
	DisplayName string
	Role        string
	CreatedAt   time.Time
}

// Conversation links two users (plus any observing admins) around a subject,
// listing, service engagement, or support request.
type Conversation struct {
	ID           string
	Subject      string
	ListingID    *string
	Scope        Scope
	ServiceCode  string
	Status       ConversationStatus
	ClosedAt     *time.Time
	ClosedReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Member is a (conversation, user) membership row. At most one per pair.
type Member struct {
	ConversationID string
	UserID         string
	Role           MemberRole
	CreatedAt      time.Time
}

// Attachment is file metadata embedded in message metadata. PreviewURL is
// derived at read time and never persisted.
type Attachment struct {
	BucketID      string `json:"bucket_id"`
	StoragePath   string `json:"storage_path"`
	FileName      string `json:"file_name"`
	MimeType      string `json:"mime_type"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	PreviewURL    string `json:"-"`
}

// IssueCard is the structured payload moderation delivers into a chat thread
type IssueCard struct {
	Title        string `json:"title"`
	Message      string `json:"message"`
	ProblemTag   string `json:"problem_tag"`
	Status       string `json:"status"`
	ListingID    string `json:"listing_id,omitempty"`
	ListingTitle string `json:"listing_title,omitempty"`
}

// MessageMeta is the structured metadata bag on a message. Attachment lists
// and issue-card fields are typed here rather than duck-typed at render time.
type MessageMeta struct {
	Attachments []Attachment `json:"attachments,omitempty"`
	IssueCard   *IssueCard   `json:"issue_card,omitempty"`
}

// Message is one append-only entry in a conversation's log.
// A nil SenderID marks a system-authored message.
type Message struct {
	ID             string
	ConversationID string
	SenderID       *string
	Type           string // "text", "system", "issue_card"
	Content        string
	Meta           *MessageMeta
	CreatedAt      time.Time
}

// System reports whether the message is system-authored.
func (m *Message) System() bool {
	return m.SenderID == nil
}

// CatalogEntry is a service-catalog row, created once per service code.
type CatalogEntry struct {
	Code      string
	Name      string
	CreatedAt time.Time
}

// ServiceRequest mirrors a service-scoped conversation into request-record
// bookkeeping. Keyed by conversation id; only Status/UpdatedAt change after creation.
type ServiceRequest struct {
	ConversationID string
	ServiceCode    string
	RequesterID    string
	ProviderID     string
	FolderRoot     string
	Status         string
	UpdatedAt      time.Time
}

// TranscriptRecord is the placeholder pointing a service engagement at its
// deterministic storage folder.
type TranscriptRecord struct {
	ConversationID string
	FolderRoot     string
	UpdatedAt      time.Time
}

// Store defines the interface for conversation, member, message, and user
// persistence. SQLiteStore and MemoryStore both implement it and share one
// conformance test suite.
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation, members []*Member) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	FindConversationsForPair(ctx context.Context, userA, userB string) ([]*Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string, limit int) ([]*Conversation, error)
	ListConversations(ctx context.Context, limit int) ([]*Conversation, error)
	ListConversationsByListing(ctx context.Context, listingID string) ([]*Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error
	CloseConversation(ctx context.Context, id, reason string, at time.Time) (bool, error)

	// Members
	AddMember(ctx context.Context, member *Member) error
	ListMembers(ctx context.Context, conversationID string) ([]*Member, error)

	// Messages (append-only)
	SaveMessage(ctx context.Context, msg *Message) error
	SaveMessages(ctx context.Context, msgs []*Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)
	CountMessages(ctx context.Context, conversationID string) (int, error)
	LatestMessage(ctx context.Context, conversationID string) (*Message, error)

	// User directory
	GetUser(ctx context.Context, id string) (*User, error)
	EnsureUser(ctx context.Context, user *User) error

	// Close releases any resources held by the store
	Close() error
}

// ServiceStore defines service-scope bookkeeping. All upserts are idempotent.
// There is no in-memory fallback for these: MemoryStore returns ErrSchemaMissing.
type ServiceStore interface {
	UpsertCatalogEntry(ctx context.Context, entry *CatalogEntry) error
	UpsertServiceRequest(ctx context.Context, req *ServiceRequest) error
	UpsertTranscript(ctx context.Context, rec *TranscriptRecord) error
	GetServiceRequest(ctx context.Context, conversationID string) (*ServiceRequest, error)
}
