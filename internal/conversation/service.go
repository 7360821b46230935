// ABOUTME: Conversation service - the central layer every messaging operation flows through
// ABOUTME: Wires the store, access guard, identity registry, previewer, and service-scope synchronizer

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/propstead/messaging/internal/access"
	"github.com/propstead/messaging/internal/attachment"
	"github.com/propstead/messaging/internal/identity"
	"github.com/propstead/messaging/internal/servicescope"
	"github.com/propstead/messaging/internal/store"
)

// safetyNotice is the system message seeded into every new conversation.
const safetyNotice = "Safety notice: keep all payments and communication on the platform. " +
	"Never share bank details or send money outside of it."

// Service is the conversation layer. All reads and writes pass through the
// access guard; callers never touch the store directly.
type Service struct {
	store    store.Store
	guard    *access.Guard
	roles    *identity.Registry
	previews *attachment.Previewer
	services *servicescope.Synchronizer
	logger   *slog.Logger
}

// New creates a conversation service. The previewer may be nil when no
// object store is configured; previews are then simply absent.
func New(s store.Store, guard *access.Guard, roles *identity.Registry, previews *attachment.Previewer, services *servicescope.Synchronizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    s,
		guard:    guard,
		roles:    roles,
		previews: previews,
		services: services,
		logger:   logger.With("component", "conversation"),
	}
}

// Party identifies one side of a conversation after id canonicalization.
type Party struct {
	ID          string
	DisplayName string
}

// MessageView is a message rendered for one viewer. Sender is "me", "them",
// or "system" relative to the viewer; attachments carry resolved previews.
type MessageView struct {
	ID          string
	Sender      string
	SenderID    string
	Type        string
	Content     string
	IssueCard   *store.IssueCard
	Attachments []store.Attachment
	CreatedAt   time.Time
}

// ConversationView is a conversation annotated for listing: member
// identities plus the most recent message.
type ConversationView struct {
	ID            string
	Subject       string
	ListingID     string
	Scope         store.Scope
	Status        store.ConversationStatus
	Members       []Party
	LastMessage   string
	LastMessageAt *time.Time
	UpdatedAt     time.Time
}

// messageView renders a stored message relative to one viewer.
func (s *Service) messageView(ctx context.Context, msg *store.Message, viewerID string) *MessageView {
	view := &MessageView{
		ID:        msg.ID,
		Type:      msg.Type,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}

	switch {
	case msg.System():
		view.Sender = "system"
	case *msg.SenderID == viewerID:
		view.Sender = "me"
		view.SenderID = *msg.SenderID
	default:
		view.Sender = "them"
		view.SenderID = *msg.SenderID
	}

	if msg.Meta != nil {
		view.IssueCard = msg.Meta.IssueCard
		view.Attachments = s.previews.Resolve(ctx, msg.Meta.Attachments)
	}

	return view
}

// conversationView annotates a conversation with members and its latest message.
func (s *Service) conversationView(ctx context.Context, conv *store.Conversation) (*ConversationView, error) {
	members, err := s.store.ListMembers(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("listing members for %s: %w", conv.ID, err)
	}

	view := &ConversationView{
		ID:        conv.ID,
		Subject:   conv.Subject,
		Scope:     conv.Scope,
		Status:    conv.Status,
		UpdatedAt: conv.UpdatedAt,
	}
	if conv.ListingID != nil {
		view.ListingID = *conv.ListingID
	}

	for _, m := range members {
		view.Members = append(view.Members, Party{
			ID:          m.UserID,
			DisplayName: s.roles.DisplayNameOf(ctx, m.UserID),
		})
	}

	latest, err := s.store.LatestMessage(ctx, conv.ID)
	if err == nil {
		at := latest.CreatedAt
		view.LastMessage = latest.Content
		view.LastMessageAt = &at
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("latest message for %s: %w", conv.ID, err)
	}

	return view, nil
}

// ListForViewer returns conversations visible to the viewer, most recently
// updated first. includeAll is honored only for admins and returns the most
// recently updated conversations globally, capped at adminPageSize.
func (s *Service) ListForViewer(ctx context.Context, viewerID string, includeAll bool) ([]*ConversationView, error) {
	viewerID = identity.NormalizeUserID(viewerID, "")

	var (
		convs []*store.Conversation
		err   error
	)
	if includeAll {
		admin, adminErr := s.guard.IsAdmin(ctx, viewerID)
		if adminErr != nil {
			return nil, adminErr
		}
		includeAll = admin
	}
	if includeAll {
		convs, err = s.store.ListConversations(ctx, adminPageSize)
	} else {
		convs, err = s.store.ListConversationsForUser(ctx, viewerID, adminPageSize)
	}
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	views := make([]*ConversationView, 0, len(convs))
	for _, conv := range convs {
		view, err := s.conversationView(ctx, conv)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// adminPageSize bounds conversation listings.
const adminPageSize = 100
