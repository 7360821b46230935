// ABOUTME: Idempotent conversation upsert - find-or-create keyed on the participant pair
// ABOUTME: Seeds new conversations with a safety notice and an intro message

package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/propstead/messaging/internal/identity"
	"github.com/propstead/messaging/internal/servicescope"
	"github.com/propstead/messaging/internal/store"
)

// UpsertRequest opens or resumes a conversation between two participants.
// IDs may be raw external identifiers; they are canonicalized before use,
// with the display name as a derivation seed for callers that only know
// the counterparty by name.
type UpsertRequest struct {
	RequesterID   string
	RequesterName string
	RequesterRole string

	RecipientID   string
	RecipientName string
	RecipientRole string

	Subject        string
	ListingID      string
	InitialMessage string

	// Scope overrides derivation when set. ServiceHint names the
	// requested service in free text for service-scoped conversations.
	Scope       string
	ServiceHint string
}

// UpsertResult reports the conversation the caller should use, with
// Created indicating whether this call made it.
type UpsertResult struct {
	Conversation *store.Conversation
	Requester    Party
	Recipient    Party
	Created      bool
}

// Upsert finds or creates the conversation for the request's participant
// pair. Repeated calls with the same pair and subject resolve to the same
// conversation. New conversations are seeded with a system safety notice
// and an intro message attributed to the recipient.
func (s *Service) Upsert(ctx context.Context, req UpsertRequest) (*UpsertResult, error) {
	requesterID := identity.NormalizeUserID(req.RequesterID, req.RequesterName)
	recipientID := identity.NormalizeUserID(req.RecipientID, req.RecipientName)
	if requesterID == "" {
		return nil, invalid("requester", "participant is required")
	}
	if recipientID == "" {
		return nil, invalid("recipient", "participant is required")
	}

	requesterRole := identity.ParseRole(req.RequesterRole)
	recipientRole := identity.ParseRole(req.RecipientRole)

	if err := s.roles.EnsureUser(ctx, requesterID, req.RequesterName, requesterRole); err != nil {
		return nil, fmt.Errorf("ensuring requester: %w", err)
	}
	if err := s.roles.EnsureUser(ctx, recipientID, req.RecipientName, recipientRole); err != nil {
		return nil, fmt.Errorf("ensuring recipient: %w", err)
	}

	if err := s.guard.CheckNewPair(ctx, requesterID, recipientID); err != nil {
		return nil, err
	}

	scope := s.deriveScope(req)

	serviceCode := ""
	if scope == store.ScopeService {
		code, err := servicescope.NormalizeServiceCode(firstNonEmpty(req.ServiceHint, req.Subject))
		if err != nil {
			return nil, invalid("service", err.Error())
		}
		serviceCode = code
	}

	subject := s.deriveSubject(req, scope, serviceCode)

	result := &UpsertResult{
		Requester: Party{ID: requesterID, DisplayName: req.RequesterName},
		Recipient: Party{ID: recipientID, DisplayName: req.RecipientName},
	}

	existing, err := s.findExisting(ctx, requesterID, recipientID, req, scope)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		result.Conversation = existing
	} else {
		conv, err := s.create(ctx, requesterID, recipientID, scope, subject, serviceCode, req.ListingID)
		if err != nil {
			return nil, err
		}
		result.Conversation = conv
		result.Created = true
	}

	if err := s.seedIfEmpty(ctx, result.Conversation, recipientID, subject, req.InitialMessage); err != nil {
		return nil, err
	}

	if scope == store.ScopeService {
		folder, err := s.services.Sync(ctx, result.Conversation, requesterID, recipientID)
		if err != nil {
			return nil, err
		}
		s.logger.Info("service conversation synced",
			"conversation_id", result.Conversation.ID,
			"service_code", serviceCode,
			"folder", folder)
	}

	if err := s.store.TouchConversation(ctx, result.Conversation.ID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("touching conversation: %w", err)
	}

	return result, nil
}

// deriveScope resolves the conversation scope: explicit scope wins, then a
// service hint implies a service engagement, then a listing id implies a
// listing conversation, otherwise support.
func (s *Service) deriveScope(req UpsertRequest) store.Scope {
	if req.Scope != "" {
		return store.ParseScope(req.Scope)
	}
	if req.ServiceHint != "" {
		return store.ScopeService
	}
	if req.ListingID != "" {
		return store.ScopeListing
	}
	return store.ScopeSupport
}

// deriveSubject picks the display subject. An explicit subject always wins;
// listing conversations default to "Property Inquiry"; service conversations
// default to the service display name.
func (s *Service) deriveSubject(req UpsertRequest, scope store.Scope, serviceCode string) string {
	if strings.TrimSpace(req.Subject) != "" {
		return strings.TrimSpace(req.Subject)
	}
	switch scope {
	case store.ScopeListing, store.ScopeRenting:
		return "Property Inquiry"
	case store.ScopeService:
		return servicescope.DisplayName(serviceCode)
	default:
		return ""
	}
}

// findExisting applies the dedup rule over the pair's conversations. An
// explicit caller subject matches on subject alone; otherwise conversations
// match when their listing ids are equal (both absent counts as equal).
// Service upserts only ever resume service conversations, so a support
// thread between the same pair never captures a service engagement.
func (s *Service) findExisting(ctx context.Context, requesterID, recipientID string, req UpsertRequest, scope store.Scope) (*store.Conversation, error) {
	convs, err := s.store.FindConversationsForPair(ctx, requesterID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("finding pair conversations: %w", err)
	}

	explicitSubject := strings.TrimSpace(req.Subject)
	for _, conv := range convs {
		if conv.Status == store.StatusClosed {
			continue
		}
		if scope == store.ScopeService && conv.Scope != store.ScopeService {
			continue
		}
		if explicitSubject != "" {
			if conv.Subject == explicitSubject {
				return conv, nil
			}
			continue
		}
		if listingOf(conv) == req.ListingID {
			return conv, nil
		}
	}
	return nil, nil
}

func (s *Service) create(ctx context.Context, requesterID, recipientID string, scope store.Scope, subject, serviceCode, listingID string) (*store.Conversation, error) {
	now := time.Now().UTC()
	conv := &store.Conversation{
		ID:          uuid.New().String(),
		Subject:     subject,
		Scope:       scope,
		ServiceCode: serviceCode,
		Status:      store.StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if listingID != "" {
		conv.ListingID = &listingID
	}

	members := []*store.Member{
		{ConversationID: conv.ID, UserID: requesterID, Role: store.MemberOwner, CreatedAt: now},
		{ConversationID: conv.ID, UserID: recipientID, Role: store.MemberParticipant, CreatedAt: now},
	}

	if err := s.store.CreateConversation(ctx, conv, members); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Info("conversation created",
		"conversation_id", conv.ID,
		"scope", scope,
		"subject", subject)
	return conv, nil
}

// seedIfEmpty writes the opening messages when the conversation has none.
// Seeding runs in its own transaction after creation, so a crash between
// the two heals on the next upsert for the same pair.
func (s *Service) seedIfEmpty(ctx context.Context, conv *store.Conversation, recipientID, subject, initialMessage string) error {
	count, err := s.store.CountMessages(ctx, conv.ID)
	if err != nil {
		return fmt.Errorf("counting seed messages: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	msgs := []*store.Message{
		{
			ID:             uuid.New().String(),
			ConversationID: conv.ID,
			Type:           store.MessageTypeSystem,
			Content:        safetyNotice,
			CreatedAt:      now,
		},
	}

	// Support conversations open with the notice alone unless the caller
	// supplied an opener; everywhere else the recipient-attributed intro
	// follows.
	intro := strings.TrimSpace(initialMessage)
	if intro == "" && conv.Scope != store.ScopeSupport {
		intro = fmt.Sprintf("Hello, I saw you were interested in %s", subject)
	}
	if intro != "" {
		msgs = append(msgs, &store.Message{
			ID:             uuid.New().String(),
			ConversationID: conv.ID,
			SenderID:       &recipientID,
			Type:           store.MessageTypeText,
			Content:        intro,
			CreatedAt:      now,
		})
	}

	if err := s.store.SaveMessages(ctx, msgs); err != nil {
		return fmt.Errorf("seeding conversation: %w", err)
	}
	return nil
}

func listingOf(conv *store.Conversation) string {
	if conv.ListingID == nil {
		return ""
	}
	return *conv.ListingID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
