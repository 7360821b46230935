// ABOUTME: Message append and history listing, guarded by conversation access control
// ABOUTME: Derives captions for attachment-only sends and auto-joins admins as support

package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/propstead/messaging/internal/identity"
	"github.com/propstead/messaging/internal/store"
)

// AppendRequest adds one message to a conversation on behalf of a sender.
type AppendRequest struct {
	ConversationID string
	SenderID       string
	SenderName     string
	SenderRole     string

	Content     string
	MessageType string
	IssueCard   *store.IssueCard
	Attachments []store.Attachment
}

// Append writes a message after checking access. Closed conversations
// reject all appends. Admins sending into a conversation they are not a
// member of are auto-added as support members first.
func (s *Service) Append(ctx context.Context, req AppendRequest) (*MessageView, error) {
	senderID := identity.NormalizeUserID(req.SenderID, req.SenderName)
	if senderID == "" {
		return nil, invalid("sender", "participant is required")
	}

	conv, err := s.store.GetConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}

	members, err := s.store.ListMembers(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}

	if err := s.guard.CanAccess(ctx, senderID, members); err != nil {
		return nil, err
	}

	if conv.Status == store.StatusClosed {
		return nil, store.ErrConversationClosed
	}

	if err := s.roles.EnsureUser(ctx, senderID, req.SenderName, identity.ParseRole(req.SenderRole)); err != nil {
		return nil, fmt.Errorf("ensuring sender: %w", err)
	}

	if !isMember(members, senderID) {
		// An admin passed the guard without membership; join them so their
		// replies surface in the participants' listings.
		if err := s.store.AddMember(ctx, &store.Member{
			ConversationID: conv.ID,
			UserID:         senderID,
			Role:           store.MemberSupport,
			CreatedAt:      time.Now().UTC(),
		}); err != nil {
			return nil, fmt.Errorf("adding support member: %w", err)
		}
		s.logger.Info("admin joined conversation", "conversation_id", conv.ID, "user_id", senderID)
	}

	content, err := effectiveContent(req)
	if err != nil {
		return nil, err
	}

	msgType := req.MessageType
	if msgType == "" {
		msgType = store.MessageTypeText
	}

	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       &senderID,
		Type:           msgType,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if req.IssueCard != nil || len(req.Attachments) > 0 {
		msg.Meta = &store.MessageMeta{
			IssueCard:   req.IssueCard,
			Attachments: req.Attachments,
		}
	}

	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("saving message: %w", err)
	}
	if err := s.store.TouchConversation(ctx, conv.ID, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("touching conversation: %w", err)
	}

	return s.messageView(ctx, msg, senderID), nil
}

// Messages returns the full history of a conversation ascending by time,
// rendered relative to the viewer.
func (s *Service) Messages(ctx context.Context, conversationID, viewerID string) ([]*MessageView, error) {
	viewerID = identity.NormalizeUserID(viewerID, "")

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	members, err := s.store.ListMembers(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	if err := s.guard.CanAccess(ctx, viewerID, members); err != nil {
		return nil, err
	}

	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	views := make([]*MessageView, 0, len(msgs))
	for _, msg := range msgs {
		views = append(views, s.messageView(ctx, msg, viewerID))
	}
	return views, nil
}

// effectiveContent resolves the text stored for a message: explicit content
// wins, issue cards fall back to a generic update line, attachment-only
// sends get a generated caption, and a fully empty send is rejected.
func effectiveContent(req AppendRequest) (string, error) {
	content := strings.TrimSpace(req.Content)
	if content != "" {
		return content, nil
	}
	if req.MessageType == store.MessageTypeIssueCard || req.IssueCard != nil {
		return "Issue update", nil
	}
	switch n := len(req.Attachments); {
	case n == 1:
		return fmt.Sprintf("Shared attachment: %s", req.Attachments[0].FileName), nil
	case n > 1:
		return fmt.Sprintf("Shared %d attachments", n), nil
	}
	return "", invalid("content", "message needs text or attachments")
}

func isMember(members []*store.Member, userID string) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
