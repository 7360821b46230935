// ABOUTME: Service-scope synchronizer mirroring service conversations into bookkeeping records
// ABOUTME: Upserts catalog entry, service request, and transcript placeholder; schema absence is a configuration error

package servicescope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/propstead/messaging/internal/store"
)

// StatusRequested is the initial service request status stamped at first sync.
const StatusRequested = "requested"

// Synchronizer mirrors service-scoped conversations into catalog and
// request-record bookkeeping. All three upserts must succeed; a missing
// durable schema is surfaced as a configuration error, never masked, because
// silently dropping service bookkeeping corrupts downstream workflows.
type Synchronizer struct {
	services store.ServiceStore
	logger   *slog.Logger
}

// NewSynchronizer creates a service-scope synchronizer.
func NewSynchronizer(services store.ServiceStore, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		services: services,
		logger:   logger.With("component", "servicescope"),
	}
}

// Sync upserts the bookkeeping for one service-scoped conversation and
// returns the engagement's deterministic folder root. Safe to call again for
// the same conversation: the catalog entry is never renamed, the request
// record only moves status/updated_at, and the folder root is a pure
// function of its inputs.
func (s *Synchronizer) Sync(ctx context.Context, conv *store.Conversation, requesterID, providerID string) (string, error) {
	if conv.ServiceCode == "" {
		return "", fmt.Errorf("conversation %s has no service code", conv.ID)
	}

	now := time.Now()
	folderRoot := FolderRoot(conv.ServiceCode, requesterID, conv.ID)

	err := s.services.UpsertCatalogEntry(ctx, &store.CatalogEntry{
		Code:      conv.ServiceCode,
		Name:      DisplayName(conv.ServiceCode),
		CreatedAt: now,
	})
	if err != nil {
		return "", s.wrap("catalog entry", conv.ID, err)
	}

	err = s.services.UpsertServiceRequest(ctx, &store.ServiceRequest{
		ConversationID: conv.ID,
		ServiceCode:    conv.ServiceCode,
		RequesterID:    requesterID,
		ProviderID:     providerID,
		FolderRoot:     folderRoot,
		Status:         StatusRequested,
		UpdatedAt:      now,
	})
	if err != nil {
		return "", s.wrap("service request", conv.ID, err)
	}

	err = s.services.UpsertTranscript(ctx, &store.TranscriptRecord{
		ConversationID: conv.ID,
		FolderRoot:     folderRoot,
		UpdatedAt:      now,
	})
	if err != nil {
		return "", s.wrap("transcript record", conv.ID, err)
	}

	s.logger.Info("synced service engagement",
		"conversation_id", conv.ID,
		"service_code", conv.ServiceCode,
		"folder_root", folderRoot)
	return folderRoot, nil
}

func (s *Synchronizer) wrap(what, conversationID string, err error) error {
	if errors.Is(err, store.ErrSchemaMissing) {
		s.logger.Error("service bookkeeping schema missing",
			"conversation_id", conversationID,
			"record", what)
		return fmt.Errorf("service bookkeeping unavailable (configuration error): upserting %s: %w", what, err)
	}
	return fmt.Errorf("upserting %s for conversation %s: %w", what, conversationID, err)
}
