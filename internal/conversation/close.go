// ABOUTME: Lifecycle closer - bulk-closes every conversation tied to a listing
// ABOUTME: Called by the listing subsystem when a deal closes or a listing is deleted

package conversation

import (
	"context"
	"fmt"
	"time"
)

// CloseConversationsForListing transitions every still-open conversation
// referencing the listing to closed, stamping the close time and reason.
// Already-closed conversations are untouched. Returns the number of
// conversations this call actually closed.
func (s *Service) CloseConversationsForListing(ctx context.Context, listingID, reason string) (int, error) {
	if listingID == "" {
		return 0, invalid("listing", "listing id is required")
	}

	convs, err := s.store.ListConversationsByListing(ctx, listingID)
	if err != nil {
		return 0, fmt.Errorf("listing conversations for %s: %w", listingID, err)
	}

	now := time.Now().UTC()
	closed := 0
	for _, conv := range convs {
		did, err := s.store.CloseConversation(ctx, conv.ID, reason, now)
		if err != nil {
			return closed, fmt.Errorf("closing conversation %s: %w", conv.ID, err)
		}
		if did {
			closed++
		}
	}

	s.logger.Info("closed conversations for listing",
		"listing_id", listingID,
		"reason", reason,
		"closed", closed,
		"total", len(convs))
	return closed, nil
}
