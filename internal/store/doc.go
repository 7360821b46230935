// Package store provides persistence for the messaging core.
//
// # Architecture
//
// Two interfaces cover the storage surface:
//
//   - Store: conversations, membership, the append-only message log, and the
//     user directory
//   - ServiceStore: service-catalog, service-request, and transcript
//     bookkeeping for service-scoped conversations
//
// SQLiteStore implements both. MemoryStore implements Store with the same
// invariants and is the process-lifetime fallback engaged by Open when the
// durable schema is unavailable; its ServiceStore methods report
// ErrSchemaMissing because service bookkeeping has no soft fallback.
//
// Both implementations share one conformance test suite (store_test.go), so
// calling code never needs to know which backend is live.
//
// # Data Models
//
//   - Conversation: two-party thread scoped to a listing, rental, service
//     engagement, or support request
//   - Member: (conversation, user) membership with an owner/participant/support role
//   - Message: append-only, typed (text/system/issue_card), with structured
//     metadata for attachments and issue cards
//   - User: lazily provisioned directory entry
//   - CatalogEntry / ServiceRequest / TranscriptRecord: service bookkeeping
//
// # SQLite Configuration
//
// The durable store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC3339 TEXT. Message ordering is created_at
// ascending with rowid as the insertion-order tiebreak.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateConversation: conversation id already exists
//   - ErrConversationClosed: append attempted on a closed conversation
//   - ErrSchemaMissing: backing schema absent (fallback trigger, or a
//     configuration error on the service bookkeeping path)
//
// All methods accept context.Context for cancellation support.
package store
