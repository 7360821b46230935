// ABOUTME: SQLite implementation of the Store and ServiceStore interfaces using modernc.org/sqlite
// ABOUTME: Provides conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store and ServiceStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w: %w", ErrSchemaMissing, err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			role         TEXT NOT NULL DEFAULT 'buyer',
			created_at   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversations (
			id            TEXT PRIMARY KEY,
			subject       TEXT NOT NULL DEFAULT '',
			listing_id    TEXT,
			scope         TEXT NOT NULL,
			service_code  TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL DEFAULT 'open',
			closed_at     TEXT,
			closed_reason TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL,

			CHECK (scope IN ('listing', 'renting', 'service', 'support')),
			CHECK (status IN ('open', 'closed'))
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_listing ON conversations(listing_id);
		CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at DESC);

		CREATE TABLE IF NOT EXISTS conversation_members (
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			user_id         TEXT NOT NULL,
			role            TEXT NOT NULL,
			created_at      TEXT NOT NULL,

			PRIMARY KEY (conversation_id, user_id),
			CHECK (role IN ('owner', 'participant', 'support'))
		);

		CREATE INDEX IF NOT EXISTS idx_members_user ON conversation_members(user_id);

		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			sender_id       TEXT,
			type            TEXT NOT NULL DEFAULT 'text',
			content         TEXT NOT NULL,
			meta_json       TEXT,
			created_at      TEXT NOT NULL,

			CHECK (type IN ('text', 'system', 'issue_card'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id, created_at);

		-- Attachment linkage audit rows. The message's own meta_json remains
		-- the source of truth for rendering.
		CREATE TABLE IF NOT EXISTS message_attachments (
			message_id   TEXT NOT NULL REFERENCES messages(id),
			bucket_id    TEXT NOT NULL,
			storage_path TEXT NOT NULL,
			file_name    TEXT NOT NULL,
			mime_type    TEXT NOT NULL,
			file_size    INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_message_attachments_message
			ON message_attachments(message_id);

		CREATE TABLE IF NOT EXISTS service_catalog (
			code       TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS service_requests (
			conversation_id TEXT PRIMARY KEY REFERENCES conversations(id),
			service_code    TEXT NOT NULL,
			requester_id    TEXT NOT NULL,
			provider_id     TEXT NOT NULL,
			folder_root     TEXT NOT NULL,
			status          TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS service_transcripts (
			conversation_id TEXT PRIMARY KEY REFERENCES conversations(id),
			folder_root     TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateConversation inserts a conversation and its membership rows in one
// transaction. Returns ErrDuplicateConversation if the id already exists.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation, members []*Member) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, subject, listing_id, scope, service_code, status, closed_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		conv.ID,
		conv.Subject,
		nullableString(conv.ListingID),
		string(conv.Scope),
		conv.ServiceCode,
		string(conv.Status),
		conv.ClosedReason,
		conv.CreatedAt.UTC().Format(time.RFC3339),
		conv.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	for _, m := range members {
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO conversation_members (conversation_id, user_id, role, created_at)
			VALUES (?, ?, ?, ?)
		`, conv.ID, m.UserID, string(m.Role), m.CreatedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("inserting member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "scope", conv.Scope, "members", len(members))
	return nil
}

const conversationColumns = `id, subject, listing_id, scope, service_code, status, closed_at, closed_reason, created_at, updated_at`

func scanConversation(scan func(dest ...any) error) (*Conversation, error) {
	var conv Conversation
	var listingID, closedAt sql.NullString
	var scope, status, createdAt, updatedAt string

	err := scan(
		&conv.ID,
		&conv.Subject,
		&listingID,
		&scope,
		&conv.ServiceCode,
		&status,
		&closedAt,
		&conv.ClosedReason,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	conv.Scope = Scope(scope)
	conv.Status = ConversationStatus(status)
	if listingID.Valid {
		conv.ListingID = &listingID.String
	}
	if closedAt.Valid {
		t, err := time.Parse(time.RFC3339, closedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing closed_at: %w", err)
		}
		conv.ClosedAt = &t
	}

	conv.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	conv.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &conv, nil
}

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations WHERE id = ?
	`, id)

	conv, err := scanConversation(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return conv, nil
}

// FindConversationsForPair returns every conversation that both users are
// members of, most recently updated first. The caller applies the
// subject/listing dedup rules on top.
func (s *SQLiteStore) FindConversationsForPair(ctx context.Context, userA, userB string) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE id IN (
			SELECT ma.conversation_id
			FROM conversation_members ma
			JOIN conversation_members mb ON ma.conversation_id = mb.conversation_id
			WHERE ma.user_id = ? AND mb.user_id = ?
		)
		ORDER BY updated_at DESC
	`, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("querying conversations for pair: %w", err)
	}
	defer rows.Close()

	return collectConversations(rows)
}

func collectConversations(rows *sql.Rows) ([]*Conversation, error) {
	var convs []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}
	return convs, nil
}

// ListConversationsForUser retrieves conversations the user is a member of,
// ordered by most recent activity. If limit is 0 or negative, 100 is used.
func (s *SQLiteStore) ListConversationsForUser(ctx context.Context, userID string, limit int) ([]*Conversation, error) {
	limit = normalizeLimit(limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE id IN (SELECT conversation_id FROM conversation_members WHERE user_id = ?)
		ORDER BY updated_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying conversations for user: %w", err)
	}
	defer rows.Close()

	return collectConversations(rows)
}

// ListConversations retrieves the most recently updated conversations
// regardless of membership. Admin listings only.
func (s *SQLiteStore) ListConversations(ctx context.Context, limit int) ([]*Conversation, error) {
	limit = normalizeLimit(limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		ORDER BY updated_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	return collectConversations(rows)
}

// ListConversationsByListing retrieves all conversations referencing a
// listing, regardless of status.
func (s *SQLiteStore) ListConversationsByListing(ctx context.Context, listingID string) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE listing_id = ?
		ORDER BY updated_at DESC
	`, listingID)
	if err != nil {
		return nil, fmt.Errorf("querying conversations by listing: %w", err)
	}
	defer rows.Close()

	return collectConversations(rows)
}

// TouchConversation stamps updated_at. Returns ErrNotFound for unknown ids.
func (s *SQLiteStore) TouchConversation(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = ? WHERE id = ?
	`, at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CloseConversation transitions an open conversation to closed, stamping
// closed_at and closed_reason. Returns false without error if the
// conversation was already closed (idempotent).
func (s *SQLiteStore) CloseConversation(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	ts := at.UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET status = ?, closed_at = ?, closed_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, StatusClosed, ts, reason, ts, id, StatusOpen)
	if err != nil {
		return false, fmt.Errorf("closing conversation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	s.logger.Debug("closed conversation", "id", id, "reason", reason)
	return true, nil
}

// AddMember adds a membership row. Idempotent - adding an existing member
// succeeds silently.
func (s *SQLiteStore) AddMember(ctx context.Context, member *Member) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversation_members (conversation_id, user_id, role, created_at)
		VALUES (?, ?, ?, ?)
	`,
		member.ConversationID,
		member.UserID,
		string(member.Role),
		member.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("adding member: %w", err)
	}

	s.logger.Debug("added member", "conversation_id", member.ConversationID, "user_id", member.UserID, "role", member.Role)
	return nil
}

// ListMembers returns the membership rows for a conversation.
func (s *SQLiteStore) ListMembers(ctx context.Context, conversationID string) ([]*Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, user_id, role, created_at
		FROM conversation_members
		WHERE conversation_id = ?
		ORDER BY created_at, user_id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		var m Member
		var role, createdAt string
		if err := rows.Scan(&m.ConversationID, &m.UserID, &role, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning member row: %w", err)
		}
		m.Role = MemberRole(role)
		m.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing member created_at: %w", err)
		}
		members = append(members, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating member rows: %w", err)
	}
	return members, nil
}

// SaveMessage persists a message and its attachment audit rows in one
// transaction.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	return s.SaveMessages(ctx, []*Message{msg})
}

// SaveMessages persists a batch of messages atomically. Used by conversation
// seeding so either all seed messages become visible or none do.
func (s *SQLiteStore) SaveMessages(ctx context.Context, msgs []*Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, msg := range msgs {
		if err := insertMessage(ctx, tx, msg); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing messages: %w", err)
	}

	s.logger.Debug("saved messages", "count", len(msgs))
	return nil
}

func insertMessage(ctx context.Context, tx *sql.Tx, msg *Message) error {
	msgType := msg.Type
	if msgType == "" {
		msgType = MessageTypeText
	}

	var metaJSON any
	if msg.Meta != nil {
		data, err := json.Marshal(msg.Meta)
		if err != nil {
			return fmt.Errorf("encoding message metadata: %w", err)
		}
		metaJSON = string(data)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, type, content, meta_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		msg.ID,
		msg.ConversationID,
		nullableString(msg.SenderID),
		msgType,
		msg.Content,
		metaJSON,
		msg.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	if msg.Meta != nil {
		for _, att := range msg.Meta.Attachments {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO message_attachments (message_id, bucket_id, storage_path, file_name, mime_type, file_size)
				VALUES (?, ?, ?, ?, ?, ?)
			`, msg.ID, att.BucketID, att.StoragePath, att.FileName, att.MimeType, att.FileSizeBytes)
			if err != nil {
				return fmt.Errorf("inserting attachment audit row: %w", err)
			}
		}
	}

	return nil
}

const messageColumns = `id, conversation_id, sender_id, type, content, meta_json, created_at`

func scanMessage(scan func(dest ...any) error) (*Message, error) {
	var msg Message
	var senderID, metaJSON sql.NullString
	var createdAt string

	err := scan(&msg.ID, &msg.ConversationID, &senderID, &msg.Type, &msg.Content, &metaJSON, &createdAt)
	if err != nil {
		return nil, err
	}

	if senderID.Valid {
		msg.SenderID = &senderID.String
	}
	if metaJSON.Valid && metaJSON.String != "" {
		var meta MessageMeta
		if err := json.Unmarshal([]byte(metaJSON.String), &meta); err != nil {
			return nil, fmt.Errorf("decoding message metadata: %w", err)
		}
		msg.Meta = &meta
	}

	msg.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing message created_at: %w", err)
	}

	return &msg, nil
}

// ListMessages returns the full message history for a conversation in
// chronological order. Ties on created_at are broken by insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return messages, nil
}

// CountMessages returns the number of messages in a conversation.
func (s *SQLiteStore) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE conversation_id = ?
	`, conversationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return count, nil
}

// LatestMessage returns the most recent message in a conversation, or
// ErrNotFound if the conversation has no messages.
func (s *SQLiteStore) LatestMessage(ctx context.Context, conversationID string) (*Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, conversationID)

	msg, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest message: %w", err)
	}
	return msg, nil
}

// GetUser retrieves a user directory entry.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	var createdAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, role, created_at FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.DisplayName, &user.Role, &createdAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing user created_at: %w", err)
	}
	return &user, nil
}

// EnsureUser lazily provisions a directory entry. An existing entry's
// identity is never overwritten; an empty display name is backfilled.
func (s *SQLiteStore) EnsureUser(ctx context.Context, user *User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (id, display_name, role, created_at)
		VALUES (?, ?, ?, ?)
	`, user.ID, user.DisplayName, user.Role, user.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("ensuring user: %w", err)
	}

	if user.DisplayName != "" {
		_, err = s.db.ExecContext(ctx, `
			UPDATE users SET display_name = ? WHERE id = ? AND display_name = ''
		`, user.DisplayName, user.ID)
		if err != nil {
			return fmt.Errorf("backfilling display name: %w", err)
		}
	}

	return nil
}

// UpsertCatalogEntry creates a service-catalog row if absent. An existing
// entry is never renamed.
func (s *SQLiteStore) UpsertCatalogEntry(ctx context.Context, entry *CatalogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO service_catalog (code, name, created_at)
		VALUES (?, ?, ?)
	`, entry.Code, entry.Name, entry.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting catalog entry: %w", err)
	}
	return nil
}

// UpsertServiceRequest creates or refreshes the request record keyed by
// conversation id. Only status and updated_at change after creation.
func (s *SQLiteStore) UpsertServiceRequest(ctx context.Context, req *ServiceRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_requests (conversation_id, service_code, requester_id, provider_id, folder_root, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at
	`,
		req.ConversationID,
		req.ServiceCode,
		req.RequesterID,
		req.ProviderID,
		req.FolderRoot,
		req.Status,
		req.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting service request: %w", err)
	}

	s.logger.Debug("upserted service request", "conversation_id", req.ConversationID, "service_code", req.ServiceCode)
	return nil
}

// UpsertTranscript creates or refreshes the transcript placeholder for a
// service engagement.
func (s *SQLiteStore) UpsertTranscript(ctx context.Context, rec *TranscriptRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_transcripts (conversation_id, folder_root, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET folder_root = excluded.folder_root, updated_at = excluded.updated_at
	`, rec.ConversationID, rec.FolderRoot, rec.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting transcript record: %w", err)
	}
	return nil
}

// GetServiceRequest retrieves the request record for a conversation.
// Returns ErrNotFound if none exists.
func (s *SQLiteStore) GetServiceRequest(ctx context.Context, conversationID string) (*ServiceRequest, error) {
	var req ServiceRequest
	var updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT conversation_id, service_code, requester_id, provider_id, folder_root, status, updated_at
		FROM service_requests
		WHERE conversation_id = ?
	`, conversationID).Scan(
		&req.ConversationID,
		&req.ServiceCode,
		&req.RequesterID,
		&req.ProviderID,
		&req.FolderRoot,
		&req.Status,
		&updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying service request: %w", err)
	}

	req.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing service request updated_at: %w", err)
	}
	return &req, nil
}

// nullableString returns nil for nil or empty string pointers.
func nullableString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// normalizeLimit applies default (100) and cap (1000) to listing limits.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

// Ensure SQLiteStore implements the store interfaces
var _ Store = (*SQLiteStore)(nil)
var _ ServiceStore = (*SQLiteStore)(nil)
