package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLiteStore implements Store on a local SQLite database
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path. The
// schema is created automatically. synchronous=FULL keeps every mutation
// committed to disk before the call returns, so a crash between handling
// steps never loses an admitted delivery or a created conversation handle.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=FULL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Info().Str("path", path).Msg("Store initialized")
	return s, nil
}

// createSchema creates the tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			chat_id         TEXT PRIMARY KEY,
			conversation_id TEXT,
			language        TEXT,
			updated_at      TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS deliveries (
			delivery_id TEXT PRIMARY KEY,
			seen_at     TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_deliveries_seen_at
			ON deliveries(seen_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Get returns the session for chatID, or nil when absent
func (s *SQLiteStore) Get(ctx context.Context, chatID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chat_id, COALESCE(conversation_id, ''), COALESCE(language, ''), updated_at
		FROM sessions WHERE chat_id = ?`, chatID)

	var sess Session
	err := row.Scan(&sess.ChatID, &sess.ConversationID, &sess.Language, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &sess, nil
}

// Upsert creates or updates a session, preserving existing non-null
// fields: a concurrent second create with a fresh conversation handle
// cannot displace the first-set handle, and ordinary message flow cannot
// downgrade an established language.
func (s *SQLiteStore) Upsert(ctx context.Context, chatID, conversationID, language string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (chat_id, conversation_id, language, updated_at)
		VALUES (?, NULLIF(?, ''), NULLIF(?, ''), ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			conversation_id = COALESCE(sessions.conversation_id, excluded.conversation_id),
			language        = COALESCE(sessions.language, excluded.language),
			updated_at      = excluded.updated_at`,
		chatID, conversationID, language, ts.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

// SetLanguage overwrites the language of an existing session. Missing
// sessions are tolerated as a no-op.
func (s *SQLiteStore) SetLanguage(ctx context.Context, chatID, language string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET language = ?, updated_at = ? WHERE chat_id = ?`,
		language, time.Now().UTC(), chatID)
	if err != nil {
		return fmt.Errorf("failed to set language: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Debug().Str("chat_id", chatID).Msg("SetLanguage on missing session ignored")
	}
	return nil
}

// AlreadySeen reports whether a delivery id has been recorded
func (s *SQLiteStore) AlreadySeen(ctx context.Context, deliveryID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM deliveries WHERE delivery_id = ?)`, deliveryID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check delivery: %w", err)
	}
	return exists, nil
}

// MarkSeen records a delivery id; the primary key makes the
// check-and-insert atomic, so exactly one of two concurrent duplicate
// inserts observes true.
func (s *SQLiteStore) MarkSeen(ctx context.Context, deliveryID string, ts time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO deliveries (delivery_id, seen_at) VALUES (?, ?)`,
		deliveryID, ts.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to record delivery: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return n > 0, nil
}

// PruneDeliveries deletes delivery records first seen before cutoff
func (s *SQLiteStore) PruneDeliveries(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM deliveries WHERE seen_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune deliveries: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read prune result: %w", err)
	}

	if n > 0 {
		s.logger.Info().Int64("removed", n).Time("cutoff", cutoff).Msg("Pruned delivery records")
	}
	return n, nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
