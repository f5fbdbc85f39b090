// Package store persists relay state: the session table binding a chat
// identity to its remote conversation handle and language preference, and
// the delivery ledger recording already-processed webhook deliveries.
package store

import (
	"context"
	"time"
)

// Session binds a chat identity to a remote conversation and a language
// preference. ConversationID and Language are empty when unset.
type Session struct {
	ChatID         string
	ConversationID string
	Language       string
	UpdatedAt      time.Time
}

// Store is the narrow contract all callers go through; no caller touches
// the underlying tables directly.
type Store interface {
	// Get returns the session for chatID, or (nil, nil) when absent.
	Get(ctx context.Context, chatID string) (*Session, error)

	// Upsert creates or updates a session. An empty conversationID never
	// overwrites an existing one, and an empty language never overwrites
	// an existing one; a non-empty language only fills a previously empty
	// slot. SetLanguage is the authoritative overwrite path.
	Upsert(ctx context.Context, chatID, conversationID, language string, ts time.Time) error

	// SetLanguage unconditionally overwrites the language of an existing
	// session. A missing session is a silent no-op.
	SetLanguage(ctx context.Context, chatID, language string) error

	// AlreadySeen reports whether a delivery id has been recorded.
	AlreadySeen(ctx context.Context, deliveryID string) (bool, error)

	// MarkSeen records a delivery id. The returned bool is true when the
	// record was newly inserted; a concurrent duplicate insert is a
	// silent no-op that returns false. Check-and-insert is atomic under
	// the primary key constraint.
	MarkSeen(ctx context.Context, deliveryID string, ts time.Time) (bool, error)

	// PruneDeliveries deletes delivery records first seen before cutoff
	// and returns the number removed.
	PruneDeliveries(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases the underlying database handle.
	Close() error
}
