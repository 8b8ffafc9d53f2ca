// Package storage defines the local transcript cache used to seed sessions
// when the backend history endpoint is unavailable.
package storage

import (
	"context"

	"github.com/lessonloop/lessonloop/internal/domain"
)

// TranscriptStore persists finalized messages per session. Writes are
// best-effort from the session's point of view; implementations must be
// safe for concurrent use.
type TranscriptStore interface {
	// SaveMessages upserts finalized messages for a session.
	SaveMessages(ctx context.Context, sessionID string, msgs []domain.Message) error

	// LoadMessages returns up to limit of the most recent messages for a
	// session, oldest first. limit <= 0 means no limit.
	LoadMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)

	Close() error
}
