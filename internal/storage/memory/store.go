// Package memory is an in-memory TranscriptStore for tests and cache-less runs.
package memory

import (
	"context"
	"sync"

	"github.com/lessonloop/lessonloop/internal/domain"
	"github.com/lessonloop/lessonloop/internal/storage"
)

// Store is an in-memory implementation of TranscriptStore.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]domain.Message
}

var _ storage.TranscriptStore = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{sessions: make(map[string][]domain.Message)}
}

func (s *Store) SaveMessages(_ context.Context, sessionID string, msgs []domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.sessions[sessionID]
	for _, m := range msgs {
		replaced := false
		for i := range existing {
			if existing[i].ID == m.ID {
				existing[i] = m.Clone()
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, m.Clone())
		}
	}
	s.sessions[sessionID] = existing
	return nil
}

func (s *Store) LoadMessages(_ context.Context, sessionID string, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.sessions[sessionID]
	start := 0
	if limit > 0 && len(msgs) > limit {
		start = len(msgs) - limit
	}

	out := make([]domain.Message, 0, len(msgs)-start)
	for _, m := range msgs[start:] {
		out = append(out, m.Clone())
	}
	return out, nil
}

func (s *Store) Close() error { return nil }
