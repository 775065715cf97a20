package memory

import (
	"context"
	"sort"
	"sync"

	"vocab-quest-service/internal/domain"
)

// CompletionStore holds session completions in memory.
type CompletionStore struct {
	mu     sync.RWMutex
	byUser map[string]map[string]domain.SessionCompletion
}

func NewCompletionStore() *CompletionStore {
	return &CompletionStore{byUser: make(map[string]map[string]domain.SessionCompletion)}
}

func (s *CompletionStore) MarkCompleted(_ context.Context, c domain.SessionCompletion) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions, ok := s.byUser[c.UserID]
	if !ok {
		sessions = make(map[string]domain.SessionCompletion)
		s.byUser[c.UserID] = sessions
	}
	if _, exists := sessions[c.SessionID]; exists {
		return false, nil
	}
	sessions[c.SessionID] = c
	return true, nil
}

func (s *CompletionStore) Get(_ context.Context, userID, sessionID string) (domain.SessionCompletion, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byUser[userID][sessionID]
	return c, ok, nil
}

func (s *CompletionStore) ListByUser(_ context.Context, userID string) ([]domain.SessionCompletion, error) {
	s.mu.RLock()
	out := make([]domain.SessionCompletion, 0, len(s.byUser[userID]))
	for _, c := range s.byUser[userID] {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	return out, nil
}
