package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vocab-quest-service/internal/domain"
)

// WordStateStore keeps word states in a map guarded by a mutex.
type WordStateStore struct {
	mu     sync.Mutex
	states map[wordKey]domain.WordState
}

type wordKey struct {
	userID string
	wordID string
}

func NewWordStateStore() *WordStateStore {
	return &WordStateStore{states: make(map[wordKey]domain.WordState)}
}

func (s *WordStateStore) Get(_ context.Context, userID, wordID string) (domain.WordState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[wordKey{userID, wordID}]
	return state, ok, nil
}

func (s *WordStateStore) Upsert(_ context.Context, userID, wordID string, next func(prev *domain.WordState) domain.WordState) (domain.WordState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := wordKey{userID, wordID}
	var prev *domain.WordState
	if current, ok := s.states[key]; ok {
		prev = &current
	}
	state := next(prev)
	state.UserID, state.WordID = userID, wordID
	s.states[key] = state
	return state, nil
}

func (s *WordStateStore) Seed(_ context.Context, state domain.WordState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := wordKey{state.UserID, state.WordID}
	if _, ok := s.states[key]; ok {
		return false, nil
	}
	s.states[key] = state
	return true, nil
}

func (s *WordStateStore) Due(_ context.Context, userID string, now time.Time, limit int) ([]domain.WordState, error) {
	s.mu.Lock()
	var due []domain.WordState
	for key, state := range s.states {
		if key.userID == userID && state.IsDue(now) {
			due = append(due, state)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if !due[i].DueAt.Equal(due[j].DueAt) {
			return due[i].DueAt.Before(due[j].DueAt)
		}
		return due[i].WordID < due[j].WordID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *WordStateStore) CountDue(_ context.Context, userID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, state := range s.states {
		if key.userID == userID && state.IsDue(now) {
			n++
		}
	}
	return n, nil
}
