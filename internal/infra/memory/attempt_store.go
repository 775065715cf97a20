package memory

import (
	"context"
	"sync"
	"time"

	"vocab-quest-service/internal/app"
	"vocab-quest-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]*app.Attempt
	now      func() time.Time
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]*app.Attempt),
		now:      time.Now,
	}
}

func (s *AttemptStore) GetOrCreate(_ context.Context, userID, sessionID string) (*app.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey(userID, sessionID)
	if attempt, ok := s.attempts[key]; ok {
		return attempt, nil
	}
	attempt := app.NewAttempt(userID, sessionID, s.now())
	s.attempts[key] = attempt
	return attempt, nil
}

func (s *AttemptStore) Get(_ context.Context, userID, sessionID string) (*app.Attempt, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptKey(userID, sessionID)]
	return attempt, ok, nil
}

func (s *AttemptStore) Record(_ context.Context, attempt *app.Attempt, answer domain.Answer) error {
	attempt.Record(answer)
	return nil
}

func (s *AttemptStore) Delete(_ context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, attemptKey(userID, sessionID))
	return nil
}

func attemptKey(userID, sessionID string) string {
	return userID + "\x00" + sessionID
}
