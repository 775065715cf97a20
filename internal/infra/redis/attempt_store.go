package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"vocab-quest-service/internal/app"
	"vocab-quest-service/internal/domain"
)

// AttemptStore is a Redis-aware implementation of app.AttemptRepository.
// Notes:
//   - Attempts live in a local map so in-flight answer tracking stays in process.
//   - Every recorded answer is mirrored to a Redis list, so an attempt survives a restart or a
//     reconnect routed to another instance and is rehydrated on first access.
//   - Keys expire after ttl of inactivity; an abandoned attempt simply forgoes its bonus.
type AttemptStore struct {
	client   *redis.Client
	ttl      time.Duration
	now      func() time.Time
	mu       sync.Mutex
	attempts map[string]*app.Attempt
}

func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{
		client:   client,
		ttl:      ttl,
		now:      time.Now,
		attempts: make(map[string]*app.Attempt),
	}
}

func (s *AttemptStore) GetOrCreate(ctx context.Context, userID, sessionID string) (*app.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt, ok := s.attempts[s.key(userID, sessionID)]; ok {
		return attempt, nil
	}
	attempt, ok, err := s.rehydrate(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		attempt = app.NewAttempt(userID, sessionID, s.now())
		if err := s.client.Set(ctx, s.key(userID, sessionID), attempt.StartedAt().UnixMilli(), s.ttl).Err(); err != nil {
			return nil, domain.NewStoreError("create attempt", err)
		}
	}
	s.attempts[s.key(userID, sessionID)] = attempt
	return attempt, nil
}

func (s *AttemptStore) Get(ctx context.Context, userID, sessionID string) (*app.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt, ok := s.attempts[s.key(userID, sessionID)]; ok {
		return attempt, true, nil
	}
	attempt, ok, err := s.rehydrate(ctx, userID, sessionID)
	if err != nil || !ok {
		return nil, false, err
	}
	s.attempts[s.key(userID, sessionID)] = attempt
	return attempt, true, nil
}

func (s *AttemptStore) Record(ctx context.Context, attempt *app.Attempt, answer domain.Answer) error {
	attempt.Record(answer)

	data, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	key := s.key(attempt.UserID(), attempt.SessionID())
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.answersKey(key), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
		pipe.Expire(ctx, s.answersKey(key), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.NewStoreError("mirror attempt answer", err)
	}
	return nil
}

func (s *AttemptStore) Delete(ctx context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(userID, sessionID)
	delete(s.attempts, key)
	if err := s.client.Del(ctx, key, s.answersKey(key)).Err(); err != nil {
		return domain.NewStoreError("delete attempt", err)
	}
	return nil
}

// rehydrate rebuilds an attempt from its Redis mirror. Callers hold s.mu.
func (s *AttemptStore) rehydrate(ctx context.Context, userID, sessionID string) (*app.Attempt, bool, error) {
	key := s.key(userID, sessionID)
	started, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.NewStoreError("load attempt", err)
	}
	raw, err := s.client.LRange(ctx, s.answersKey(key), 0, -1).Result()
	if err != nil {
		return nil, false, domain.NewStoreError("load attempt answers", err)
	}

	attempt := app.NewAttempt(userID, sessionID, time.UnixMilli(started).UTC())
	for _, item := range raw {
		var answer domain.Answer
		if err := json.Unmarshal([]byte(item), &answer); err != nil {
			return nil, false, fmt.Errorf("decode attempt answer: %w", err)
		}
		attempt.Record(answer)
	}
	return attempt, true, nil
}

func (s *AttemptStore) key(userID, sessionID string) string {
	return "quest:attempt:" + userID + ":" + sessionID
}

func (s *AttemptStore) answersKey(key string) string {
	return key + ":answers"
}
