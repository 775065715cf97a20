// Package testutil provides testify mocks of the quest service ports.
package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"vocab-quest-service/internal/domain"
)

// NewTestLogger returns a no-op logger.
func NewTestLogger() *zap.Logger {
	return zap.NewNop()
}

type MockWordStateStore struct {
	mock.Mock
}

func (m *MockWordStateStore) Get(ctx context.Context, userID, wordID string) (domain.WordState, bool, error) {
	args := m.Called(ctx, userID, wordID)
	return args.Get(0).(domain.WordState), args.Bool(1), args.Error(2)
}

func (m *MockWordStateStore) Upsert(ctx context.Context, userID, wordID string, next func(prev *domain.WordState) domain.WordState) (domain.WordState, error) {
	args := m.Called(ctx, userID, wordID, next)
	if args.Error(1) != nil {
		return domain.WordState{}, args.Error(1)
	}
	if args.Get(0) == nil {
		return next(nil), nil
	}
	return args.Get(0).(domain.WordState), nil
}

func (m *MockWordStateStore) Seed(ctx context.Context, state domain.WordState) (bool, error) {
	args := m.Called(ctx, state)
	return args.Bool(0), args.Error(1)
}

func (m *MockWordStateStore) Due(ctx context.Context, userID string, now time.Time, limit int) ([]domain.WordState, error) {
	args := m.Called(ctx, userID, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WordState), args.Error(1)
}

func (m *MockWordStateStore) CountDue(ctx context.Context, userID string, now time.Time) (int, error) {
	args := m.Called(ctx, userID, now)
	return args.Int(0), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Credit(ctx context.Context, userID string, amount int) (domain.XPBalance, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(domain.XPBalance), args.Error(1)
}

func (m *MockLedger) CreditOnce(ctx context.Context, userID, key string, amount int) (domain.XPBalance, bool, error) {
	args := m.Called(ctx, userID, key, amount)
	return args.Get(0).(domain.XPBalance), args.Bool(1), args.Error(2)
}

func (m *MockLedger) Balance(ctx context.Context, userID string) (domain.XPBalance, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.XPBalance), args.Error(1)
}

func (m *MockLedger) Top(ctx context.Context, limit int) ([]domain.XPBalance, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.XPBalance), args.Error(1)
}

type MockCompletionStore struct {
	mock.Mock
}

func (m *MockCompletionStore) MarkCompleted(ctx context.Context, c domain.SessionCompletion) (bool, error) {
	args := m.Called(ctx, c)
	return args.Bool(0), args.Error(1)
}

func (m *MockCompletionStore) Get(ctx context.Context, userID, sessionID string) (domain.SessionCompletion, bool, error) {
	args := m.Called(ctx, userID, sessionID)
	return args.Get(0).(domain.SessionCompletion), args.Bool(1), args.Error(2)
}

func (m *MockCompletionStore) ListByUser(ctx context.Context, userID string) ([]domain.SessionCompletion, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SessionCompletion), args.Error(1)
}

type MockActivityRecorder struct {
	mock.Mock
}

func (m *MockActivityRecorder) RecordActivity(ctx context.Context, userID string, kind domain.ActivityKind, date string) error {
	args := m.Called(ctx, userID, kind, date)
	return args.Error(0)
}
