package app

import (
	"context"
	"time"

	"vocab-quest-service/internal/domain"
)

// WordStateStore persists one schedule per (user, word).
type WordStateStore interface {
	Get(ctx context.Context, userID, wordID string) (domain.WordState, bool, error)
	// Upsert atomically replaces the state with next(prev); prev is nil on first exposure.
	// Concurrent writers never lose an update.
	Upsert(ctx context.Context, userID, wordID string, next func(prev *domain.WordState) domain.WordState) (domain.WordState, error)
	// Seed inserts state only when the user has no state for the word yet.
	Seed(ctx context.Context, state domain.WordState) (bool, error)
	// Due lists the user's words due at now, earliest first.
	Due(ctx context.Context, userID string, now time.Time, limit int) ([]domain.WordState, error)
	// CountDue is the number of words Due would list without a limit.
	CountDue(ctx context.Context, userID string, now time.Time) (int, error)
}

// XPLedger is the per-user XP counter.
type XPLedger interface {
	Credit(ctx context.Context, userID string, amount int) (domain.XPBalance, error)
	// CreditOnce applies amount only the first time key is seen for the user.
	CreditOnce(ctx context.Context, userID, key string, amount int) (domain.XPBalance, bool, error)
	Balance(ctx context.Context, userID string) (domain.XPBalance, error)
	Top(ctx context.Context, limit int) ([]domain.XPBalance, error)
}

// CompletionStore records finished sessions; the row doubles as the merge and gate fence.
type CompletionStore interface {
	MarkCompleted(ctx context.Context, c domain.SessionCompletion) (bool, error)
	Get(ctx context.Context, userID, sessionID string) (domain.SessionCompletion, bool, error)
	ListByUser(ctx context.Context, userID string) ([]domain.SessionCompletion, error)
}

// ActivityRecorder receives "user was active on date" events for streak tracking.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, userID string, kind domain.ActivityKind, date string) error
}

// SessionCatalog resolves quest sessions.
type SessionCatalog interface {
	SessionByNumber(ctx context.Context, number int) (domain.QuestSession, error)
	Session(ctx context.Context, sessionID string) (domain.QuestSession, error)
	Sessions(ctx context.Context) ([]domain.QuestSession, error)
}

// AttemptRepository abstracts where in-progress attempts live (in-memory, Redis mirror).
type AttemptRepository interface {
	GetOrCreate(ctx context.Context, userID, sessionID string) (*Attempt, error)
	Get(ctx context.Context, userID, sessionID string) (*Attempt, bool, error)
	// Record appends to the attempt's log; the in-process log must be updated even when an error
	// is returned.
	Record(ctx context.Context, attempt *Attempt, answer domain.Answer) error
	Delete(ctx context.Context, userID, sessionID string) error
}
