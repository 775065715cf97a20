package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"vocab-quest-service/internal/domain"
)

type completionRow struct {
	UserID      string `db:"user_id"`
	SessionID   string `db:"session_id"`
	CompletedAt int64  `db:"completed_at"`
}

func (r completionRow) completion() domain.SessionCompletion {
	return domain.SessionCompletion{UserID: r.UserID, SessionID: r.SessionID, CompletedAt: fromMicros(r.CompletedAt)}
}

type CompletionStore struct {
	db *sqlx.DB
}

func NewCompletionStore(db *sqlx.DB) *CompletionStore {
	return &CompletionStore{db: db}
}

func (s *CompletionStore) MarkCompleted(ctx context.Context, c domain.SessionCompletion) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO session_completions (user_id, session_id, completed_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id, session_id) DO NOTHING`, c.UserID, c.SessionID, toMicros(c.CompletedAt))
	if err != nil {
		return false, domain.NewStoreError("mark session completed", err)
	}
	return affectedOne(res)
}

func (s *CompletionStore) Get(ctx context.Context, userID, sessionID string) (domain.SessionCompletion, bool, error) {
	var row completionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, session_id, completed_at FROM session_completions
		WHERE user_id = ? AND session_id = ?`, userID, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionCompletion{}, false, nil
	}
	if err != nil {
		return domain.SessionCompletion{}, false, domain.NewStoreError("load session completion", err)
	}
	return row.completion(), true, nil
}

func (s *CompletionStore) ListByUser(ctx context.Context, userID string) ([]domain.SessionCompletion, error) {
	var rows []completionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT user_id, session_id, completed_at FROM session_completions
		WHERE user_id = ?
		ORDER BY completed_at`, userID)
	if err != nil {
		return nil, domain.NewStoreError("list session completions", err)
	}
	out := make([]domain.SessionCompletion, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.completion())
	}
	return out, nil
}

type ActivityRecorder struct {
	db *sqlx.DB
}

func NewActivityRecorder(db *sqlx.DB) *ActivityRecorder {
	return &ActivityRecorder{db: db}
}

func (r *ActivityRecorder) RecordActivity(ctx context.Context, userID string, kind domain.ActivityKind, date string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_activity (user_id, kind, activity_date) VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING`, userID, string(kind), date)
	if err != nil {
		return domain.NewStoreError("record activity", err)
	}
	return nil
}

// ActivityDates lists the dates on which the user was active for kind, oldest first.
func (r *ActivityRecorder) ActivityDates(ctx context.Context, userID string, kind domain.ActivityKind) ([]string, error) {
	var dates []string
	err := r.db.SelectContext(ctx, &dates, `
		SELECT activity_date FROM user_activity
		WHERE user_id = ? AND kind = ?
		ORDER BY activity_date`, userID, string(kind))
	if err != nil {
		return nil, domain.NewStoreError("list activity", err)
	}
	return dates, nil
}
