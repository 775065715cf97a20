package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vocab-quest-service/internal/domain"
)

// CompletionStore persists session completions; (user_id, session_id) is the primary key.
type CompletionStore struct {
	pool *pgxpool.Pool
}

func NewCompletionStore(pool *pgxpool.Pool) *CompletionStore {
	return &CompletionStore{pool: pool}
}

func (s *CompletionStore) MarkCompleted(ctx context.Context, c domain.SessionCompletion) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO session_completions (user_id, session_id, completed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, session_id) DO NOTHING`, c.UserID, c.SessionID, c.CompletedAt)
	if err != nil {
		return false, domain.NewStoreError("mark session completed", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *CompletionStore) Get(ctx context.Context, userID, sessionID string) (domain.SessionCompletion, bool, error) {
	c := domain.SessionCompletion{UserID: userID, SessionID: sessionID}
	err := s.pool.QueryRow(ctx, `
		SELECT completed_at FROM session_completions
		WHERE user_id = $1 AND session_id = $2`, userID, sessionID).Scan(&c.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SessionCompletion{}, false, nil
	}
	if err != nil {
		return domain.SessionCompletion{}, false, domain.NewStoreError("load session completion", err)
	}
	return c, true, nil
}

func (s *CompletionStore) ListByUser(ctx context.Context, userID string) ([]domain.SessionCompletion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session_id, completed_at FROM session_completions
		WHERE user_id = $1
		ORDER BY completed_at`, userID)
	if err != nil {
		return nil, domain.NewStoreError("list session completions", err)
	}
	defer rows.Close()

	var out []domain.SessionCompletion
	for rows.Next() {
		c := domain.SessionCompletion{UserID: userID}
		if err := rows.Scan(&c.SessionID, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan session completion: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("list session completions", err)
	}
	return out, nil
}
