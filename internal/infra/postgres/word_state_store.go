package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vocab-quest-service/internal/domain"
)

// maxUpsertAttempts bounds the compare-and-set loop under contention on one row.
const maxUpsertAttempts = 8

var errUpsertContention = errors.New("word state changed concurrently too many times")

// WordStateStore persists word states in Postgres. Updates are compare-and-set on a version column.
type WordStateStore struct {
	pool *pgxpool.Pool
}

func NewWordStateStore(pool *pgxpool.Pool) *WordStateStore {
	return &WordStateStore{pool: pool}
}

const wordStateColumns = `user_id, word_id, repetitions, interval_days, ease_factor, due_at, last_reviewed_at, lapses`

func (s *WordStateStore) Get(ctx context.Context, userID, wordID string) (domain.WordState, bool, error) {
	state, _, ok, err := s.load(ctx, userID, wordID)
	return state, ok, err
}

func (s *WordStateStore) Upsert(ctx context.Context, userID, wordID string, next func(prev *domain.WordState) domain.WordState) (domain.WordState, error) {
	for i := 0; i < maxUpsertAttempts; i++ {
		current, version, found, err := s.load(ctx, userID, wordID)
		if err != nil {
			return domain.WordState{}, err
		}
		var prev *domain.WordState
		if found {
			prev = &current
		}
		state := next(prev)
		state.UserID, state.WordID = userID, wordID

		var written bool
		if found {
			written, err = s.update(ctx, state, version)
		} else {
			written, err = s.insert(ctx, state)
		}
		if err != nil {
			return domain.WordState{}, err
		}
		if written {
			return state, nil
		}
	}
	return domain.WordState{}, domain.NewStoreError("upsert word state", errUpsertContention)
}

func (s *WordStateStore) Seed(ctx context.Context, state domain.WordState) (bool, error) {
	return s.insert(ctx, state)
}

func (s *WordStateStore) Due(ctx context.Context, userID string, now time.Time, limit int) ([]domain.WordState, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+wordStateColumns+`
		FROM word_states
		WHERE user_id = $1 AND due_at <= $2
		ORDER BY due_at, word_id
		LIMIT $3`, userID, now, limit)
	if err != nil {
		return nil, domain.NewStoreError("list due words", err)
	}
	defer rows.Close()

	var out []domain.WordState
	for rows.Next() {
		var st domain.WordState
		if err := rows.Scan(&st.UserID, &st.WordID, &st.Repetitions, &st.IntervalDays, &st.EaseFactor,
			&st.DueAt, &st.LastReviewedAt, &st.Lapses); err != nil {
			return nil, fmt.Errorf("scan word state: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("list due words", err)
	}
	return out, nil
}

func (s *WordStateStore) CountDue(ctx context.Context, userID string, now time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM word_states
		WHERE user_id = $1 AND due_at <= $2`, userID, now).Scan(&n)
	if err != nil {
		return 0, domain.NewStoreError("count due words", err)
	}
	return n, nil
}

func (s *WordStateStore) load(ctx context.Context, userID, wordID string) (domain.WordState, int64, bool, error) {
	var (
		st      domain.WordState
		version int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT `+wordStateColumns+`, version
		FROM word_states
		WHERE user_id = $1 AND word_id = $2`, userID, wordID).
		Scan(&st.UserID, &st.WordID, &st.Repetitions, &st.IntervalDays, &st.EaseFactor,
			&st.DueAt, &st.LastReviewedAt, &st.Lapses, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WordState{}, 0, false, nil
	}
	if err != nil {
		return domain.WordState{}, 0, false, domain.NewStoreError("load word state", err)
	}
	return st, version, true, nil
}

func (s *WordStateStore) insert(ctx context.Context, st domain.WordState) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO word_states (`+wordStateColumns+`, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
		ON CONFLICT (user_id, word_id) DO NOTHING`,
		st.UserID, st.WordID, st.Repetitions, st.IntervalDays, st.EaseFactor, st.DueAt, st.LastReviewedAt, st.Lapses)
	if err != nil {
		return false, domain.NewStoreError("insert word state", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *WordStateStore) update(ctx context.Context, st domain.WordState, version int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE word_states
		SET repetitions = $3, interval_days = $4, ease_factor = $5, due_at = $6, last_reviewed_at = $7,
		    lapses = $8, version = version + 1
		WHERE user_id = $1 AND word_id = $2 AND version = $9`,
		st.UserID, st.WordID, st.Repetitions, st.IntervalDays, st.EaseFactor, st.DueAt, st.LastReviewedAt, st.Lapses, version)
	if err != nil {
		return false, domain.NewStoreError("update word state", err)
	}
	return tag.RowsAffected() == 1, nil
}
