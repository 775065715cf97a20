package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"vocab-quest-service/internal/domain"
)

const maxUpsertAttempts = 8

var errUpsertContention = errors.New("word state changed concurrently too many times")

type wordStateRow struct {
	UserID         string  `db:"user_id"`
	WordID         string  `db:"word_id"`
	Repetitions    int     `db:"repetitions"`
	IntervalDays   int     `db:"interval_days"`
	EaseFactor     float64 `db:"ease_factor"`
	DueAt          int64   `db:"due_at"`
	LastReviewedAt int64   `db:"last_reviewed_at"`
	Lapses         int     `db:"lapses"`
	Version        int64   `db:"version"`
}

func newWordStateRow(st domain.WordState) wordStateRow {
	return wordStateRow{
		UserID:         st.UserID,
		WordID:         st.WordID,
		Repetitions:    st.Repetitions,
		IntervalDays:   st.IntervalDays,
		EaseFactor:     st.EaseFactor,
		DueAt:          toMicros(st.DueAt),
		LastReviewedAt: toMicros(st.LastReviewedAt),
		Lapses:         st.Lapses,
	}
}

func (r wordStateRow) state() domain.WordState {
	return domain.WordState{
		UserID:         r.UserID,
		WordID:         r.WordID,
		Repetitions:    r.Repetitions,
		IntervalDays:   r.IntervalDays,
		EaseFactor:     r.EaseFactor,
		DueAt:          fromMicros(r.DueAt),
		LastReviewedAt: fromMicros(r.LastReviewedAt),
		Lapses:         r.Lapses,
	}
}

// WordStateStore keeps word states in SQLite with version-checked updates.
type WordStateStore struct {
	db *sqlx.DB
}

func NewWordStateStore(db *sqlx.DB) *WordStateStore {
	return &WordStateStore{db: db}
}

func (s *WordStateStore) Get(ctx context.Context, userID, wordID string) (domain.WordState, bool, error) {
	row, ok, err := s.load(ctx, userID, wordID)
	if err != nil || !ok {
		return domain.WordState{}, ok, err
	}
	return row.state(), true, nil
}

func (s *WordStateStore) Upsert(ctx context.Context, userID, wordID string, next func(prev *domain.WordState) domain.WordState) (domain.WordState, error) {
	for i := 0; i < maxUpsertAttempts; i++ {
		row, found, err := s.load(ctx, userID, wordID)
		if err != nil {
			return domain.WordState{}, err
		}
		var prev *domain.WordState
		if found {
			current := row.state()
			prev = &current
		}
		state := next(prev)
		state.UserID, state.WordID = userID, wordID

		var written bool
		if found {
			written, err = s.update(ctx, state, row.Version)
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
		limit = -1
	}
	var rows []wordStateRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM word_states
		WHERE user_id = ? AND due_at <= ?
		ORDER BY due_at, word_id
		LIMIT ?`, userID, toMicros(now), limit)
	if err != nil {
		return nil, domain.NewStoreError("list due words", err)
	}
	out := make([]domain.WordState, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.state())
	}
	return out, nil
}

func (s *WordStateStore) CountDue(ctx context.Context, userID string, now time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT count(*) FROM word_states
		WHERE user_id = ? AND due_at <= ?`, userID, toMicros(now))
	if err != nil {
		return 0, domain.NewStoreError("count due words", err)
	}
	return n, nil
}

func (s *WordStateStore) load(ctx context.Context, userID, wordID string) (wordStateRow, bool, error) {
	var row wordStateRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM word_states WHERE user_id = ? AND word_id = ?`, userID, wordID)
	if errors.Is(err, sql.ErrNoRows) {
		return wordStateRow{}, false, nil
	}
	if err != nil {
		return wordStateRow{}, false, domain.NewStoreError("load word state", err)
	}
	return row, true, nil
}

func (s *WordStateStore) insert(ctx context.Context, st domain.WordState) (bool, error) {
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO word_states (user_id, word_id, repetitions, interval_days, ease_factor, due_at, last_reviewed_at, lapses, version)
		VALUES (:user_id, :word_id, :repetitions, :interval_days, :ease_factor, :due_at, :last_reviewed_at, :lapses, 1)
		ON CONFLICT (user_id, word_id) DO NOTHING`, newWordStateRow(st))
	if err != nil {
		return false, domain.NewStoreError("insert word state", err)
	}
	return affectedOne(res)
}

func (s *WordStateStore) update(ctx context.Context, st domain.WordState, version int64) (bool, error) {
	row := newWordStateRow(st)
	row.Version = version
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE word_states
		SET repetitions = :repetitions, interval_days = :interval_days, ease_factor = :ease_factor,
		    due_at = :due_at, last_reviewed_at = :last_reviewed_at, lapses = :lapses, version = version + 1
		WHERE user_id = :user_id AND word_id = :word_id AND version = :version`, row)
	if err != nil {
		return false, domain.NewStoreError("update word state", err)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.NewStoreError("rows affected", err)
	}
	return n == 1, nil
}
