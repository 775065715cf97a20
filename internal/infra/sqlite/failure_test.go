package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocab-quest-service/internal/domain"
	"vocab-quest-service/internal/srs"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlite3"), mock
}

func TestLedgerCreditWrapsDriverErrors(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewLedger(db)

	mock.ExpectQuery("INSERT INTO user_xp").
		WithArgs("u1", 10).
		WillReturnError(errors.New("disk I/O error"))

	_, err := ledger.Credit(context.Background(), "u1", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "credit xp", storeErr.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerCreditOnceRollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewLedger(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO xp_credits").
		WithArgs("u1", "session:s-1", 50).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("INSERT INTO user_xp").
		WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	_, applied, err := ledger.CreditOnce(context.Background(), "u1", "session:s-1", 50)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWordStateUpsertGivesUpUnderContention(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewWordStateStore(db)
	columns := []string{"user_id", "word_id", "repetitions", "interval_days", "ease_factor", "due_at", "last_reviewed_at", "lapses", "version"}

	for i := 0; i < maxUpsertAttempts; i++ {
		mock.ExpectQuery("SELECT \\* FROM word_states").
			WithArgs("u1", "w1").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("u1", "w1", 1, 1, 2.6, toMicros(t0), toMicros(t0), 0, int64(i+1)))
		mock.ExpectExec("UPDATE word_states").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	_, err := store.Upsert(context.Background(), "u1", "w1", func(prev *domain.WordState) domain.WordState {
		return srs.Advance(prev, true, t0)
	})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, errUpsertContention)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletionGetWrapsDriverErrors(t *testing.T) {
	db, mock := newMockDB(t)
	completions := NewCompletionStore(db)

	mock.ExpectQuery("SELECT user_id, session_id, completed_at FROM session_completions").
		WillReturnError(errors.New("no such table: session_completions"))

	_, ok, err := completions.Get(context.Background(), "u1", "s-1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
