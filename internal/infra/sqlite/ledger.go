package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"vocab-quest-service/internal/domain"
)

type Ledger struct {
	db *sqlx.DB
}

func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

const creditSQL = `
	INSERT INTO user_xp (user_id, xp_total) VALUES (?, ?)
	ON CONFLICT (user_id) DO UPDATE SET xp_total = xp_total + excluded.xp_total
	RETURNING xp_total`

func (l *Ledger) Credit(ctx context.Context, userID string, amount int) (domain.XPBalance, error) {
	if err := domain.CheckCreditAmount(amount); err != nil {
		return domain.XPBalance{}, err
	}
	var total int64
	if err := l.db.GetContext(ctx, &total, creditSQL, userID, amount); err != nil {
		return domain.XPBalance{}, domain.NewStoreError("credit xp", err)
	}
	return domain.NewXPBalance(userID, total), nil
}

func (l *Ledger) CreditOnce(ctx context.Context, userID, key string, amount int) (domain.XPBalance, bool, error) {
	if err := domain.CheckCreditAmount(amount); err != nil {
		return domain.XPBalance{}, false, err
	}
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.XPBalance{}, false, domain.NewStoreError("begin credit", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO xp_credits (user_id, idempotency_key, amount) VALUES (?, ?, ?)
		ON CONFLICT (user_id, idempotency_key) DO NOTHING`, userID, key, amount)
	if err != nil {
		return domain.XPBalance{}, false, domain.NewStoreError("record xp credit", err)
	}
	applied, err := affectedOne(res)
	if err != nil {
		return domain.XPBalance{}, false, err
	}

	var total int64
	if applied {
		err = tx.GetContext(ctx, &total, creditSQL, userID, amount)
	} else {
		total, err = balance(ctx, tx, userID)
	}
	if err != nil {
		return domain.XPBalance{}, false, domain.NewStoreError("credit xp once", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.XPBalance{}, false, domain.NewStoreError("commit credit", err)
	}
	return domain.NewXPBalance(userID, total), applied, nil
}

func (l *Ledger) Balance(ctx context.Context, userID string) (domain.XPBalance, error) {
	total, err := balance(ctx, l.db, userID)
	if err != nil {
		return domain.XPBalance{}, domain.NewStoreError("load xp", err)
	}
	return domain.NewXPBalance(userID, total), nil
}

func (l *Ledger) Top(ctx context.Context, limit int) ([]domain.XPBalance, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []struct {
		UserID  string `db:"user_id"`
		XPTotal int64  `db:"xp_total"`
	}
	err := l.db.SelectContext(ctx, &rows, `
		SELECT user_id, xp_total FROM user_xp
		ORDER BY xp_total DESC, user_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, domain.NewStoreError("load leaderboard", err)
	}
	out := make([]domain.XPBalance, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.NewXPBalance(r.UserID, r.XPTotal))
	}
	return out, nil
}

func balance(ctx context.Context, q sqlx.QueryerContext, userID string) (int64, error) {
	var total int64
	err := sqlx.GetContext(ctx, q, &total, `SELECT xp_total FROM user_xp WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return total, err
}
