package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vocab-quest-service/internal/domain"
)

// Ledger stores XP totals in user_xp. Every credit is a single INSERT ... ON CONFLICT increment.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

const creditSQL = `
	INSERT INTO user_xp (user_id, xp_total, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (user_id) DO UPDATE SET xp_total = user_xp.xp_total + EXCLUDED.xp_total, updated_at = now()
	RETURNING xp_total`

func (l *Ledger) Credit(ctx context.Context, userID string, amount int) (domain.XPBalance, error) {
	if err := domain.CheckCreditAmount(amount); err != nil {
		return domain.XPBalance{}, err
	}
	total, err := credit(ctx, l.pool, userID, amount)
	if err != nil {
		return domain.XPBalance{}, domain.NewStoreError("credit xp", err)
	}
	return domain.NewXPBalance(userID, total), nil
}

// CreditOnce records the idempotency key and the increment in one transaction.
func (l *Ledger) CreditOnce(ctx context.Context, userID, key string, amount int) (domain.XPBalance, bool, error) {
	if err := domain.CheckCreditAmount(amount); err != nil {
		return domain.XPBalance{}, false, err
	}
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return domain.XPBalance{}, false, domain.NewStoreError("begin credit", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO xp_credits (user_id, idempotency_key, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, idempotency_key) DO NOTHING`, userID, key, amount)
	if err != nil {
		return domain.XPBalance{}, false, domain.NewStoreError("record xp credit", err)
	}
	applied := tag.RowsAffected() == 1

	var total int64
	if applied {
		total, err = credit(ctx, tx, userID, amount)
	} else {
		total, err = balance(ctx, tx, userID)
	}
	if err != nil {
		return domain.XPBalance{}, false, domain.NewStoreError("credit xp once", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.XPBalance{}, false, domain.NewStoreError("commit credit", err)
	}
	return domain.NewXPBalance(userID, total), applied, nil
}

func (l *Ledger) Balance(ctx context.Context, userID string) (domain.XPBalance, error) {
	total, err := balance(ctx, l.pool, userID)
	if err != nil {
		return domain.XPBalance{}, domain.NewStoreError("load xp", err)
	}
	return domain.NewXPBalance(userID, total), nil
}

func (l *Ledger) Top(ctx context.Context, limit int) ([]domain.XPBalance, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := l.pool.Query(ctx, `
		SELECT user_id, xp_total FROM user_xp
		ORDER BY xp_total DESC, user_id
		LIMIT $1`, limit)
	if err != nil {
		return nil, domain.NewStoreError("load leaderboard", err)
	}
	defer rows.Close()

	var out []domain.XPBalance
	for rows.Next() {
		var (
			userID string
			total  int64
		)
		if err := rows.Scan(&userID, &total); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		out = append(out, domain.NewXPBalance(userID, total))
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("load leaderboard", err)
	}
	return out, nil
}

func credit(ctx context.Context, q rowQuerier, userID string, amount int) (int64, error) {
	var total int64
	err := q.QueryRow(ctx, creditSQL, userID, amount).Scan(&total)
	return total, err
}

func balance(ctx context.Context, q rowQuerier, userID string) (int64, error) {
	var total int64
	err := q.QueryRow(ctx, `SELECT xp_total FROM user_xp WHERE user_id = $1`, userID).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return total, err
}
