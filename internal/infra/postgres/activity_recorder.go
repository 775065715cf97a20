package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"vocab-quest-service/internal/domain"
)

// ActivityRecorder stores one user_activity row per (user, kind, date).
type ActivityRecorder struct {
	pool *pgxpool.Pool
}

func NewActivityRecorder(pool *pgxpool.Pool) *ActivityRecorder {
	return &ActivityRecorder{pool: pool}
}

func (r *ActivityRecorder) RecordActivity(ctx context.Context, userID string, kind domain.ActivityKind, date string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_activity (user_id, kind, activity_date)
		VALUES ($1, $2, $3::date)
		ON CONFLICT DO NOTHING`, userID, string(kind), date)
	if err != nil {
		return domain.NewStoreError("record activity", err)
	}
	return nil
}
