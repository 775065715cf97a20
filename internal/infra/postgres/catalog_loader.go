package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"vocab-quest-service/internal/domain"
)

// CatalogLoader loads quest sessions, with their JSONB word lists, from Postgres.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadSessions(ctx context.Context) ([]domain.QuestSession, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, session_number, title, words FROM quest_sessions ORDER BY session_number`)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.QuestSession
	for rows.Next() {
		var (
			q   domain.QuestSession
			raw []byte
		)
		if err := rows.Scan(&q.ID, &q.Number, &q.Title, &raw); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal(raw, &q.Words); err != nil {
			return nil, fmt.Errorf("unmarshal words of session %s: %w", q.ID, err)
		}
		sessions = append(sessions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	return sessions, nil
}

// SaveSession inserts or replaces a catalog session.
func (l *CatalogLoader) SaveSession(ctx context.Context, q domain.QuestSession) error {
	words, err := json.Marshal(q.Words)
	if err != nil {
		return fmt.Errorf("marshal words: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO quest_sessions (id, session_number, title, words)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (id) DO UPDATE SET session_number = EXCLUDED.session_number, title = EXCLUDED.title, words = EXCLUDED.words`,
		q.ID, q.Number, q.Title, string(words))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
