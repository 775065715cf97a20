package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"vocab-quest-service/internal/domain"
)

type sessionRow struct {
	ID     string `db:"id"`
	Number int    `db:"session_number"`
	Title  string `db:"title"`
	Words  string `db:"words"`
}

type CatalogLoader struct {
	db *sqlx.DB
}

func NewCatalogLoader(db *sqlx.DB) *CatalogLoader {
	return &CatalogLoader{db: db}
}

func (l *CatalogLoader) LoadSessions(ctx context.Context) ([]domain.QuestSession, error) {
	var rows []sessionRow
	if err := l.db.SelectContext(ctx, &rows, `SELECT id, session_number, title, words FROM quest_sessions ORDER BY session_number`); err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	sessions := make([]domain.QuestSession, 0, len(rows))
	for _, r := range rows {
		q := domain.QuestSession{ID: r.ID, Number: r.Number, Title: r.Title}
		if err := json.Unmarshal([]byte(r.Words), &q.Words); err != nil {
			return nil, fmt.Errorf("unmarshal words of session %s: %w", r.ID, err)
		}
		sessions = append(sessions, q)
	}
	return sessions, nil
}

// SaveSession inserts or replaces a catalog session.
func (l *CatalogLoader) SaveSession(ctx context.Context, q domain.QuestSession) error {
	words, err := json.Marshal(q.Words)
	if err != nil {
		return fmt.Errorf("marshal words: %w", err)
	}
	_, err = l.db.NamedExecContext(ctx, `
		INSERT INTO quest_sessions (id, session_number, title, words)
		VALUES (:id, :session_number, :title, :words)
		ON CONFLICT (id) DO UPDATE SET session_number = excluded.session_number, title = excluded.title, words = excluded.words`,
		sessionRow{ID: q.ID, Number: q.Number, Title: q.Title, Words: string(words)})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
