// Package sqlite is the single-file storage backend used for local runs and tests.
package sqlite

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS quest_sessions (
	id             TEXT PRIMARY KEY,
	session_number INTEGER NOT NULL UNIQUE,
	title          TEXT NOT NULL DEFAULT '',
	words          TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS word_states (
	user_id          TEXT NOT NULL,
	word_id          TEXT NOT NULL,
	repetitions      INTEGER NOT NULL DEFAULT 0,
	interval_days    INTEGER NOT NULL DEFAULT 1,
	ease_factor      REAL NOT NULL DEFAULT 2.5,
	due_at           INTEGER NOT NULL,
	last_reviewed_at INTEGER NOT NULL,
	lapses           INTEGER NOT NULL DEFAULT 0,
	version          INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (user_id, word_id)
);
CREATE INDEX IF NOT EXISTS word_states_due_idx ON word_states (user_id, due_at);
CREATE TABLE IF NOT EXISTS user_xp (
	user_id  TEXT PRIMARY KEY,
	xp_total INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS xp_credits (
	user_id         TEXT NOT NULL,
	idempotency_key TEXT NOT NULL,
	amount          INTEGER NOT NULL,
	PRIMARY KEY (user_id, idempotency_key)
);
CREATE TABLE IF NOT EXISTS session_completions (
	user_id      TEXT NOT NULL,
	session_id   TEXT NOT NULL,
	completed_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, session_id)
);
CREATE TABLE IF NOT EXISTS user_activity (
	user_id       TEXT NOT NULL,
	kind          TEXT NOT NULL,
	activity_date TEXT NOT NULL,
	PRIMARY KEY (user_id, kind, activity_date)
);
`

// Open connects to the database file at path and creates the schema.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

// Timestamps are stored as unix microseconds.
func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
