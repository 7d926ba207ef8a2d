// Package postgres provides a PostgreSQL-backed [progress.Store].
//
// Attempts live in speaking_attempts with their mistakes as JSONB; weak word
// counters live in weak_words and are upserted in the same transaction as
// the attempt. The phrase bank is saved_phrases, one row per user and
// phrase. [Migrate] creates every table idempotently.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlAttempts = `
CREATE TABLE IF NOT EXISTS speaking_attempts (
    id             TEXT              PRIMARY KEY,
    user_id        TEXT              NOT NULL,
    expected_text  TEXT              NOT NULL,
    transcript     TEXT              NOT NULL DEFAULT '',
    word_accuracy  DOUBLE PRECISION  NOT NULL,
    overall_score  DOUBLE PRECISION  NOT NULL,
    emotion_tag    TEXT              NOT NULL DEFAULT '',
    mistakes       JSONB             NOT NULL DEFAULT '[]',
    created_at     TIMESTAMPTZ       NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_speaking_attempts_user_created
    ON speaking_attempts (user_id, created_at DESC);
`

const ddlWeakWords = `
CREATE TABLE IF NOT EXISTS weak_words (
    user_id         TEXT         NOT NULL,
    word            TEXT         NOT NULL,
    error_type      TEXT         NOT NULL,
    error_count     INTEGER      NOT NULL DEFAULT 0,
    last_practiced  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, word, error_type)
);

CREATE INDEX IF NOT EXISTS idx_weak_words_user_count
    ON weak_words (user_id, error_count DESC, last_practiced DESC);
`

const ddlPhrases = `
CREATE TABLE IF NOT EXISTS saved_phrases (
    user_id   TEXT         NOT NULL,
    phrase    TEXT         NOT NULL,
    source    TEXT         NOT NULL DEFAULT '',
    topic     TEXT         NOT NULL,
    saved_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, phrase)
);

CREATE INDEX IF NOT EXISTS idx_saved_phrases_user_topic
    ON saved_phrases (user_id, topic, saved_at DESC);
`

// Migrate creates the progress tables and indexes when they do not exist.
// It is safe to run on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []struct {
		name string
		ddl  string
	}{
		{"speaking_attempts", ddlAttempts},
		{"weak_words", ddlWeakWords},
		{"saved_phrases", ddlPhrases},
	} {
		if _, err := pool.Exec(ctx, stmt.ddl); err != nil {
			return fmt.Errorf("migrate %s: %w", stmt.name, err)
		}
	}
	return nil
}
