package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nclamvn/teacherAI/internal/mistake"
	"github.com/nclamvn/teacherAI/internal/progress"
)

// Compile-time interface check.
var _ progress.Store = (*Store)(nil)

// Store implements [progress.Store] on a [pgxpool.Pool]. All methods are
// safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, verifies the connection and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("progress postgres: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("progress postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("progress postgres: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("progress postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping implements [progress.Store].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("progress postgres: ping: %w", err)
	}
	return nil
}

// RecordAttempt implements [progress.Store]. The attempt row and the weak
// word upserts commit together.
func (s *Store) RecordAttempt(ctx context.Context, a progress.Attempt) error {
	mistakes := a.Mistakes
	if mistakes == nil {
		mistakes = []mistake.Mistake{}
	}
	raw, err := json.Marshal(mistakes)
	if err != nil {
		return fmt.Errorf("progress postgres: marshal mistakes: %w", err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	const insertAttempt = `
		INSERT INTO speaking_attempts
		    (id, user_id, expected_text, transcript, word_accuracy, overall_score, emotion_tag, mistakes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)`

	const upsertWeakWord = `
		INSERT INTO weak_words (user_id, word, error_type, error_count, last_practiced)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (user_id, word, error_type) DO UPDATE
		SET error_count    = weak_words.error_count + 1,
		    last_practiced = GREATEST(weak_words.last_practiced, EXCLUDED.last_practiced)`

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		batch.Queue(insertAttempt,
			a.ID,
			a.UserID,
			a.ExpectedText,
			a.Transcript,
			a.WordAccuracy,
			a.OverallScore,
			a.EmotionTag,
			string(raw),
			a.CreatedAt,
		)
		for _, we := range progress.Tally(a.Mistakes) {
			batch.Queue(upsertWeakWord, a.UserID, we.Word, string(we.ErrorType), a.CreatedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("progress postgres: record attempt: %w", err)
	}
	return nil
}

// WeakWords implements [progress.Store].
func (s *Store) WeakWords(ctx context.Context, userID string, limit int) ([]progress.WeakWord, error) {
	const q = `
		SELECT word, error_type, error_count, last_practiced
		FROM   weak_words
		WHERE  user_id = $1
		ORDER  BY error_count DESC, last_practiced DESC, word, error_type
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, userID, progress.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("progress postgres: weak words: %w", err)
	}
	words, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (progress.WeakWord, error) {
		var (
			w         progress.WeakWord
			errorType string
		)
		if err := row.Scan(&w.Word, &errorType, &w.ErrorCount, &w.LastPracticed); err != nil {
			return progress.WeakWord{}, err
		}
		w.ErrorType = progress.ErrorType(errorType)
		return w, nil
	})
	if err != nil {
		return nil, fmt.Errorf("progress postgres: scan weak words: %w", err)
	}
	if words == nil {
		words = []progress.WeakWord{}
	}
	return words, nil
}

// Attempts implements [progress.Store].
func (s *Store) Attempts(ctx context.Context, userID string, limit int) ([]progress.Attempt, error) {
	const q = `
		SELECT id, user_id, expected_text, transcript, word_accuracy, overall_score, emotion_tag, mistakes, created_at
		FROM   speaking_attempts
		WHERE  user_id = $1
		ORDER  BY created_at DESC, id
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, userID, progress.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("progress postgres: attempts: %w", err)
	}
	attempts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (progress.Attempt, error) {
		var (
			a   progress.Attempt
			raw []byte
		)
		if err := row.Scan(
			&a.ID,
			&a.UserID,
			&a.ExpectedText,
			&a.Transcript,
			&a.WordAccuracy,
			&a.OverallScore,
			&a.EmotionTag,
			&raw,
			&a.CreatedAt,
		); err != nil {
			return progress.Attempt{}, err
		}
		if err := json.Unmarshal(raw, &a.Mistakes); err != nil {
			return progress.Attempt{}, fmt.Errorf("decode mistakes of %s: %w", a.ID, err)
		}
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("progress postgres: scan attempts: %w", err)
	}
	if attempts == nil {
		attempts = []progress.Attempt{}
	}
	return attempts, nil
}

// SavePhrase implements [progress.Store].
func (s *Store) SavePhrase(ctx context.Context, p progress.Phrase) error {
	p, err := p.Normalize(time.Now())
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO saved_phrases (user_id, phrase, source, topic, saved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, phrase) DO UPDATE
		SET source   = EXCLUDED.source,
		    topic    = EXCLUDED.topic,
		    saved_at = EXCLUDED.saved_at`

	if _, err := s.pool.Exec(ctx, q, p.UserID, p.Text, p.Source, p.Topic, p.SavedAt); err != nil {
		return fmt.Errorf("progress postgres: save phrase: %w", err)
	}
	return nil
}

// Phrases implements [progress.Store]. Topics are stored lowercased.
func (s *Store) Phrases(ctx context.Context, userID, topic string, limit int) ([]progress.Phrase, error) {
	const q = `
		SELECT user_id, phrase, source, topic, saved_at
		FROM   saved_phrases
		WHERE  user_id = $1 AND ($2 = '' OR topic = $2)
		ORDER  BY saved_at DESC, phrase
		LIMIT  $3`

	topic = strings.ToLower(strings.TrimSpace(topic))
	rows, err := s.pool.Query(ctx, q, userID, topic, progress.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("progress postgres: phrases: %w", err)
	}
	phrases, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (progress.Phrase, error) {
		var p progress.Phrase
		err := row.Scan(&p.UserID, &p.Text, &p.Source, &p.Topic, &p.SavedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("progress postgres: scan phrases: %w", err)
	}
	if phrases == nil {
		phrases = []progress.Phrase{}
	}
	return phrases, nil
}
