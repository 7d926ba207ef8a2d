// Package progress records a learner's practice history: every scored
// attempt, the words they keep getting wrong and the phrases they saved.
//
// [Store] is the storage-agnostic interface. Two implementations exist:
// [github.com/nclamvn/teacherAI/internal/progress/postgres] for production
// and [github.com/nclamvn/teacherAI/internal/progress/filestore], an
// append-only JSON lines file for single-node deployments and local
// development.
package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nclamvn/teacherAI/internal/mistake"
)

// DefaultLimit is applied when a caller passes a non-positive limit.
const DefaultLimit = 10

// MaxLimit caps every listing.
const MaxLimit = 100

// Store persists attempts and aggregates weak words per user.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// RecordAttempt stores a and folds its mistakes into the user's weak
	// word counters.
	RecordAttempt(ctx context.Context, a Attempt) error

	// WeakWords returns the user's most frequently missed words, highest
	// error count first, ties broken by most recent practice.
	WeakWords(ctx context.Context, userID string, limit int) ([]WeakWord, error)

	// Attempts returns the user's attempts, newest first.
	Attempts(ctx context.Context, userID string, limit int) ([]Attempt, error)

	// SavePhrase adds p to the user's phrase bank. Saving a phrase the user
	// already has replaces its source, topic and time.
	SavePhrase(ctx context.Context, p Phrase) error

	// Phrases returns the user's saved phrases, newest first. A non-empty
	// topic keeps only phrases of that topic, compared case-insensitively.
	Phrases(ctx context.Context, userID, topic string, limit int) ([]Phrase, error)

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}

// Attempt is one scored practice attempt.
type Attempt struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	ExpectedText string            `json:"expected_text"`
	Transcript   string            `json:"transcript"`
	WordAccuracy float64           `json:"word_accuracy"`
	OverallScore float64           `json:"overall_score"`
	EmotionTag   string            `json:"emotion_tag"`
	Mistakes     []mistake.Mistake `json:"mistakes"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ErrorType is the weak word category.
type ErrorType string

const (
	ErrorSubstitution     ErrorType = "substitution"
	ErrorDeletion         ErrorType = "deletion"
	ErrorMispronunciation ErrorType = "mispronunciation"
)

// WeakWord counts how often a user got one word wrong in one way.
type WeakWord struct {
	Word          string    `json:"word"`
	ErrorType     ErrorType `json:"error_type"`
	ErrorCount    int       `json:"error_count"`
	LastPracticed time.Time `json:"last_practiced"`
}

// DefaultTopic files phrases saved without a topic.
const DefaultTopic = "general"

// ErrInvalidPhrase is returned when a phrase cannot be saved.
var ErrInvalidPhrase = errors.New("progress: invalid phrase")

// Phrase is an expression a learner saved to their phrase bank.
type Phrase struct {
	UserID  string    `json:"user_id"`
	Text    string    `json:"phrase"`
	Source  string    `json:"source"`
	Topic   string    `json:"topic"`
	SavedAt time.Time `json:"saved_at"`
}

// Normalize trims p, files it under [DefaultTopic] when it has no topic and
// stamps it with now when it has no time. It fails with [ErrInvalidPhrase]
// when the user or the phrase text is blank.
func (p Phrase) Normalize(now time.Time) (Phrase, error) {
	p.UserID = strings.TrimSpace(p.UserID)
	p.Text = strings.TrimSpace(p.Text)
	p.Source = strings.TrimSpace(p.Source)
	p.Topic = strings.ToLower(strings.TrimSpace(p.Topic))
	switch {
	case p.UserID == "":
		return Phrase{}, fmt.Errorf("%w: user is required", ErrInvalidPhrase)
	case p.Text == "":
		return Phrase{}, fmt.Errorf("%w: phrase cannot be empty", ErrInvalidPhrase)
	}
	if p.Topic == "" {
		p.Topic = DefaultTopic
	}
	if p.SavedAt.IsZero() {
		p.SavedAt = now
	}
	p.SavedAt = p.SavedAt.UTC()
	return p, nil
}

// ClampLimit maps a caller-supplied limit into [1, MaxLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
