// Package mock provides an in-memory, call-recording progress.Store for
// tests.
package mock

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/nclamvn/teacherAI/internal/progress"
)

// Compile-time assertion that Store implements progress.Store.
var _ progress.Store = (*Store)(nil)

// Store keeps recorded attempts in memory and answers queries from them.
type Store struct {
	mu sync.Mutex

	// RecordErr, if non-nil, is returned by RecordAttempt and nothing is
	// stored.
	RecordErr error

	// QueryErr, if non-nil, is returned by WeakWords, Attempts and Phrases.
	QueryErr error

	// PingErr is returned by Ping.
	PingErr error

	// Recorded holds every successfully recorded attempt in call order.
	Recorded []progress.Attempt

	// RecordCalls counts RecordAttempt invocations, including failed ones.
	RecordCalls int

	// SaveErr, if non-nil, is returned by SavePhrase and nothing is saved.
	SaveErr error

	// Saved holds every successfully saved phrase, normalized, in call
	// order.
	Saved []progress.Phrase
}

// RecordAttempt implements progress.Store.
func (s *Store) RecordAttempt(_ context.Context, a progress.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RecordCalls++
	if s.RecordErr != nil {
		return s.RecordErr
	}
	s.Recorded = append(s.Recorded, a)
	return nil
}

// WeakWords implements progress.Store.
func (s *Store) WeakWords(_ context.Context, userID string, limit int) ([]progress.WeakWord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	return progress.AggregateWeakWords(s.forUser(userID), limit), nil
}

// Attempts implements progress.Store.
func (s *Store) Attempts(_ context.Context, userID string, limit int) ([]progress.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	out := s.forUser(userID)
	slices.Reverse(out)
	return out[:min(len(out), progress.ClampLimit(limit))], nil
}

// SavePhrase implements progress.Store.
func (s *Store) SavePhrase(_ context.Context, p progress.Phrase) error {
	p, err := p.Normalize(time.Now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Saved = append(s.Saved, p)
	return nil
}

// Phrases implements progress.Store.
func (s *Store) Phrases(_ context.Context, userID, topic string, limit int) ([]progress.Phrase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	var log []progress.Phrase
	for _, p := range s.Saved {
		if p.UserID == userID {
			log = append(log, p)
		}
	}
	return progress.LatestPhrases(log, topic, limit), nil
}

// Ping implements progress.Store.
func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PingErr
}

// Attempt returns the i-th recorded attempt.
func (s *Store) Attempt(i int) progress.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Recorded[i]
}

// Len returns the number of recorded attempts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Recorded)
}

func (s *Store) forUser(userID string) []progress.Attempt {
	out := []progress.Attempt{}
	for _, a := range s.Recorded {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}
