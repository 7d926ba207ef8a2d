package mistake

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const defaultSoundThreshold = 0.80

// SoundMatcher decides whether a spoken word is a near miss of the expected
// word. It combines Double Metaphone codes with Jaro-Winkler similarity and
// is read-only after construction.
type SoundMatcher struct {
	threshold float64
}

// MatcherOption configures a [SoundMatcher].
type MatcherOption func(*SoundMatcher)

// WithThreshold sets the minimum Jaro-Winkler similarity for two words
// without a shared phonetic code to count as a near miss. Words sharing a
// code need half of it. Default: 0.80.
func WithThreshold(threshold float64) MatcherOption {
	return func(m *SoundMatcher) {
		if threshold > 0 && threshold <= 1 {
			m.threshold = threshold
		}
	}
}

// NewSoundMatcher returns a SoundMatcher with the given options applied.
func NewSoundMatcher(opts ...MatcherOption) *SoundMatcher {
	m := &SoundMatcher{threshold: defaultSoundThreshold}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Similar reports whether spoken sounds like expected and returns the
// Jaro-Winkler similarity of the two words. Apostrophes are ignored so
// "dont" and "don't" compare equal.
func (m *SoundMatcher) Similar(expected, spoken string) (float64, bool) {
	e := strings.ReplaceAll(strings.ToLower(expected), "'", "")
	s := strings.ReplaceAll(strings.ToLower(spoken), "'", "")
	if e == "" || s == "" {
		return 0, false
	}
	if e == s {
		return 1, true
	}

	score := matchr.JaroWinkler(e, s, false)
	if codesOverlap(codes(e), codes(s)) {
		return score, score >= m.threshold/2
	}
	return score, score >= m.threshold
}

// codes returns the non-empty Double Metaphone codes of w.
func codes(w string) []string {
	p, s := matchr.DoubleMetaphone(w)
	out := make([]string, 0, 2)
	if p != "" {
		out = append(out, p)
	}
	if s != "" && s != p {
		out = append(out, s)
	}
	return out
}

func codesOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
