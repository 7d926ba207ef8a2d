package progress

import (
	"cmp"
	"slices"

	"github.com/nclamvn/teacherAI/internal/mistake"
)

// WordError is one weak word occurrence extracted from an attempt.
type WordError struct {
	Word      string
	ErrorType ErrorType
}

// Tally extracts the weak word occurrences from ms. Insertions are skipped
// since they carry no expected word; repeated (word, type) pairs within one
// attempt count once.
func Tally(ms []mistake.Mistake) []WordError {
	seen := make(map[WordError]struct{}, len(ms))
	var out []WordError
	for _, m := range ms {
		var t ErrorType
		switch m.Kind {
		case mistake.KindSubstitution:
			t = ErrorSubstitution
		case mistake.KindDeletion:
			t = ErrorDeletion
		case mistake.KindMispronunciation:
			t = ErrorMispronunciation
		default:
			continue
		}
		if m.Expected == "" {
			continue
		}
		we := WordError{Word: m.Expected, ErrorType: t}
		if _, dup := seen[we]; dup {
			continue
		}
		seen[we] = struct{}{}
		out = append(out, we)
	}
	return out
}

// AggregateWeakWords folds attempts into weak word counters and returns at
// most limit of them in [Store.WeakWords] order.
func AggregateWeakWords(attempts []Attempt, limit int) []WeakWord {
	byKey := make(map[WordError]*WeakWord)
	for _, a := range attempts {
		for _, we := range Tally(a.Mistakes) {
			w, ok := byKey[we]
			if !ok {
				w = &WeakWord{Word: we.Word, ErrorType: we.ErrorType}
				byKey[we] = w
			}
			w.ErrorCount++
			if a.CreatedAt.After(w.LastPracticed) {
				w.LastPracticed = a.CreatedAt
			}
		}
	}

	out := make([]WeakWord, 0, len(byKey))
	for _, w := range byKey {
		out = append(out, *w)
	}
	SortWeakWords(out)
	return out[:min(len(out), ClampLimit(limit))]
}

// SortWeakWords orders words by error count (descending), then most recent
// practice, then word and type for a stable result.
func SortWeakWords(ws []WeakWord) {
	slices.SortFunc(ws, func(a, b WeakWord) int {
		if c := cmp.Compare(b.ErrorCount, a.ErrorCount); c != 0 {
			return c
		}
		if c := b.LastPracticed.Compare(a.LastPracticed); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Word, b.Word); c != 0 {
			return c
		}
		return cmp.Compare(a.ErrorType, b.ErrorType)
	})
}
