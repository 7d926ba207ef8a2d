package progress

import (
	"slices"
	"strings"
)

// LatestPhrases answers a [Store.Phrases] query over a save log in write
// order. Later saves of the same text replace earlier ones; the result is
// filtered by topic when one is given, sorted newest first and clamped to
// limit.
func LatestPhrases(log []Phrase, topic string, limit int) []Phrase {
	topic = strings.TrimSpace(topic)

	latest := make(map[string]int, len(log))
	out := []Phrase{}
	for _, p := range log {
		if i, ok := latest[p.Text]; ok {
			out[i] = p
			continue
		}
		latest[p.Text] = len(out)
		out = append(out, p)
	}

	if topic != "" {
		out = slices.DeleteFunc(out, func(p Phrase) bool {
			return !strings.EqualFold(p.Topic, topic)
		})
	}
	slices.SortStableFunc(out, func(a, b Phrase) int {
		if c := b.SavedAt.Compare(a.SavedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Text, b.Text)
	})
	return out[:min(len(out), ClampLimit(limit))]
}
