// Package mistake turns a scored alignment into word-level mistakes a
// learner can act on.
//
// Every reference word that was not matched becomes a [Mistake]. Substituted
// pairs are compared by sound: when the spoken word is a near miss of the
// expected one (shared Double Metaphone code or high Jaro-Winkler
// similarity) the mistake is classed as a mispronunciation rather than a
// plain substitution. Extra spoken words are reported as insertions.
package mistake

import (
	"github.com/nclamvn/teacherAI/internal/scoring"
)

// Kind classifies a mistake.
type Kind string

const (
	KindSubstitution     Kind = "substitution"
	KindMispronunciation Kind = "mispronunciation"
	KindDeletion         Kind = "deletion"
	KindInsertion        Kind = "insertion"
)

// Mistake is one word the learner got wrong.
type Mistake struct {
	// Expected is the reference word. Empty for insertions.
	Expected string `json:"expected,omitempty"`

	// Spoken is what was heard instead. Empty for deletions.
	Spoken string `json:"spoken,omitempty"`

	Kind Kind `json:"kind"`

	// Position is the index of Expected in the reference tokens. For
	// insertions it is the index of the reference word the extra word
	// precedes.
	Position int `json:"position"`

	// Similarity is the Jaro-Winkler similarity of a substituted pair.
	Similarity float64 `json:"similarity,omitempty"`
}

// Analyzer classifies the mistakes in an [scoring.AccuracyReport].
type Analyzer struct {
	sounds *SoundMatcher
}

// NewAnalyzer returns an Analyzer. A nil matcher selects the defaults.
func NewAnalyzer(sounds *SoundMatcher) *Analyzer {
	if sounds == nil {
		sounds = NewSoundMatcher()
	}
	return &Analyzer{sounds: sounds}
}

// Analyze lists the mistakes of r in reference order. Replace spans are
// paired word by word; the unpaired tail of the longer side becomes
// deletions or insertions.
func (a *Analyzer) Analyze(r *scoring.AccuracyReport) []Mistake {
	if r == nil {
		return nil
	}
	ref, hyp := r.ExpectedWords, r.SpokenWords

	var out []Mistake
	for _, op := range r.Opcodes {
		switch op.Kind {
		case scoring.OpDelete:
			for i := op.RefStart; i < op.RefEnd; i++ {
				out = append(out, Mistake{Expected: ref[i], Kind: KindDeletion, Position: i})
			}
		case scoring.OpInsert:
			for j := op.HypStart; j < op.HypEnd; j++ {
				out = append(out, Mistake{Spoken: hyp[j], Kind: KindInsertion, Position: op.RefStart})
			}
		case scoring.OpReplace:
			n := min(op.RefLen(), op.HypLen())
			for k := 0; k < n; k++ {
				out = append(out, a.pair(ref[op.RefStart+k], hyp[op.HypStart+k], op.RefStart+k))
			}
			for i := op.RefStart + n; i < op.RefEnd; i++ {
				out = append(out, Mistake{Expected: ref[i], Kind: KindDeletion, Position: i})
			}
			for j := op.HypStart + n; j < op.HypEnd; j++ {
				out = append(out, Mistake{Spoken: hyp[j], Kind: KindInsertion, Position: op.RefEnd})
			}
		}
	}
	return out
}

func (a *Analyzer) pair(expected, spoken string, pos int) Mistake {
	sim, near := a.sounds.Similar(expected, spoken)
	k := KindSubstitution
	if near {
		k = KindMispronunciation
	}
	return Mistake{Expected: expected, Spoken: spoken, Kind: k, Position: pos, Similarity: sim}
}

// Analyze classifies r with the default analyzer.
func Analyze(r *scoring.AccuracyReport) []Mistake {
	return defaultAnalyzer.Analyze(r)
}

var defaultAnalyzer = NewAnalyzer(nil)

var trickyRank = map[Kind]int{
	KindMispronunciation: 0,
	KindSubstitution:     1,
	KindDeletion:         2,
}

// TrickyWords returns up to n distinct expected words worth practising:
// mispronunciations first, then substitutions, then deletions, each group in
// reference order. Insertions carry no expected word and are skipped.
func TrickyWords(mistakes []Mistake, n int) []string {
	if n <= 0 {
		return nil
	}
	seen := make(map[string]struct{})
	out := make([]string, 0, n)
	for rank := 0; rank < len(trickyRank); rank++ {
		for _, m := range mistakes {
			r, ok := trickyRank[m.Kind]
			if !ok || r != rank || m.Expected == "" {
				continue
			}
			if _, dup := seen[m.Expected]; dup {
				continue
			}
			seen[m.Expected] = struct{}{}
			out = append(out, m.Expected)
			if len(out) == n {
				return out
			}
		}
	}
	return out
}
