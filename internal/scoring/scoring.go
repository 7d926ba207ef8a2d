// Package scoring implements the speech-accuracy engine: it compares what a
// learner said against the text they were asked to read and turns the
// difference into a Word Error Rate, an accuracy percentage and, together
// with a secondary quality signal, a blended hybrid score.
//
// The engine is a chain of three pure steps:
//
//  1. [Normalizer] turns raw text into a comparable token sequence.
//  2. [Align] computes a minimal edit script between the reference and the
//     hypothesis tokens as a list of [Opcode] values.
//  3. [CountOpcodes], [WordErrorRate], [AccuracyPercent] and [HybridScore]
//     reduce the alignment to numbers.
//
// [Scorer.Score] runs the whole chain and returns an [AccuracyReport]. Nothing
// in this package performs I/O or keeps state between calls, so every
// function and every [Scorer] is safe for concurrent use.
//
// The only hard failure is a reference text that has no words after
// normalization; it is reported as [ErrInvalidInput]. An empty hypothesis
// (silence, unusable audio) is a regular outcome scored as 0% accuracy.
package scoring

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrInvalidInput is returned when the reference text normalizes to an empty
// token sequence. Word Error Rate is undefined without reference words.
var ErrInvalidInput = errors.New("scoring: invalid input")

// AccuracyReport is the outcome of scoring one utterance against its
// reference text.
//
// Matches+Substitutions+Deletions equals NumExpectedWords and
// Matches+Substitutions+Insertions equals NumSpokenWords whenever the report
// was produced with [ReplaceSplit] counting.
type AccuracyReport struct {
	ExpectedWords []string `json:"expected_words"`
	SpokenWords   []string `json:"spoken_words"`

	Matches       int `json:"matches"`
	Substitutions int `json:"substitutions"`
	Insertions    int `json:"insertions"`
	Deletions     int `json:"deletions"`

	// WER is the Word Error Rate rounded to three decimals. It is not
	// bounded above by 1.0.
	WER float64 `json:"wer"`

	// SimilarityRatio is 2*Matches/(NumExpectedWords+NumSpokenWords),
	// rounded to three decimals.
	SimilarityRatio float64 `json:"similarity_ratio"`

	NumExpectedWords int `json:"num_expected_words"`
	NumSpokenWords   int `json:"num_spoken_words"`

	// Accuracy is clamp(0, 100, (1-WER)*100) rounded to one decimal. It is
	// computed from the unrounded WER.
	Accuracy float64 `json:"accuracy"`

	// Opcodes is the alignment the counts were derived from.
	Opcodes []Opcode `json:"opcodes"`
}

// Counts returns the four alignment counters of the report.
func (r *AccuracyReport) Counts() Counts {
	return Counts{
		Matches:       r.Matches,
		Substitutions: r.Substitutions,
		Insertions:    r.Insertions,
		Deletions:     r.Deletions,
	}
}

// Option configures a [Scorer].
type Option func(*Scorer)

// WithNormalizer replaces the default [Normalizer].
func WithNormalizer(n *Normalizer) Option {
	return func(s *Scorer) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithReplaceCounting selects how replace spans are charged. Default:
// [ReplaceSplit].
func WithReplaceCounting(mode ReplaceCounting) Option {
	return func(s *Scorer) {
		s.counting = mode
	}
}

// Scorer runs normalization, alignment and scoring for a pair of texts. A
// Scorer is read-only after construction.
type Scorer struct {
	normalizer *Normalizer
	counting   ReplaceCounting
}

// New returns a Scorer using the default normalizer and split replace
// counting unless overridden by opts.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		normalizer: DefaultNormalizer(),
		counting:   ReplaceSplit,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Normalizer returns the normalizer the scorer applies to both texts.
func (s *Scorer) Normalizer() *Normalizer { return s.normalizer }

// Score normalizes expected and spoken (dropping filler words from both when
// ignoreFillers is set) and scores the spoken tokens against the expected
// ones.
func (s *Scorer) Score(expected, spoken string, ignoreFillers bool) (*AccuracyReport, error) {
	ref := s.normalizer.Normalize(expected, ignoreFillers)
	hyp := s.normalizer.Normalize(spoken, ignoreFillers)
	return s.ScoreTokens(ref, hyp)
}

// ScoreTokens scores already normalized token sequences.
func (s *Scorer) ScoreTokens(ref, hyp []string) (*AccuracyReport, error) {
	if len(ref) == 0 {
		return nil, fmt.Errorf("%w: expected text has no words after normalization", ErrInvalidInput)
	}

	if len(hyp) == 0 {
		slog.Warn("scoring: spoken text is empty after normalization", "expected_words", len(ref))
	}

	ops := Align(ref, hyp)
	c := CountOpcodes(ops, s.counting)

	wer, err := WordErrorRate(c, len(ref))
	if err != nil {
		return nil, err
	}

	report := &AccuracyReport{
		ExpectedWords:    ref,
		SpokenWords:      hyp,
		Matches:          c.Matches,
		Substitutions:    c.Substitutions,
		Insertions:       c.Insertions,
		Deletions:        c.Deletions,
		WER:              round(wer, 3),
		SimilarityRatio:  round(SimilarityRatio(c.Matches, len(ref), len(hyp)), 3),
		NumExpectedWords: len(ref),
		NumSpokenWords:   len(hyp),
		Accuracy:         AccuracyPercent(wer),
		Opcodes:          ops,
	}
	if report.SpokenWords == nil {
		report.SpokenWords = []string{}
	}

	slog.Debug("scoring: accuracy calculated",
		"accuracy", report.Accuracy,
		"wer", report.WER,
		"matches", c.Matches,
		"substitutions", c.Substitutions,
		"insertions", c.Insertions,
		"deletions", c.Deletions,
	)
	return report, nil
}

var defaultScorer = New()

// ScorePronunciation scores spoken against expected with the default
// [Scorer].
func ScorePronunciation(expected, spoken string, ignoreFillers bool) (*AccuracyReport, error) {
	return defaultScorer.Score(expected, spoken, ignoreFillers)
}
