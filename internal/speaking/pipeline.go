package speaking

import (
	"fmt"
	"strings"

	"github.com/nclamvn/teacherAI/internal/feedback"
	"github.com/nclamvn/teacherAI/internal/mistake"
	"github.com/nclamvn/teacherAI/internal/scoring"
	"github.com/nclamvn/teacherAI/pkg/provider/tts"
)

// SecondarySignal selects what is blended with word accuracy into the
// overall score.
type SecondarySignal string

const (
	// SignalLLM uses the model's own 0-100 rating, falling back to word
	// accuracy when the model gave none.
	SignalLLM SecondarySignal = "llm"
	// SignalAccuracy reuses word accuracy, so the overall score equals it.
	SignalAccuracy SecondarySignal = "accuracy"
	// SignalSimilarity uses the alignment similarity ratio scaled to 0-100.
	SignalSimilarity SecondarySignal = "similarity"
)

// ParseSecondarySignal maps a config value to a SecondarySignal. Empty
// selects [SignalLLM].
func ParseSecondarySignal(s string) (SecondarySignal, error) {
	switch sig := SecondarySignal(strings.ToLower(strings.TrimSpace(s))); sig {
	case "":
		return SignalLLM, nil
	case SignalLLM, SignalAccuracy, SignalSimilarity:
		return sig, nil
	default:
		return "", fmt.Errorf("speaking: unknown secondary signal %q (want llm, accuracy or similarity)", s)
	}
}

// Default voices and weights.
const (
	DefaultLanguage        = "en"
	DefaultWordWeight      = 0.7
	DefaultSecondaryWeight = 0.3
)

// Pipeline bundles everything that turns a transcript into a result. It is
// immutable once handed to a [Service]; reconfiguration swaps in a new one.
type Pipeline struct {
	Scorer   *scoring.Scorer
	Analyzer *mistake.Analyzer
	Feedback *feedback.Generator

	IgnoreFillers   bool
	WordWeight      float64
	SecondaryWeight float64
	SecondarySignal SecondarySignal

	// Language is passed to the transcriber when a request sets none.
	Language string

	VoiceEN tts.Voice
	VoiceVI tts.Voice
}

// DefaultPipeline returns a Pipeline with the stock scorer and analyzer,
// rule-based feedback, fillers ignored, 0.7/0.3 weights blended with the
// model score, and the "nova"/"alloy" voices.
func DefaultPipeline() *Pipeline {
	return &Pipeline{
		Scorer:          scoring.New(),
		Analyzer:        mistake.NewAnalyzer(nil),
		Feedback:        feedback.NewGenerator(nil),
		IgnoreFillers:   true,
		WordWeight:      DefaultWordWeight,
		SecondaryWeight: DefaultSecondaryWeight,
		SecondarySignal: SignalLLM,
		Language:        DefaultLanguage,
		VoiceEN:         tts.Voice{ID: "nova", Language: "en"},
		VoiceVI:         tts.Voice{ID: "alloy", Language: "vi"},
	}
}

// withDefaults fills nil collaborators and empty fields from DefaultPipeline.
func (p *Pipeline) withDefaults() *Pipeline {
	d := DefaultPipeline()
	if p == nil {
		return d
	}
	out := *p
	if out.Scorer == nil {
		out.Scorer = d.Scorer
	}
	if out.Analyzer == nil {
		out.Analyzer = d.Analyzer
	}
	if out.Feedback == nil {
		out.Feedback = d.Feedback
	}
	if out.WordWeight == 0 && out.SecondaryWeight == 0 {
		out.WordWeight, out.SecondaryWeight = d.WordWeight, d.SecondaryWeight
	}
	if out.SecondarySignal == "" {
		out.SecondarySignal = d.SecondarySignal
	}
	if out.Language == "" {
		out.Language = d.Language
	}
	if out.VoiceEN.ID == "" {
		out.VoiceEN = d.VoiceEN
	}
	if out.VoiceVI.ID == "" {
		out.VoiceVI = d.VoiceVI
	}
	return &out
}

// secondary picks the secondary score for an attempt.
func (p *Pipeline) secondary(r *scoring.AccuracyReport, fb feedback.Feedback) float64 {
	switch p.SecondarySignal {
	case SignalSimilarity:
		return r.SimilarityRatio * 100
	case SignalLLM:
		if fb.Score != nil {
			return *fb.Score
		}
	}
	return r.Accuracy
}
