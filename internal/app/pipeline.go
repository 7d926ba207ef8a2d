package app

import (
	"fmt"

	"github.com/nclamvn/teacherAI/internal/config"
	"github.com/nclamvn/teacherAI/internal/feedback"
	"github.com/nclamvn/teacherAI/internal/mistake"
	"github.com/nclamvn/teacherAI/internal/scoring"
	"github.com/nclamvn/teacherAI/internal/speaking"
	"github.com/nclamvn/teacherAI/pkg/provider/llm"
	"github.com/nclamvn/teacherAI/pkg/provider/tts"
)

// BuildPipeline assembles a scoring pipeline from the scoring and feedback
// sections of cfg. gen may be nil, in which case feedback is rule-based.
func BuildPipeline(cfg *config.Config, gen llm.TextGenerator) (*speaking.Pipeline, error) {
	sc, fc := cfg.Scoring, cfg.Feedback

	var normOpts []scoring.NormalizerOption
	if len(sc.Fillers) > 0 {
		normOpts = append(normOpts, scoring.WithFillers(sc.Fillers...))
	}
	if len(sc.FillerPhrases) > 0 {
		normOpts = append(normOpts, scoring.WithFillerPhrases(sc.FillerPhrases...))
	}
	rc, err := scoring.ParseReplaceCounting(sc.ReplaceCounting)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	signal, err := speaking.ParseSecondarySignal(sc.SecondarySignal)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	var matcherOpts []mistake.MatcherOption
	if fc.MispronunciationThreshold > 0 {
		matcherOpts = append(matcherOpts, mistake.WithThreshold(fc.MispronunciationThreshold))
	}

	var fbOpts []feedback.Option
	if fc.Temperature > 0 {
		fbOpts = append(fbOpts, feedback.WithTemperature(fc.Temperature))
	}
	if fc.MaxTokens > 0 {
		fbOpts = append(fbOpts, feedback.WithMaxTokens(fc.MaxTokens))
	}
	if fc.TrickyWords > 0 {
		fbOpts = append(fbOpts, feedback.WithTrickyWords(fc.TrickyWords))
	}

	return &speaking.Pipeline{
		Scorer: scoring.New(
			scoring.WithNormalizer(scoring.NewNormalizer(normOpts...)),
			scoring.WithReplaceCounting(rc),
		),
		Analyzer:        mistake.NewAnalyzer(mistake.NewSoundMatcher(matcherOpts...)),
		Feedback:        feedback.NewGenerator(gen, fbOpts...),
		IgnoreFillers:   sc.IgnoreFillersOrDefault(),
		WordWeight:      sc.WordWeight,
		SecondaryWeight: sc.SecondaryWeight,
		SecondarySignal: signal,
		Language:        fc.Language,
		VoiceEN:         tts.Voice{ID: fc.VoiceEN, Language: "en", Speed: fc.VoiceSpeed},
		VoiceVI:         tts.Voice{ID: fc.VoiceVI, Language: "vi", Speed: fc.VoiceSpeed},
	}, nil
}
