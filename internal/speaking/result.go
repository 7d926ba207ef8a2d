package speaking

import (
	"github.com/nclamvn/teacherAI/internal/feedback"
	"github.com/nclamvn/teacherAI/internal/mistake"
	"github.com/nclamvn/teacherAI/internal/scoring"
	"github.com/nclamvn/teacherAI/pkg/provider/stt"
)

// ReadAloudRequest is one recorded attempt at reading ExpectedText.
type ReadAloudRequest struct {
	Audio        stt.Audio
	ExpectedText string

	// UserID identifies the learner for progress tracking. Anonymous
	// attempts are scored but not recorded.
	UserID string

	// Language overrides the pipeline's transcription language.
	Language string

	// IgnoreFillers overrides the pipeline default when non-nil.
	IgnoreFillers *bool
}

// ScoreTextRequest scores typed (or externally transcribed) speech.
type ScoreTextRequest struct {
	ExpectedText  string `json:"expected_text"`
	SpokenText    string `json:"spoken_text"`
	UserID        string `json:"user_id,omitempty"`
	IgnoreFillers *bool  `json:"ignore_fillers,omitempty"`
}

// AccuracyDetails is the scoring breakdown of an attempt.
type AccuracyDetails struct {
	WordAccuracy    float64  `json:"word_accuracy"`
	WER             float64  `json:"wer"`
	SimilarityRatio float64  `json:"similarity_ratio"`
	Matches         int      `json:"matches"`
	Substitutions   int      `json:"substitutions"`
	Insertions      int      `json:"insertions"`
	Deletions       int      `json:"deletions"`
	ExpectedWords   []string `json:"expected_words"`
	SpokenWords     []string `json:"spoken_words"`
}

func detailsOf(r *scoring.AccuracyReport) AccuracyDetails {
	return AccuracyDetails{
		WordAccuracy:    r.Accuracy,
		WER:             r.WER,
		SimilarityRatio: r.SimilarityRatio,
		Matches:         r.Matches,
		Substitutions:   r.Substitutions,
		Insertions:      r.Insertions,
		Deletions:       r.Deletions,
		ExpectedWords:   r.ExpectedWords,
		SpokenWords:     r.SpokenWords,
	}
}

// ReadAloudResult is everything the client shows after an attempt.
type ReadAloudResult struct {
	AttemptID    string  `json:"attempt_id"`
	Transcript   string  `json:"transcript"`
	ExpectedText string  `json:"expected_text"`
	WordAccuracy float64 `json:"word_accuracy"`

	// AIFeedback is FeedbackEN and FeedbackVI joined by a space.
	AIFeedback string `json:"ai_feedback"`

	OverallScore    float64          `json:"overall_score"`
	SecondaryScore  float64          `json:"secondary_score"`
	SecondarySignal SecondarySignal  `json:"secondary_signal"`
	EmotionTag      feedback.Emotion `json:"emotion_tag"`
	AccuracyDetails AccuracyDetails  `json:"accuracy_details"`
	Summary         string           `json:"summary"`

	FeedbackEN     string          `json:"feedback_en"`
	FeedbackVI     string          `json:"feedback_vi"`
	FeedbackSource feedback.Source `json:"feedback_source"`

	// TTS URLs are empty when synthesis was skipped or failed.
	TTSEnURL string `json:"tts_en_url"`
	TTSViURL string `json:"tts_vi_url"`
	TTSURL   string `json:"tts_url"`

	TrickyWords []string          `json:"tricky_words"`
	Mistakes    []mistake.Mistake `json:"mistakes"`
}
