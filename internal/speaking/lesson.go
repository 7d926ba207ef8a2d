package speaking

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nclamvn/teacherAI/internal/feedback"
	"github.com/nclamvn/teacherAI/internal/observe"
	"github.com/nclamvn/teacherAI/internal/progress"
)

// ErrProgressUnavailable is returned by [Service.SavePhrase] when no
// progress store is configured.
var ErrProgressUnavailable = errors.New("speaking: progress storage not configured")

// ExerciseResult is a graded lesson exercise. TTSURL voices the correct
// answer when speech is configured.
type ExerciseResult struct {
	feedback.ExerciseResult
	TTSURL string `json:"tts_url"`
}

// CheckExercise grades a lesson exercise and explains the result with the
// active pipeline's feedback generator. Only an ungradable exercise fails;
// the explanation and the voiced answer degrade like attempt feedback.
func (s *Service) CheckExercise(ctx context.Context, ex feedback.Exercise) (*ExerciseResult, error) {
	ctx, span := observe.StartSpan(ctx, "speaking.CheckExercise")
	defer span.End()

	p := s.pipeline.Load()
	graded, err := p.Feedback.CheckExercise(ctx, ex)
	if err != nil {
		observe.FailSpan(span, err)
		return nil, err
	}
	s.metrics.RecordFeedback(ctx, string(graded.Source))

	res := &ExerciseResult{ExerciseResult: graded}
	if s.speaker != nil {
		res.TTSURL = s.speakOrLog(ctx, strings.Join(ex.CorrectAnswers, " "), p.VoiceEN, "en")
	}

	span.SetAttributes(
		attribute.String("exercise.type", string(ex.Type)),
		attribute.Bool("exercise.correct", graded.IsCorrect),
		observe.AttrFeedbackSource.String(string(graded.Source)),
	)
	return res, nil
}

// SavePhrase adds a phrase to the learner's bank and returns it as stored.
// A blank phrase fails with [progress.ErrInvalidPhrase].
func (s *Service) SavePhrase(ctx context.Context, p progress.Phrase) (progress.Phrase, error) {
	p, err := p.Normalize(s.now())
	if err != nil {
		return progress.Phrase{}, err
	}
	if s.progress == nil {
		return progress.Phrase{}, ErrProgressUnavailable
	}
	if err := s.progress.SavePhrase(ctx, p); err != nil {
		return progress.Phrase{}, err
	}
	return p, nil
}

// Phrases returns the learner's saved phrases, newest first, optionally
// limited to one topic.
func (s *Service) Phrases(ctx context.Context, userID, topic string, limit int) ([]progress.Phrase, error) {
	if s.progress == nil {
		return []progress.Phrase{}, nil
	}
	return s.progress.Phrases(ctx, userID, topic, limit)
}
