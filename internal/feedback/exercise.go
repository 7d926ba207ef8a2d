package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nclamvn/teacherAI/pkg/provider/llm"
)

// ErrInvalidExercise is returned for exercises that cannot be graded.
var ErrInvalidExercise = errors.New("feedback: invalid exercise")

// ExerciseType is the kind of lesson exercise being checked.
type ExerciseType string

const (
	ExerciseMultipleChoice ExerciseType = "multiple_choice"
	ExerciseFillBlank      ExerciseType = "fill_blank"
	ExerciseReorder        ExerciseType = "reorder"
)

// ParseExerciseType maps a request value to an ExerciseType. The empty
// string selects [ExerciseMultipleChoice].
func ParseExerciseType(s string) (ExerciseType, error) {
	switch t := ExerciseType(strings.TrimSpace(s)); t {
	case "":
		return ExerciseMultipleChoice, nil
	case ExerciseMultipleChoice, ExerciseFillBlank, ExerciseReorder:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown exercise type %q", ErrInvalidExercise, s)
}

// Exercise is one submitted lesson exercise.
type Exercise struct {
	LessonID       string
	Type           ExerciseType
	Question       string
	UserAnswers    []string
	CorrectAnswers []string
}

// ExerciseResult is the graded exercise. Score is 100 or 0.
type ExerciseResult struct {
	IsCorrect  bool    `json:"is_correct"`
	Score      float64 `json:"score"`
	Feedback   string  `json:"feedback"`
	EmotionTag Emotion `json:"emotion_tag"`
	Source     Source  `json:"source"`
}

// AnswersMatch reports whether the learner's answers equal the correct ones,
// position by position. Case and surrounding or repeated whitespace are
// ignored; punctuation is not.
func AnswersMatch(user, correct []string) bool {
	if len(user) != len(correct) {
		return false
	}
	for i := range user {
		if !strings.EqualFold(squash(user[i]), squash(correct[i])) {
			return false
		}
	}
	return true
}

func squash(s string) string { return strings.Join(strings.Fields(s), " ") }

// ExerciseFallback returns the rule-based explanation for a graded exercise.
func ExerciseFallback(correct bool, answers []string) string {
	if correct {
		return "Correct! Well done."
	}
	return fmt.Sprintf("Not quite. The correct answer is: %s.", strings.Join(answers, " "))
}

// CheckExercise grades ex and explains the result. Grading never involves
// the model; only the explanation does, and it falls back to
// [ExerciseFallback] when the model is absent, fails or answers blank.
func (g *Generator) CheckExercise(ctx context.Context, ex Exercise) (ExerciseResult, error) {
	if ex.Type == "" {
		ex.Type = ExerciseMultipleChoice
	}
	if _, err := ParseExerciseType(string(ex.Type)); err != nil {
		return ExerciseResult{}, err
	}
	if strings.TrimSpace(strings.Join(ex.CorrectAnswers, "")) == "" {
		return ExerciseResult{}, fmt.Errorf("%w: no correct answers", ErrInvalidExercise)
	}

	res := ExerciseResult{IsCorrect: AnswersMatch(ex.UserAnswers, ex.CorrectAnswers)}
	res.EmotionTag = EmotionCorrective
	if res.IsCorrect {
		res.Score = 100
		res.EmotionTag = EmotionPraise
	}
	res.Feedback, res.Source = g.explain(ctx, ex, res.IsCorrect)

	slog.Debug("feedback: exercise checked",
		"lesson", ex.LessonID,
		"type", ex.Type,
		"correct", res.IsCorrect,
		"source", res.Source,
	)
	return res, nil
}

func (g *Generator) explain(ctx context.Context, ex Exercise, correct bool) (string, Source) {
	fallback := ExerciseFallback(correct, ex.CorrectAnswers)
	if g.llm == nil {
		return fallback, SourceRules
	}

	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: explainPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: exercisePrompt(ex)}},
		Temperature:  g.temperature,
		MaxTokens:    exerciseMaxTokens,
	})
	switch {
	case err != nil:
		slog.Warn("feedback: exercise explanation failed, using fallback", "err", err)
		return fallback, SourceError
	case resp == nil || strings.TrimSpace(resp.Content) == "":
		slog.Warn("feedback: empty exercise explanation, using fallback")
		return fallback, SourceFallback
	}
	if resp.FinishReason == llm.FinishLength {
		slog.Warn("feedback: exercise explanation hit the token limit", "max_tokens", exerciseMaxTokens)
	}
	return strings.TrimSpace(resp.Content), SourceLLM
}

const exerciseMaxTokens = 200

const explainPrompt = `You are a patient English teacher for Vietnamese learners.
Explain grammar and vocabulary in plain, simple English.`

func exercisePrompt(ex Exercise) string {
	question := strings.TrimSpace(ex.Question)
	if question == "" {
		question = "Exercise question"
	}

	var b strings.Builder
	b.WriteString("The student answered this question:\n")
	fmt.Fprintf(&b, "Question: %s\n", question)
	fmt.Fprintf(&b, "Exercise type: %s\n", ex.Type)
	fmt.Fprintf(&b, "Their answer: %s\n", strings.Join(ex.UserAnswers, " "))
	fmt.Fprintf(&b, "Correct answer: %s\n\n", strings.Join(ex.CorrectAnswers, " "))
	b.WriteString(`Provide brief feedback (2-3 sentences):
- If correct: praise and explain why it's right
- If incorrect: gently explain the mistake and provide the correct answer with reasoning`)
	return b.String()
}
