package speaking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nclamvn/teacherAI/internal/feedback"
	"github.com/nclamvn/teacherAI/internal/progress"
	"github.com/nclamvn/teacherAI/internal/speaking"
	sttmock "github.com/nclamvn/teacherAI/pkg/provider/stt/mock"
)

func TestCheckExercise(t *testing.T) {
	f := newFixture(t, "", "Yes! We use the past simple for finished actions.")

	res, err := f.svc.CheckExercise(context.Background(), feedback.Exercise{
		LessonID:       "lesson_2",
		Type:           feedback.ExerciseFillBlank,
		Question:       "Yesterday I ___ to school.",
		UserAnswers:    []string{"Went"},
		CorrectAnswers: []string{"went"},
	})
	if err != nil {
		t.Fatalf("CheckExercise: %v", err)
	}
	if !res.IsCorrect || res.Score != 100 || res.EmotionTag != feedback.EmotionPraise {
		t.Errorf("graded = %+v, want correct/100/praise", res.ExerciseResult)
	}
	if res.Source != feedback.SourceLLM || res.Feedback != "Yes! We use the past simple for finished actions." {
		t.Errorf("feedback = %q (%s)", res.Feedback, res.Source)
	}
	if res.TTSURL == "" {
		t.Error("correct answer was not voiced")
	}
	if len(f.tts.Calls) != 1 || f.tts.Calls[0].Text != "went" {
		t.Errorf("tts calls = %+v, want the correct answer", f.tts.Calls)
	}
}

func TestCheckExercise_Degraded(t *testing.T) {
	f := newFixture(t, "", "")
	f.llm.CompleteErr = errors.New("rate limited")
	f.tts.Err = errors.New("tts down")

	res, err := f.svc.CheckExercise(context.Background(), feedback.Exercise{
		UserAnswers:    []string{"b"},
		CorrectAnswers: []string{"c"},
	})
	if err != nil {
		t.Fatalf("CheckExercise: %v", err)
	}
	if res.IsCorrect || res.EmotionTag != feedback.EmotionCorrective || res.Source != feedback.SourceError {
		t.Errorf("graded = %+v", res.ExerciseResult)
	}
	if res.Feedback != "Not quite. The correct answer is: c." {
		t.Errorf("Feedback = %q", res.Feedback)
	}
	if res.TTSURL != "" {
		t.Errorf("TTSURL = %q, want empty after synthesis failure", res.TTSURL)
	}

	if _, err := f.svc.CheckExercise(context.Background(), feedback.Exercise{}); !errors.Is(err, feedback.ErrInvalidExercise) {
		t.Errorf("empty exercise err = %v, want ErrInvalidExercise", err)
	}
}

func TestSavePhrase(t *testing.T) {
	f := newFixture(t, "", "")
	ctx := context.Background()

	saved, err := f.svc.SavePhrase(ctx, progress.Phrase{UserID: "u1", Text: " break the ice ", Source: "lesson_1", Topic: "Work"})
	if err != nil {
		t.Fatalf("SavePhrase: %v", err)
	}
	want := progress.Phrase{
		UserID:  "u1",
		Text:    "break the ice",
		Source:  "lesson_1",
		Topic:   "work",
		SavedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	if saved != want {
		t.Errorf("saved = %+v, want %+v", saved, want)
	}
	if len(f.progress.Saved) != 1 || f.progress.Saved[0] != want {
		t.Errorf("store holds %+v", f.progress.Saved)
	}

	if _, err := f.svc.SavePhrase(ctx, progress.Phrase{UserID: "u1", Text: "  "}); !errors.Is(err, progress.ErrInvalidPhrase) {
		t.Errorf("blank phrase err = %v, want ErrInvalidPhrase", err)
	}

	phrases, err := f.svc.Phrases(ctx, "u1", "work", 0)
	if err != nil || len(phrases) != 1 {
		t.Errorf("Phrases = %+v, %v", phrases, err)
	}
	if other, _ := f.svc.Phrases(ctx, "u1", "food", 0); len(other) != 0 {
		t.Errorf("Phrases(food) = %+v, want none", other)
	}
}

func TestSavePhrase_NoStore(t *testing.T) {
	svc := speaking.New(&sttmock.Transcriber{}, nil)
	ctx := context.Background()

	if _, err := svc.SavePhrase(ctx, progress.Phrase{UserID: "u1", Text: "cheers"}); !errors.Is(err, speaking.ErrProgressUnavailable) {
		t.Errorf("err = %v, want ErrProgressUnavailable", err)
	}
	if _, err := svc.SavePhrase(ctx, progress.Phrase{UserID: "u1"}); !errors.Is(err, progress.ErrInvalidPhrase) {
		t.Errorf("blank phrase err = %v, want ErrInvalidPhrase before the store check", err)
	}
	if ps, err := svc.Phrases(ctx, "u1", "", 0); err != nil || ps == nil {
		t.Errorf("Phrases without store = %v, %v", ps, err)
	}
}

func TestSavePhrase_StoreError(t *testing.T) {
	f := newFixture(t, "", "")
	f.progress.SaveErr = errors.New("disk full")
	if _, err := f.svc.SavePhrase(context.Background(), progress.Phrase{UserID: "u1", Text: "cheers"}); err == nil {
		t.Fatal("store failure was swallowed")
	}
}
