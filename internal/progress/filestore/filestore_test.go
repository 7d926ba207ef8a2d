package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nclamvn/teacherAI/internal/mistake"
	"github.com/nclamvn/teacherAI/internal/progress"
)

func TestFileStore_RecordAttempt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "attempts.jsonl")
	s := New(path)

	a := progress.Attempt{
		ID:           "a1",
		UserID:       "learner-1",
		ExpectedText: "the quick brown fox",
		Transcript:   "the quick brown dog",
		WordAccuracy: 75,
		OverallScore: 75,
		EmotionTag:   "encouraging",
		Mistakes:     []mistake.Mistake{{Expected: "fox", Spoken: "dog", Kind: mistake.KindSubstitution, Position: 3}},
	}
	if err := s.RecordAttempt(context.Background(), a); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"user_id":"learner-1"`) {
		t.Errorf("line missing user id: %s", lines[0])
	}
	if !strings.Contains(lines[0], `"created_at"`) {
		t.Errorf("line missing created_at: %s", lines[0])
	}
}

func TestFileStore_AttemptsNewestFirst(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "attempts.jsonl"))
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a1", "a2", "a3"} {
		if err := s.RecordAttempt(ctx, progress.Attempt{ID: id, UserID: "u1", CreatedAt: t0.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}
	if err := s.RecordAttempt(ctx, progress.Attempt{ID: "other", UserID: "u2", CreatedAt: t0}); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	got, err := s.Attempts(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a3" || got[1].ID != "a2" {
		t.Errorf("Attempts = %+v, want a3, a2", got)
	}
}

func TestFileStore_WeakWords(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "attempts.jsonl"))
	ctx := context.Background()

	three := mistake.Mistake{Expected: "three", Spoken: "tree", Kind: mistake.KindMispronunciation}
	for _, ms := range [][]mistake.Mistake{
		{three},
		{three, {Expected: "world", Kind: mistake.KindDeletion}},
	} {
		if err := s.RecordAttempt(ctx, progress.Attempt{UserID: "u1", Mistakes: ms}); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}

	words, err := s.WeakWords(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("WeakWords: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("WeakWords = %+v, want 2", words)
	}
	if words[0].Word != "three" || words[0].ErrorCount != 2 {
		t.Errorf("top = %+v, want three x2", words[0])
	}
}

func TestFileStore_MissingFile(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "absent.jsonl"))
	got, err := s.Attempts(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Attempts = %#v, want empty slice", got)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestFileStore_SkipsCorruptLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "attempts.jsonl")
	content := `{"id":"ok1","user_id":"u1"}` + "\n" + `{"id":"torn` + "\n" + `{"id":"ok2","user_id":"u1"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := New(path).Attempts(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d attempts, want 2", len(got))
	}
}

func TestFileStore_ConcurrentWrites(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "attempts.jsonl"))
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.RecordAttempt(ctx, progress.Attempt{UserID: "u1"}); err != nil {
				t.Errorf("RecordAttempt: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Attempts(ctx, "u1", progress.MaxLimit)
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	if len(got) != 20 {
		t.Errorf("got %d attempts, want 20", len(got))
	}
}

func TestFileStore_Phrases(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(filepath.Join(dir, "attempts.jsonl"))
	if s.PhrasesPath() != filepath.Join(dir, PhrasesFile) {
		t.Fatalf("PhrasesPath = %q, want sibling %s", s.PhrasesPath(), PhrasesFile)
	}
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for _, p := range []progress.Phrase{
		{UserID: "u1", Text: "break the ice", Topic: "work", SavedAt: t0},
		{UserID: "u1", Text: "a table for two", Topic: "Food", Source: "lesson_3", SavedAt: t0.Add(time.Minute)},
		{UserID: "u2", Text: "check in", Topic: "travel", SavedAt: t0},
		{UserID: "u1", Text: "break the ice", Topic: "travel", SavedAt: t0.Add(2 * time.Minute)},
	} {
		if err := s.SavePhrase(ctx, p); err != nil {
			t.Fatalf("SavePhrase(%q): %v", p.Text, err)
		}
	}

	all, err := s.Phrases(ctx, "u1", "", 0)
	if err != nil {
		t.Fatalf("Phrases: %v", err)
	}
	if len(all) != 2 || all[0].Text != "break the ice" || all[0].Topic != "travel" || all[1].Topic != "food" {
		t.Fatalf("Phrases = %+v, want re-saved phrase first with its new topic", all)
	}
	if all[1].Source != "lesson_3" {
		t.Errorf("Source = %q, want lesson_3", all[1].Source)
	}

	food, err := s.Phrases(ctx, "u1", "FOOD", 0)
	if err != nil {
		t.Fatalf("Phrases(food): %v", err)
	}
	if len(food) != 1 || food[0].Text != "a table for two" {
		t.Errorf("Phrases(food) = %+v", food)
	}

	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Errorf("phrases leaked into the attempts file: stat err = %v", err)
	}
}

func TestFileStore_SavePhraseRejectsBlank(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bank.jsonl")
	s := New(filepath.Join(t.TempDir(), "attempts.jsonl"), WithPhrasesFile(path))

	err := s.SavePhrase(context.Background(), progress.Phrase{UserID: "u1", Text: "   "})
	if !errors.Is(err, progress.ErrInvalidPhrase) {
		t.Fatalf("err = %v, want ErrInvalidPhrase", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("blank phrase was written: stat err = %v", err)
	}

	got, err := s.Phrases(context.Background(), "u1", "", 0)
	if err != nil || len(got) != 0 {
		t.Errorf("Phrases = %+v, %v; want empty", got, err)
	}
}
