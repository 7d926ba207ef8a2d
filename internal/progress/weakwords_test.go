package progress

import (
	"testing"
	"time"

	"github.com/nclamvn/teacherAI/internal/mistake"
)

func TestTally(t *testing.T) {
	t.Parallel()

	got := Tally([]mistake.Mistake{
		{Expected: "three", Spoken: "tree", Kind: mistake.KindMispronunciation},
		{Expected: "fox", Spoken: "dog", Kind: mistake.KindSubstitution},
		{Expected: "brown", Kind: mistake.KindDeletion},
		{Spoken: "um", Kind: mistake.KindInsertion},
		{Expected: "three", Spoken: "tree", Kind: mistake.KindMispronunciation},
	})
	want := []WordError{
		{"three", ErrorMispronunciation},
		{"fox", ErrorSubstitution},
		{"brown", ErrorDeletion},
	}
	if len(got) != len(want) {
		t.Fatalf("Tally = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tally[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAggregateWeakWords(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	attempts := []Attempt{
		{CreatedAt: t0, Mistakes: []mistake.Mistake{
			{Expected: "three", Kind: mistake.KindMispronunciation},
			{Expected: "world", Kind: mistake.KindDeletion},
		}},
		{CreatedAt: t0.Add(time.Hour), Mistakes: []mistake.Mistake{
			{Expected: "three", Kind: mistake.KindMispronunciation},
		}},
		{CreatedAt: t0.Add(2 * time.Hour), Mistakes: []mistake.Mistake{
			{Expected: "apple", Kind: mistake.KindSubstitution},
		}},
	}

	got := AggregateWeakWords(attempts, 0)
	if len(got) != 3 {
		t.Fatalf("got %d weak words, want 3: %+v", len(got), got)
	}
	if got[0].Word != "three" || got[0].ErrorCount != 2 || !got[0].LastPracticed.Equal(t0.Add(time.Hour)) {
		t.Errorf("first = %+v, want three x2 at t0+1h", got[0])
	}
	// Equal counts: most recent first.
	if got[1].Word != "apple" || got[2].Word != "world" {
		t.Errorf("order = %s, %s; want apple, world", got[1].Word, got[2].Word)
	}

	if top := AggregateWeakWords(attempts, 1); len(top) != 1 {
		t.Errorf("limit 1 returned %d entries", len(top))
	}
}

func TestClampLimit(t *testing.T) {
	t.Parallel()
	for in, want := range map[int]int{-1: DefaultLimit, 0: DefaultLimit, 5: 5, 1000: MaxLimit} {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
