package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"anime-trivia-service/internal/domain"
	"anime-trivia-service/internal/infra/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSeedSequence(t *testing.T) {
	// ((0*31)+'a')*31 + '-' = 3052; *31 + 'b' = 94710
	if got := seedFor("a", "b"); got != 94710 {
		t.Fatalf("seedFor(a,b) = %d, want 94710", got)
	}
	if got := nextSeed(0); got != 12345 {
		t.Fatalf("nextSeed(0) = %d, want 12345", got)
	}
	if got := nextSeed(1); got != 1103527590 {
		t.Fatalf("nextSeed(1) = %d, want 1103527590", got)
	}
	if got := nextSeed(nextSeed(1)); got < 0 || got >= 1<<31 {
		t.Fatalf("nextSeed out of range: %d", got)
	}
}

func TestSelectDeterministicPermutation(t *testing.T) {
	store := memory.NewStore()
	store.SeedQuestions(narutoPool(12)...)
	selector := NewSelector(store, discardLogger())
	ctx := context.Background()

	first := selector.Select(ctx, "naruto", "2024-06-01", 10)
	if len(first) != 10 {
		t.Fatalf("expected 10 questions, got %d", len(first))
	}
	second := selector.Select(ctx, "naruto", "2024-06-01", 10)
	if !reflect.DeepEqual(ids(first), ids(second)) {
		t.Fatalf("selection not deterministic:\n%v\n%v", ids(first), ids(second))
	}

	seen := make(map[string]bool)
	for _, q := range first {
		if seen[q.ID] {
			t.Fatalf("duplicate question %s in selection", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestSelectShortfallNeverTopsUp(t *testing.T) {
	store := memory.NewStore()
	pool := narutoPool(8)
	// Mark five as already consumed by the category.
	for i := 0; i < 5; i++ {
		pool[i].Categories = []string{"naruto"}
	}
	store.SeedQuestions(pool...)
	selector := NewSelector(store, discardLogger())

	got := selector.Select(context.Background(), "naruto", "2024-06-01", 10)
	if len(got) != 3 {
		t.Fatalf("expected shortfall of 3 questions, got %d", len(got))
	}
	for _, q := range got {
		if q.UsedBy("naruto") {
			t.Fatalf("shortfall selection included used question %s", q.ID)
		}
	}
}

func TestSelectFallsBackToLeastRecentlyUsed(t *testing.T) {
	store := memory.NewStore()
	pool := narutoPool(4)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := range pool {
		pool[i].Categories = []string{"naruto"}
		if i > 0 {
			used := base.AddDate(0, 0, i)
			pool[i].LastUsed = &used
		}
		// pool[0] has no lastUsed and must sort first.
	}
	store.SeedQuestions(pool...)
	selector := NewSelector(store, discardLogger())

	got := selector.Select(context.Background(), "naruto", "2024-06-01", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 recycled questions, got %d", len(got))
	}
	if got[0].LastUsed != nil {
		t.Fatalf("expected never-stamped question first, got %s", got[0].ID)
	}
	if got[1].LastUsed == nil || !got[1].LastUsed.Equal(base.AddDate(0, 0, 1)) {
		t.Fatalf("expected oldest lastUsed second, got %+v", got[1])
	}
}

func TestSelectFetchFailureReturnsEmpty(t *testing.T) {
	selector := NewSelector(failingSource{}, discardLogger())
	if got := selector.Select(context.Background(), "naruto", "2024-06-01", 10); len(got) != 0 {
		t.Fatalf("expected empty selection on fetch failure, got %d", len(got))
	}
}

type failingSource struct{}

func (failingSource) QuestionsForCategory(context.Context, string) ([]domain.Question, error) {
	return nil, errors.New("store unreachable")
}

func narutoPool(n int) []domain.Question {
	questions := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, domain.Question{
			ID:            fmt.Sprintf("naruto-q%02d", i),
			Text:          fmt.Sprintf("Question %d", i),
			Options:       []string{"A", "B", "C", "D"},
			CorrectOption: i % 4,
			AnimeID:       "naruto",
			AnimeName:     "Naruto",
			RandomKey:     float64(i) / float64(n),
		})
	}
	return questions
}

func ids(questions []domain.Question) []string {
	out := make([]string, len(questions))
	for i, q := range questions {
		out[i] = q.ID
	}
	return out
}
