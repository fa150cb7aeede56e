package generation

import (
	"context"
	"log/slog"
	"sort"

	"anime-trivia-service/internal/domain"
)

// QuestionSource fetches the candidate pool for a category. The wildcard
// category returns the whole pool. Results must come back in a stable order
// (stores order by randomKey, then id) so the seeded draw stays reproducible.
type QuestionSource interface {
	QuestionsForCategory(ctx context.Context, category string) ([]domain.Question, error)
}

// Selector deterministically draws a category's questions for a given date.
// It has no side effects; usage bookkeeping belongs to the UsageTracker.
type Selector struct {
	questions QuestionSource
	log       *slog.Logger
}

func NewSelector(questions QuestionSource, log *slog.Logger) *Selector {
	return &Selector{questions: questions, log: log}
}

// Select returns up to count questions for (category, date). For a fixed pool
// snapshot the result is identical across calls. A fetch failure yields an
// empty list; callers treat empty as "not ready yet".
func (s *Selector) Select(ctx context.Context, category, date string, count int) []domain.Question {
	pool, err := s.questions.QuestionsForCategory(ctx, category)
	if err != nil {
		s.log.Warn("question pool fetch failed", "category", category, "error", err)
		return nil
	}
	if len(pool) == 0 || count <= 0 {
		return nil
	}

	var unused []domain.Question
	for _, q := range pool {
		if !q.UsedBy(category) {
			unused = append(unused, q)
		}
	}

	switch {
	case len(unused) >= count:
		shuffleQuestions(unused, seedFor(date, category))
		return unused[:count]
	case len(unused) > 0:
		// Accepted shortfall: fewer than count, never topped up from used.
		return unused
	default:
		return s.leastRecentlyUsed(pool, category, count)
	}
}

// leastRecentlyUsed recycles the oldest previously-served questions once the
// unused pool is exhausted.
func (s *Selector) leastRecentlyUsed(pool []domain.Question, category string, count int) []domain.Question {
	var recyclable []domain.Question
	for _, q := range pool {
		if q.UsedBy(category) || q.UsedBy(domain.CategoryAll) {
			recyclable = append(recyclable, q)
		}
	}
	if len(recyclable) == 0 {
		if len(pool) > count {
			return pool[:count]
		}
		return pool
	}

	// Missing lastUsed sorts first.
	sort.SliceStable(recyclable, func(i, j int) bool {
		li, lj := recyclable[i].LastUsed, recyclable[j].LastUsed
		switch {
		case li == nil:
			return lj != nil
		case lj == nil:
			return false
		default:
			return li.Before(*lj)
		}
	})
	if len(recyclable) > count {
		recyclable = recyclable[:count]
	}
	return recyclable
}
