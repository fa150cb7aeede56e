package generation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"anime-trivia-service/internal/domain"
)

// SetStore persists daily question sets.
type SetStore interface {
	HasSetsForDate(ctx context.Context, date string) (bool, error)
	SaveQuestionSet(ctx context.Context, set domain.DailyQuestionSet) error
	DeleteSetsBefore(ctx context.Context, cutoffDate string) (int, error)
}

// CategorySource lists content categories eligible for a daily set, ordered by
// popularity descending.
type CategorySource interface {
	EligibleCategories(ctx context.Context, minQuestions int) ([]domain.Anime, error)
}

// Stats summarizes one generation run.
type Stats struct {
	Date                string   `json:"date"`
	CategoriesProcessed int      `json:"categoriesProcessed"`
	QuestionsUsed       int      `json:"questionsUsed"`
	Skipped             []string `json:"skipped,omitempty"`
	Errors              []string `json:"errors,omitempty"`
}

// Orchestrator builds the one-per-day question sets across all categories and
// runs retention sweeps. Generation is idempotent per UTC date.
type Orchestrator struct {
	selector    *Selector
	usage       *UsageTracker
	sets        SetStore
	categories  CategorySource
	questions   QuestionSource
	perDay      int
	minPerCat   int
	concurrency int
	clock       func() time.Time
	log         *slog.Logger
}

func NewOrchestrator(selector *Selector, usage *UsageTracker, sets SetStore, categories CategorySource, questions QuestionSource, questionsPerDay, minCategoryQuestions int, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		selector:    selector,
		usage:       usage,
		sets:        sets,
		categories:  categories,
		questions:   questions,
		perDay:      questionsPerDay,
		minPerCat:   minCategoryQuestions,
		concurrency: 4,
		clock:       time.Now,
		log:         log,
	}
}

// WithClock is test-only for deterministic dates.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.clock = now
	return o
}

// GenerateForDate builds every category's set for date (today UTC when empty).
// If any set already exists for the date the whole run is a no-op, which makes
// the backup scheduler trigger safe.
func (o *Orchestrator) GenerateForDate(ctx context.Context, date string) (Stats, error) {
	if date == "" {
		date = domain.DateString(o.clock())
	}
	stats := Stats{Date: date}

	exists, err := o.sets.HasSetsForDate(ctx, date)
	if err != nil {
		return stats, fmt.Errorf("check existing sets: %w", err)
	}
	if exists {
		o.log.Info("daily sets already generated", "date", date)
		return stats, nil
	}

	categories := []domain.Anime{{ID: domain.CategoryAll, Name: "All Anime"}}
	eligible, err := o.categories.EligibleCategories(ctx, o.minPerCat)
	if err != nil {
		return stats, fmt.Errorf("list categories: %w", err)
	}
	categories = append(categories, eligible...)

	// Categories are independent; shared-pool races between them are accepted.
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, cat := range categories {
		cat := cat
		g.Go(func() error {
			n, err := o.generateCategory(gctx, cat.ID, date)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				stats.Errors = append(stats.Errors, cat.ID+": "+err.Error())
			case n == 0:
				stats.Skipped = append(stats.Skipped, cat.ID)
			default:
				stats.CategoriesProcessed++
				stats.QuestionsUsed += n
			}
			// Per-category failures only skip that category.
			return nil
		})
	}
	_ = g.Wait()

	o.log.Info("daily generation finished",
		"date", date,
		"categories", stats.CategoriesProcessed,
		"questions", stats.QuestionsUsed,
		"skipped", len(stats.Skipped),
		"errors", len(stats.Errors))
	return stats, nil
}

func (o *Orchestrator) generateCategory(ctx context.Context, category, date string) (int, error) {
	selected := o.selector.Select(ctx, category, date, o.perDay)
	if len(selected) == 0 {
		o.log.Warn("no questions available, skipping category", "category", category, "date", date)
		return 0, nil
	}

	ids := make([]string, len(selected))
	for i, q := range selected {
		ids[i] = q.ID
	}
	set := domain.DailyQuestionSet{
		ID:          domain.SetID(date, category),
		Date:        date,
		Category:    category,
		Questions:   selected,
		QuestionIDs: ids,
		GeneratedAt: o.clock(),
	}
	if err := o.sets.SaveQuestionSet(ctx, set); err != nil {
		return 0, fmt.Errorf("persist set: %w", err)
	}

	// Best-effort: the persisted set stays valid even if marking fails.
	_ = o.usage.MarkUsed(ctx, ids, category, date)
	return len(ids), nil
}

// Sweep deletes daily question sets older than olderThanDays and returns the
// number of rows removed.
func (o *Orchestrator) Sweep(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := domain.DateString(o.clock().AddDate(0, 0, -olderThanDays))
	removed, err := o.sets.DeleteSetsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention sweep: %w", err)
	}
	o.log.Info("retention sweep complete", "cutoff", cutoff, "removed", removed)
	return removed, nil
}

// UsageReport counts used vs unused questions per eligible category plus the
// wildcard pool.
func (o *Orchestrator) UsageReport(ctx context.Context) ([]domain.CategoryUsage, error) {
	categories := []domain.Anime{{ID: domain.CategoryAll}}
	eligible, err := o.categories.EligibleCategories(ctx, o.minPerCat)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	categories = append(categories, eligible...)

	report := make([]domain.CategoryUsage, 0, len(categories))
	for _, cat := range categories {
		pool, err := o.questions.QuestionsForCategory(ctx, cat.ID)
		if err != nil {
			return nil, fmt.Errorf("pool for %s: %w", cat.ID, err)
		}
		usage := domain.CategoryUsage{Category: cat.ID}
		for _, q := range pool {
			if q.UsedBy(cat.ID) {
				usage.Used++
			} else {
				usage.Unused++
			}
		}
		report = append(report, usage)
	}
	return report, nil
}
