package generation

import (
	"context"
	"log/slog"
	"time"
)

// UsageStore applies the usage bookkeeping batch: lastUsed, timesUsed, and the
// idempotent set unions of category and date onto each question.
type UsageStore interface {
	MarkQuestionsUsed(ctx context.Context, questionIDs []string, category, date string, now time.Time) error
}

// UsageTracker records which questions a category consumed on a date. Marking
// is best-effort: a failure never invalidates an already-persisted daily set.
type UsageTracker struct {
	store UsageStore
	clock func() time.Time
	log   *slog.Logger
}

func NewUsageTracker(store UsageStore, log *slog.Logger) *UsageTracker {
	return &UsageTracker{store: store, clock: time.Now, log: log}
}

// NewUsageTrackerWithClock is test-only for deterministic timestamps.
func NewUsageTrackerWithClock(store UsageStore, log *slog.Logger, now func() time.Time) *UsageTracker {
	return &UsageTracker{store: store, clock: now, log: log}
}

// MarkUsed stamps every question in the batch. Repeated calls with identical
// arguments leave the category and date sets unchanged.
func (t *UsageTracker) MarkUsed(ctx context.Context, questionIDs []string, category, date string) error {
	if len(questionIDs) == 0 {
		return nil
	}
	if err := t.store.MarkQuestionsUsed(ctx, questionIDs, category, date, t.clock()); err != nil {
		t.log.Warn("usage marking failed; daily set remains valid",
			"category", category, "date", date, "questions", len(questionIDs), "error", err)
		return err
	}
	return nil
}
