package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"anime-trivia-service/internal/domain"
)

// RankingStore is the persistence surface the aggregator needs. CommitRankedAttempt
// must apply all records and the profile update atomically: partially-applied
// ranking state is never observable.
type RankingStore interface {
	Ranking(ctx context.Context, period domain.Period, periodValue, category, userID string) (*domain.RankingRecord, error)
	Profile(ctx context.Context, userID string) (*domain.UserProfile, error)
	CommitRankedAttempt(ctx context.Context, records []domain.RankingRecord, profile domain.UserProfile) error
}

// Rebuilder is notified after a ranking batch commits.
type Rebuilder interface {
	Rebuild(ctx context.Context, period domain.Period, periodValue, category string) error
}

// Aggregator folds one ranked attempt into the daily, monthly and allTime
// buckets plus the user profile, then triggers leaderboard rebuilds.
type Aggregator struct {
	store   RankingStore
	rebuild Rebuilder
	clock   func() time.Time
	log     *slog.Logger
}

func NewAggregator(store RankingStore, rebuild Rebuilder, log *slog.Logger) *Aggregator {
	return &Aggregator{store: store, rebuild: rebuild, clock: time.Now, log: log}
}

// WithClock is test-only for deterministic period values.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.clock = now
	return a
}

// UpdateRankings applies one completed ranked attempt. The daily record is
// replaced; monthly and allTime records accumulate. A batch failure is a hard
// failure for the caller. Rebuild-trigger failures are logged only.
func (a *Aggregator) UpdateRankings(ctx context.Context, userID, category string, score, totalQuestions int) error {
	now := a.clock()

	profile, err := a.store.Profile(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			return fmt.Errorf("load profile: %w", err)
		}
		profile = &domain.UserProfile{UserID: userID, Username: userID}
	}

	buckets := []struct {
		period domain.Period
		value  string
	}{
		{domain.PeriodDaily, domain.DateString(now)},
		{domain.PeriodMonthly, domain.MonthString(now)},
		{domain.PeriodAllTime, domain.AllTimeValue},
	}

	records := make([]domain.RankingRecord, 0, len(buckets))
	for _, b := range buckets {
		record := domain.RankingRecord{
			Period:         b.period,
			PeriodValue:    b.value,
			Category:       category,
			UserID:         userID,
			Username:       profile.Username,
			Score:          score,
			TotalQuestions: totalQuestions,
			QuizCount:      1,
			LastUpdated:    now,
		}
		// Daily is replaced outright; the other periods accumulate.
		if b.period != domain.PeriodDaily {
			existing, err := a.store.Ranking(ctx, b.period, b.value, category, userID)
			if err != nil && !errors.Is(err, domain.ErrRankingNotFound) {
				return fmt.Errorf("load %s ranking: %w", b.period, err)
			}
			if existing != nil {
				record.Score += existing.Score
				record.TotalQuestions += existing.TotalQuestions
				record.QuizCount += existing.QuizCount
			}
		}
		record.AverageScore = domain.Average(record.Score, record.TotalQuestions)
		records = append(records, record)
	}

	updated := *profile
	updated.TotalScore += score
	updated.TotalQuestions += totalQuestions
	updated.QuizCount++
	if updated.CategoryStats == nil {
		updated.CategoryStats = make(map[string]domain.CategoryStats)
	}
	cat := updated.CategoryStats[category]
	cat.Score += score
	cat.TotalQuestions += totalQuestions
	cat.QuizCount++
	updated.CategoryStats[category] = cat

	if err := a.store.CommitRankedAttempt(ctx, records, updated); err != nil {
		return fmt.Errorf("commit ranking batch: %w", err)
	}

	for _, b := range buckets {
		if err := a.rebuild.Rebuild(ctx, b.period, b.value, category); err != nil {
			a.log.Error("leaderboard rebuild failed",
				"period", b.period, "value", b.value, "category", category, "error", err)
		}
	}
	return nil
}
