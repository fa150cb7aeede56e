package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"anime-trivia-service/internal/domain"
)

// topN bounds every leaderboard snapshot.
const topN = 100

// SnapshotStore is the persistence surface of the leaderboard cache.
type SnapshotStore interface {
	RankingsForBucket(ctx context.Context, period domain.Period, periodValue, category string) ([]domain.RankingRecord, error)
	Ranking(ctx context.Context, period domain.Period, periodValue, category, userID string) (*domain.RankingRecord, error)
	CountHigherScores(ctx context.Context, period domain.Period, periodValue, category string, score int) (int, error)
	Snapshot(ctx context.Context, period domain.Period, periodValue, category string) (*domain.LeaderboardSnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot domain.LeaderboardSnapshot) error
}

// CacheBuilder maintains bounded top-N snapshots per ranking bucket. Rebuilds
// are full recomputes: bucket sizes are bounded, and recomputing is idempotent
// and commutative, so redundant triggers from racing completions are safe.
type CacheBuilder struct {
	store SnapshotStore
	sf    singleflight.Group
	clock func() time.Time
	log   *slog.Logger
}

func NewCacheBuilder(store SnapshotStore, log *slog.Logger) *CacheBuilder {
	return &CacheBuilder{store: store, clock: time.Now, log: log}
}

// WithClock is test-only for deterministic timestamps.
func (b *CacheBuilder) WithClock(now func() time.Time) *CacheBuilder {
	b.clock = now
	return b
}

// Rebuild recomputes one bucket's snapshot from its ranking records.
func (b *CacheBuilder) Rebuild(ctx context.Context, period domain.Period, periodValue, category string) error {
	records, err := b.store.RankingsForBucket(ctx, period, periodValue, category)
	if err != nil {
		return fmt.Errorf("load bucket rankings: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		return records[i].AverageScore > records[j].AverageScore
	})

	limit := len(records)
	if limit > topN {
		limit = topN
	}
	top := make([]domain.LeaderboardEntry, 0, limit)
	for i := 0; i < limit; i++ {
		r := records[i]
		top = append(top, domain.LeaderboardEntry{
			Rank:         i + 1,
			UserID:       r.UserID,
			Username:     r.Username,
			Score:        r.Score,
			AverageScore: r.AverageScore,
			QuizCount:    r.QuizCount,
		})
	}

	snapshot := domain.LeaderboardSnapshot{
		Period:       period,
		PeriodValue:  periodValue,
		Category:     category,
		TopPlayers:   top,
		TotalPlayers: len(records),
		UpdatedAt:    b.clock(),
	}
	if err := b.store.SaveSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Read returns the cached snapshot, rebuilding once on a miss so a first
// reader with eligible records never observes "no data". Concurrent misses on
// the same bucket collapse into a single rebuild.
func (b *CacheBuilder) Read(ctx context.Context, period domain.Period, periodValue, category string) (*domain.LeaderboardSnapshot, error) {
	snapshot, err := b.store.Snapshot(ctx, period, periodValue, category)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, domain.ErrSnapshotNotFound) {
		return nil, err
	}

	key := string(period) + "|" + periodValue + "|" + category
	if _, err, _ := b.sf.Do(key, func() (interface{}, error) {
		return nil, b.Rebuild(ctx, period, periodValue, category)
	}); err != nil {
		return nil, err
	}
	return b.store.Snapshot(ctx, period, periodValue, category)
}

// UserRank computes a user's 1-based rank as one plus the count of records in
// the bucket with a strictly greater score; users sharing the exact score
// share the rank.
func (b *CacheBuilder) UserRank(ctx context.Context, userID string, period domain.Period, periodValue, category string) (int, error) {
	record, err := b.store.Ranking(ctx, period, periodValue, category, userID)
	if err != nil {
		return 0, err
	}
	higher, err := b.store.CountHigherScores(ctx, period, periodValue, category, record.Score)
	if err != nil {
		return 0, fmt.Errorf("count higher scores: %w", err)
	}
	return higher + 1, nil
}
