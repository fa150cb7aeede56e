package ranking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"anime-trivia-service/internal/domain"
	"anime-trivia-service/internal/infra/memory"
)

func seedBucket(t *testing.T, store *memory.Store, records ...domain.RankingRecord) {
	t.Helper()
	ctx := context.Background()
	for _, r := range records {
		profile := domain.UserProfile{UserID: r.UserID, Username: r.Username}
		if err := store.CommitRankedAttempt(ctx, []domain.RankingRecord{r}, profile); err != nil {
			t.Fatalf("seed ranking %s: %v", r.UserID, err)
		}
	}
}

func record(userID string, score, total, quizzes int) domain.RankingRecord {
	return domain.RankingRecord{
		Period:         domain.PeriodMonthly,
		PeriodValue:    "2024-06",
		Category:       "naruto",
		UserID:         userID,
		Username:       userID,
		Score:          score,
		TotalQuestions: total,
		QuizCount:      quizzes,
		AverageScore:   domain.Average(score, total),
	}
}

func TestRebuildOrdersByScoreThenAverage(t *testing.T) {
	store := memory.NewStore()
	seedBucket(t, store,
		record("low", 10, 40, 4),
		record("high", 30, 40, 4),
		// Same score, fewer questions answered, so the higher average wins the tie.
		record("mid-sharp", 20, 20, 2),
		record("mid-blunt", 20, 40, 4),
	)
	boards := NewCacheBuilder(store, discardLogger())

	if err := boards.Rebuild(context.Background(), domain.PeriodMonthly, "2024-06", "naruto"); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	snapshot, err := store.Snapshot(context.Background(), domain.PeriodMonthly, "2024-06", "naruto")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	wantOrder := []string{"high", "mid-sharp", "mid-blunt", "low"}
	if len(snapshot.TopPlayers) != len(wantOrder) {
		t.Fatalf("expected %d entries, got %d", len(wantOrder), len(snapshot.TopPlayers))
	}
	for i, want := range wantOrder {
		entry := snapshot.TopPlayers[i]
		if entry.UserID != want {
			t.Fatalf("position %d: got %s, want %s", i, entry.UserID, want)
		}
		if entry.Rank != i+1 {
			t.Fatalf("ranks must be contiguous from 1, got %d at position %d", entry.Rank, i)
		}
	}
	if snapshot.TotalPlayers != 4 {
		t.Fatalf("totalPlayers = %d, want 4", snapshot.TotalPlayers)
	}
}

func TestRebuildTruncatesToTopN(t *testing.T) {
	store := memory.NewStore()
	for i := 0; i < topN+20; i++ {
		seedBucket(t, store, record(fmt.Sprintf("u%03d", i), i+1, 200, 10))
	}
	boards := NewCacheBuilder(store, discardLogger())

	if err := boards.Rebuild(context.Background(), domain.PeriodMonthly, "2024-06", "naruto"); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	snapshot, err := store.Snapshot(context.Background(), domain.PeriodMonthly, "2024-06", "naruto")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snapshot.TopPlayers) != topN {
		t.Fatalf("expected %d entries, got %d", topN, len(snapshot.TopPlayers))
	}
	if snapshot.TotalPlayers != topN+20 {
		t.Fatalf("totalPlayers must count the whole bucket, got %d", snapshot.TotalPlayers)
	}
	if snapshot.TopPlayers[0].Score != topN+20 {
		t.Fatalf("expected highest score first, got %d", snapshot.TopPlayers[0].Score)
	}
}

func TestReadRebuildsOnMiss(t *testing.T) {
	store := memory.NewStore()
	seedBucket(t, store, record("u1", 25, 30, 3))
	boards := NewCacheBuilder(store, discardLogger())
	ctx := context.Background()

	if _, err := store.Snapshot(ctx, domain.PeriodMonthly, "2024-06", "naruto"); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected no snapshot before first read, got %v", err)
	}

	snapshot, err := boards.Read(ctx, domain.PeriodMonthly, "2024-06", "naruto")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(snapshot.TopPlayers) != 1 || snapshot.TopPlayers[0].UserID != "u1" {
		t.Fatalf("unexpected snapshot after rebuild-on-miss: %+v", snapshot)
	}
}

func TestReadEmptyBucketYieldsEmptySnapshot(t *testing.T) {
	store := memory.NewStore()
	boards := NewCacheBuilder(store, discardLogger())

	snapshot, err := boards.Read(context.Background(), domain.PeriodDaily, "2024-06-15", "naruto")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(snapshot.TopPlayers) != 0 || snapshot.TotalPlayers != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snapshot)
	}
}

func TestUserRankSharedScores(t *testing.T) {
	store := memory.NewStore()
	seedBucket(t, store,
		record("leader", 30, 40, 4),
		record("tied-a", 20, 40, 4),
		record("tied-b", 20, 20, 2),
		record("last", 10, 40, 4),
	)
	boards := NewCacheBuilder(store, discardLogger())
	ctx := context.Background()

	cases := []struct {
		userID string
		want   int
	}{
		{"leader", 1},
		{"tied-a", 2},
		{"tied-b", 2},
		{"last", 4},
	}
	for _, tc := range cases {
		got, err := boards.UserRank(ctx, tc.userID, domain.PeriodMonthly, "2024-06", "naruto")
		if err != nil {
			t.Fatalf("rank for %s: %v", tc.userID, err)
		}
		if got != tc.want {
			t.Fatalf("rank for %s = %d, want %d", tc.userID, got, tc.want)
		}
	}
}

func TestUserRankUnknownUser(t *testing.T) {
	store := memory.NewStore()
	boards := NewCacheBuilder(store, discardLogger())

	_, err := boards.UserRank(context.Background(), "ghost", domain.PeriodMonthly, "2024-06", "naruto")
	if !errors.Is(err, domain.ErrRankingNotFound) {
		t.Fatalf("expected ErrRankingNotFound, got %v", err)
	}
}

func TestRebuildTimestampUsesClock(t *testing.T) {
	store := memory.NewStore()
	seedBucket(t, store, record("u1", 5, 10, 1))
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	boards := NewCacheBuilder(store, discardLogger()).WithClock(func() time.Time { return now })

	if err := boards.Rebuild(context.Background(), domain.PeriodMonthly, "2024-06", "naruto"); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	snapshot, err := store.Snapshot(context.Background(), domain.PeriodMonthly, "2024-06", "naruto")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snapshot.UpdatedAt.Equal(now) {
		t.Fatalf("updatedAt = %v, want %v", snapshot.UpdatedAt, now)
	}
}
