package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anime-trivia-service/internal/app"
	"anime-trivia-service/internal/domain"
	"anime-trivia-service/internal/generation"
	"anime-trivia-service/internal/infra/memory"
	"anime-trivia-service/internal/ranking"
	"anime-trivia-service/internal/stats"
)

const testSecret = "cron-secret"

func newTestMux(t *testing.T) (*http.ServeMux, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	boards := ranking.NewCacheBuilder(store, log).WithClock(clock)
	agg := ranking.NewAggregator(store, boards, log).WithClock(clock)
	service := app.NewTriviaService(store, agg, log).WithClock(clock)

	selector := generation.NewSelector(store, log)
	usage := generation.NewUsageTrackerWithClock(store, log, clock)
	orch := generation.NewOrchestrator(selector, usage, store, store, store, 10, 12, log).WithClock(clock)

	statsCache := stats.NewCache(store, store, stats.Options{MinCount: 12, Clock: clock}, log)

	mux := http.NewServeMux()
	NewHandler(service, boards, statsCache, orch, testSecret, 30, log).Register(mux)
	return mux, store
}

func seedCatalog(store *memory.Store) {
	store.SeedAnimes(
		domain.Anime{ID: "naruto", Name: "Naruto", Popularity: 90},
		domain.Anime{ID: "one-piece", Name: "One Piece", Popularity: 95},
	)
	for _, anime := range []string{"naruto", "one-piece"} {
		for i := 0; i < 15; i++ {
			store.SeedQuestions(domain.Question{
				ID:        fmt.Sprintf("%s-q%02d", anime, i),
				Text:      fmt.Sprintf("%s question %d", anime, i),
				Options:   []string{"A", "B", "C", "D"},
				AnimeID:   anime,
				AnimeName: anime,
				RandomKey: float64(i),
			})
		}
	}
}

func do(mux *http.ServeMux, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Secret": testSecret}
}

func TestHealthz(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := do(mux, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestGenerateRequiresSecret(t *testing.T) {
	mux, store := newTestMux(t)
	seedCatalog(store)

	if rec := do(mux, http.MethodPost, "/admin/generate", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret: got %d, want 401", rec.Code)
	}
	wrong := map[string]string{"X-Admin-Secret": "guess"}
	if rec := do(mux, http.MethodPost, "/admin/generate", nil, wrong); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: got %d, want 401", rec.Code)
	}
}

func TestGenerateThenDaily(t *testing.T) {
	mux, store := newTestMux(t)
	seedCatalog(store)

	rec := do(mux, http.MethodPost, "/admin/generate?date=2024-06-15", nil, adminHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("generate: got %d: %s", rec.Code, rec.Body.String())
	}
	var runStats generation.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &runStats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if runStats.CategoriesProcessed != 3 {
		t.Fatalf("expected 3 categories, got %+v", runStats)
	}

	rec = do(mux, http.MethodGet, "/daily?category=naruto&date=2024-06-15", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("daily: got %d: %s", rec.Code, rec.Body.String())
	}
	var set domain.DailyQuestionSet
	if err := json.Unmarshal(rec.Body.Bytes(), &set); err != nil {
		t.Fatalf("decode set: %v", err)
	}
	if len(set.Questions) != 10 {
		t.Fatalf("expected 10 questions, got %d", len(set.Questions))
	}

	// Omitted category falls back to the wildcard pool.
	if rec := do(mux, http.MethodGet, "/daily?date=2024-06-15", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("daily without category: got %d", rec.Code)
	}
}

func TestDailyNotGeneratedYet(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := do(mux, http.MethodGet, "/daily?category=naruto", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rec.Code)
	}
}

func TestSubmitAttemptAndConflict(t *testing.T) {
	mux, _ := newTestMux(t)
	payload := domain.QuizAttempt{UserID: "u1", Category: "naruto", Score: 7, TotalQuestions: 10}

	rec := do(mux, http.MethodPost, "/attempts", payload, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first attempt: got %d: %s", rec.Code, rec.Body.String())
	}
	var saved domain.QuizAttempt
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode attempt: %v", err)
	}
	if saved.Date != "2024-06-15" {
		t.Fatalf("expected server-side date, got %q", saved.Date)
	}

	if rec := do(mux, http.MethodPost, "/attempts", payload, nil); rec.Code != http.StatusConflict {
		t.Fatalf("second attempt: got %d, want 409", rec.Code)
	}
}

func TestSubmitAttemptValidation(t *testing.T) {
	mux, _ := newTestMux(t)
	bad := domain.QuizAttempt{Category: "naruto", TotalQuestions: 10}
	if rec := do(mux, http.MethodPost, "/attempts", bad, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing userId: got %d, want 400", rec.Code)
	}
}

func TestLeaderboardAndRank(t *testing.T) {
	mux, _ := newTestMux(t)
	for i, user := range []string{"u1", "u2", "u3"} {
		payload := domain.QuizAttempt{UserID: user, Category: "naruto", Score: 10 - i, TotalQuestions: 10}
		if rec := do(mux, http.MethodPost, "/attempts", payload, nil); rec.Code != http.StatusCreated {
			t.Fatalf("attempt for %s: got %d", user, rec.Code)
		}
	}

	rec := do(mux, http.MethodGet, "/leaderboard?period=daily&value=2024-06-15&category=naruto", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard: got %d: %s", rec.Code, rec.Body.String())
	}
	var snapshot domain.LeaderboardSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snapshot.TopPlayers) != 3 || snapshot.TopPlayers[0].UserID != "u1" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	rec = do(mux, http.MethodGet, "/rank?userId=u2&period=daily&value=2024-06-15&category=naruto", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rank: got %d: %s", rec.Code, rec.Body.String())
	}
	var rank map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &rank); err != nil {
		t.Fatalf("decode rank: %v", err)
	}
	if rank["rank"] != 2 {
		t.Fatalf("rank = %d, want 2", rank["rank"])
	}

	rec = do(mux, http.MethodGet, "/rank?userId=ghost&period=daily&value=2024-06-15&category=naruto", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("rank for unknown user: got %d, want 404", rec.Code)
	}
}

func TestLeaderboardBadParams(t *testing.T) {
	mux, _ := newTestMux(t)
	if rec := do(mux, http.MethodGet, "/leaderboard?period=weekly&value=2024-W24", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid period: got %d, want 400", rec.Code)
	}
	if rec := do(mux, http.MethodGet, "/leaderboard?period=daily", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing value: got %d, want 400", rec.Code)
	}
	// allTime needs no explicit value.
	if rec := do(mux, http.MethodGet, "/leaderboard?period=allTime", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("allTime without value: got %d, want 200", rec.Code)
	}
}

func TestAnimeStats(t *testing.T) {
	mux, store := newTestMux(t)
	seedCatalog(store)

	rec := do(mux, http.MethodGet, "/stats/animes", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: got %d", rec.Code)
	}
	var meta domain.AnimeStatsMetadata
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if len(meta.Animes) != 2 || meta.TotalQuestions != 30 {
		t.Fatalf("unexpected stats: %+v", meta)
	}
}

func TestSweepValidation(t *testing.T) {
	mux, _ := newTestMux(t)
	if rec := do(mux, http.MethodPost, "/admin/sweep?days=nope", nil, adminHeaders()); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad days: got %d, want 400", rec.Code)
	}
	if rec := do(mux, http.MethodPost, "/admin/sweep", nil, adminHeaders()); rec.Code != http.StatusOK {
		t.Fatalf("default days: got %d, want 200", rec.Code)
	}
}
