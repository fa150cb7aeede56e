// Package http exposes the player, leaderboard and scheduler surfaces over
// plain HTTP. The generation endpoints are the scheduler contract: an external
// cron hits /admin/generate at 00:00 UTC (and ~01:00 as a backup no-op) and
// /admin/sweep weekly.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"anime-trivia-service/internal/app"
	"anime-trivia-service/internal/domain"
	"anime-trivia-service/internal/generation"
	"anime-trivia-service/internal/ranking"
	"anime-trivia-service/internal/stats"
)

type Handler struct {
	service       *app.TriviaService
	boards        *ranking.CacheBuilder
	stats         *stats.Cache
	orchestrator  *generation.Orchestrator
	adminSecret   string
	retentionDays int
	log           *slog.Logger
}

func NewHandler(service *app.TriviaService, boards *ranking.CacheBuilder, statsCache *stats.Cache, orchestrator *generation.Orchestrator, adminSecret string, retentionDays int, log *slog.Logger) *Handler {
	return &Handler{
		service:       service,
		boards:        boards,
		stats:         statsCache,
		orchestrator:  orchestrator,
		adminSecret:   adminSecret,
		retentionDays: retentionDays,
		log:           log,
	}
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/daily", h.handleDaily)
	mux.HandleFunc("/attempts", h.handleSubmitAttempt)
	mux.HandleFunc("/leaderboard", h.handleLeaderboard)
	mux.HandleFunc("/rank", h.handleUserRank)
	mux.HandleFunc("/stats/animes", h.handleAnimeStats)
	mux.HandleFunc("/admin/generate", h.handleGenerate)
	mux.HandleFunc("/admin/sweep", h.handleSweep)
}

func (h *Handler) handleDaily(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	category := r.URL.Query().Get("category")
	if category == "" {
		category = domain.CategoryAll
	}
	set, err := h.service.DailyQuestions(r.Context(), category, r.URL.Query().Get("date"))
	if err != nil {
		if errors.Is(err, domain.ErrSetNotFound) {
			http.Error(w, "daily set not generated yet", http.StatusNotFound)
			return
		}
		h.serverError(w, "load daily set", err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (h *Handler) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var attempt domain.QuizAttempt
	if err := json.NewDecoder(r.Body).Decode(&attempt); err != nil {
		http.Error(w, "invalid attempt payload", http.StatusBadRequest)
		return
	}
	if attempt.UserID == "" || attempt.Category == "" || attempt.TotalQuestions <= 0 {
		http.Error(w, "userId, category and totalQuestions are required", http.StatusBadRequest)
		return
	}
	saved, err := h.service.SubmitAttempt(r.Context(), attempt)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyPlayed) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.serverError(w, "submit attempt", err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	period, value, category, err := bucketParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snapshot, err := h.boards.Read(r.Context(), period, value, category)
	if err != nil {
		h.serverError(w, "read leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleUserRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	period, value, category, err := bucketParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rank, err := h.boards.UserRank(r.Context(), userID, period, value, category)
	if err != nil {
		if errors.Is(err, domain.ErrRankingNotFound) {
			http.Error(w, "user has no ranking in this bucket", http.StatusNotFound)
			return
		}
		h.serverError(w, "compute rank", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"rank": rank})
}

func (h *Handler) handleAnimeStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	meta, err := h.stats.Get(r.Context())
	if err != nil {
		h.serverError(w, "load anime stats", err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	stats, err := h.orchestrator.GenerateForDate(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.serverError(w, "generate daily sets", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	days := h.retentionDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = parsed
	}
	removed, err := h.orchestrator.Sweep(r.Context(), days)
	if err != nil {
		h.serverError(w, "retention sweep", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) authorized(r *http.Request) bool {
	return h.adminSecret != "" && r.Header.Get("X-Admin-Secret") == h.adminSecret
}

func (h *Handler) serverError(w http.ResponseWriter, action string, err error) {
	h.log.Error(action+" failed", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func bucketParams(r *http.Request) (domain.Period, string, string, error) {
	period := domain.Period(r.URL.Query().Get("period"))
	switch period {
	case domain.PeriodDaily, domain.PeriodMonthly, domain.PeriodAllTime:
	default:
		return "", "", "", domain.ErrInvalidPeriod
	}
	value := r.URL.Query().Get("value")
	if period == domain.PeriodAllTime {
		value = domain.AllTimeValue
	}
	if value == "" {
		return "", "", "", errors.New("value is required for daily and monthly periods")
	}
	category := r.URL.Query().Get("category")
	if category == "" {
		category = domain.CategoryAll
	}
	return period, value, category, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
