package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"anime-trivia-service/internal/domain"
	"anime-trivia-service/internal/ranking"
)

// AttemptStore persists quiz attempts and serves daily sets to players.
type AttemptStore interface {
	QuestionSet(ctx context.Context, date, category string) (*domain.DailyQuestionSet, error)
	SaveAttempt(ctx context.Context, attempt domain.QuizAttempt) error
	HasRankedAttempt(ctx context.Context, userID, date, category string) (bool, error)
}

// TriviaService wires the player-facing use cases: fetching a day's questions
// and submitting completed attempts.
type TriviaService struct {
	store    AttemptStore
	rankings *ranking.Aggregator
	clock    func() time.Time
	log      *slog.Logger
}

func NewTriviaService(store AttemptStore, rankings *ranking.Aggregator, log *slog.Logger) *TriviaService {
	return &TriviaService{store: store, rankings: rankings, clock: time.Now, log: log}
}

// WithClock is test-only for deterministic day boundaries.
func (s *TriviaService) WithClock(now func() time.Time) *TriviaService {
	s.clock = now
	return s
}

// DailyQuestions returns the set for (date, category); date defaults to today
// UTC. An absent set means generation has not run yet.
func (s *TriviaService) DailyQuestions(ctx context.Context, category, date string) (*domain.DailyQuestionSet, error) {
	if date == "" {
		date = domain.DateString(s.clock())
	}
	return s.store.QuestionSet(ctx, date, category)
}

// SubmitAttempt records a completed quiz. Attempts against any day other than
// today are forced to practice: only today's set counts toward rankings.
// Ranked attempts update rankings atomically; a ranking failure surfaces as a
// submission failure. Practice attempts never touch rankings.
func (s *TriviaService) SubmitAttempt(ctx context.Context, attempt domain.QuizAttempt) (domain.QuizAttempt, error) {
	now := s.clock()
	today := domain.DateString(now)
	attempt.CompletedAt = now
	if attempt.Date == "" {
		attempt.Date = today
	}
	if attempt.Date != today {
		attempt.IsPractice = true
	}

	if !attempt.IsPractice {
		// Pre-read check; two racing submissions can both pass it. Accepted.
		played, err := s.store.HasRankedAttempt(ctx, attempt.UserID, attempt.Date, attempt.Category)
		if err != nil {
			return attempt, fmt.Errorf("check prior attempt: %w", err)
		}
		if played {
			return attempt, domain.ErrAlreadyPlayed
		}
	}

	if err := s.store.SaveAttempt(ctx, attempt); err != nil {
		return attempt, fmt.Errorf("save attempt: %w", err)
	}

	if attempt.IsPractice {
		return attempt, nil
	}
	if err := s.rankings.UpdateRankings(ctx, attempt.UserID, attempt.Category, attempt.Score, attempt.TotalQuestions); err != nil {
		return attempt, fmt.Errorf("update rankings: %w", err)
	}
	s.log.Info("ranked attempt recorded",
		"user", attempt.UserID, "category", attempt.Category,
		"score", attempt.Score, "total", attempt.TotalQuestions)
	return attempt, nil
}
