// Package postgres persists the trivia collections in Postgres via bun, with
// the read-heavy question pool scan served by a pgx pool (see question_pool.go).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"anime-trivia-service/internal/domain"
)

type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// MarkQuestionsUsed stamps lastUsed/timesUsed and inserts usage rows; the
// unique (question_id, category, used_date) key makes re-insertion a no-op.
func (s *Store) MarkQuestionsUsed(ctx context.Context, questionIDs []string, category, date string, now time.Time) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*questionRow)(nil)).
			Set("last_used = ?", now).
			Set("times_used = times_used + 1").
			Where("id IN (?)", bun.In(questionIDs)).
			Exec(ctx); err != nil {
			return fmt.Errorf("stamp questions: %w", err)
		}

		rows := make([]questionUsageRow, 0, len(questionIDs))
		for _, id := range questionIDs {
			rows = append(rows, questionUsageRow{QuestionID: id, Category: category, UsedDate: date})
		}
		if _, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("insert usage rows: %w", err)
		}
		return nil
	})
}

func (s *Store) HasSetsForDate(ctx context.Context, date string) (bool, error) {
	return s.db.NewSelect().
		Model((*dailySetRow)(nil)).
		Where("quiz_date = ?", date).
		Exists(ctx)
}

func (s *Store) SaveQuestionSet(ctx context.Context, set domain.DailyQuestionSet) error {
	row := dailySetRow{
		ID:          set.ID,
		Date:        set.Date,
		Category:    set.Category,
		Questions:   set.Questions,
		QuestionIDs: set.QuestionIDs,
		GeneratedAt: set.GeneratedAt,
	}
	res, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert daily set: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrSetExists
	}
	return nil
}

func (s *Store) QuestionSet(ctx context.Context, date, category string) (*domain.DailyQuestionSet, error) {
	row := new(dailySetRow)
	err := s.db.NewSelect().
		Model(row).
		Where("id = ?", domain.SetID(date, category)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load daily set: %w", err)
	}
	return &domain.DailyQuestionSet{
		ID:          row.ID,
		Date:        row.Date,
		Category:    row.Category,
		Questions:   row.Questions,
		QuestionIDs: row.QuestionIDs,
		GeneratedAt: row.GeneratedAt,
	}, nil
}

func (s *Store) DeleteSetsBefore(ctx context.Context, cutoffDate string) (int, error) {
	res, err := s.db.NewDelete().
		Model((*dailySetRow)(nil)).
		Where("quiz_date < ?", cutoffDate).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete old sets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) EligibleCategories(ctx context.Context, minQuestions int) ([]domain.Anime, error) {
	var rows []animeRow
	err := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("a.id, a.name, a.popularity").
		Join("JOIN questions AS q ON q.anime_id = a.id").
		GroupExpr("a.id, a.name, a.popularity").
		Having("count(q.id) >= ?", minQuestions).
		OrderExpr("a.popularity DESC, a.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list eligible categories: %w", err)
	}
	animes := make([]domain.Anime, 0, len(rows))
	for _, r := range rows {
		animes = append(animes, domain.Anime{ID: r.ID, Name: r.Name, Popularity: r.Popularity})
	}
	return animes, nil
}

func (s *Store) SaveAttempt(ctx context.Context, attempt domain.QuizAttempt) error {
	row := attemptRow{
		UserID:         attempt.UserID,
		Date:           attempt.Date,
		Category:       attempt.Category,
		Score:          attempt.Score,
		TotalQuestions: attempt.TotalQuestions,
		CompletedAt:    attempt.CompletedAt,
		IsPractice:     attempt.IsPractice,
		Answers:        attempt.Answers,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *Store) HasRankedAttempt(ctx context.Context, userID, date, category string) (bool, error) {
	return s.db.NewSelect().
		Model((*attemptRow)(nil)).
		Where("user_id = ?", userID).
		Where("quiz_date = ?", date).
		Where("category = ?", category).
		Where("is_practice = false").
		Exists(ctx)
}

func (s *Store) Ranking(ctx context.Context, period domain.Period, periodValue, category, userID string) (*domain.RankingRecord, error) {
	row := new(rankingRow)
	err := s.db.NewSelect().
		Model(row).
		Where("period = ?", string(period)).
		Where("period_value = ?", periodValue).
		Where("category = ?", category).
		Where("user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRankingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load ranking: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) RankingsForBucket(ctx context.Context, period domain.Period, periodValue, category string) ([]domain.RankingRecord, error) {
	var rows []rankingRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("period = ?", string(period)).
		Where("period_value = ?", periodValue).
		Where("category = ?", category).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bucket: %w", err)
	}
	records := make([]domain.RankingRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, *r.toDomain())
	}
	return records, nil
}

func (s *Store) CountHigherScores(ctx context.Context, period domain.Period, periodValue, category string, score int) (int, error) {
	return s.db.NewSelect().
		Model((*rankingRow)(nil)).
		Where("period = ?", string(period)).
		Where("period_value = ?", periodValue).
		Where("category = ?", category).
		Where("score > ?", score).
		Count(ctx)
}

// CommitRankedAttempt upserts all ranking records and the profile in a single
// transaction; a failure rolls back the whole batch.
func (s *Store) CommitRankedAttempt(ctx context.Context, records []domain.RankingRecord, profile domain.UserProfile) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, record := range records {
			row := rankingFromDomain(record)
			if _, err := tx.NewInsert().
				Model(&row).
				On("CONFLICT (period, period_value, category, user_id) DO UPDATE").
				Set("username = EXCLUDED.username").
				Set("score = EXCLUDED.score").
				Set("total_questions = EXCLUDED.total_questions").
				Set("average_score = EXCLUDED.average_score").
				Set("quiz_count = EXCLUDED.quiz_count").
				Set("last_updated = EXCLUDED.last_updated").
				Exec(ctx); err != nil {
				return fmt.Errorf("upsert %s ranking: %w", record.Period, err)
			}
		}

		row := profileRow{
			UserID:         profile.UserID,
			Username:       profile.Username,
			TotalScore:     profile.TotalScore,
			TotalQuestions: profile.TotalQuestions,
			QuizCount:      profile.QuizCount,
			CategoryStats:  profile.CategoryStats,
		}
		if _, err := tx.NewInsert().
			Model(&row).
			On("CONFLICT (user_id) DO UPDATE").
			Set("username = EXCLUDED.username").
			Set("total_score = EXCLUDED.total_score").
			Set("total_questions = EXCLUDED.total_questions").
			Set("quiz_count = EXCLUDED.quiz_count").
			Set("category_stats = EXCLUDED.category_stats").
			Exec(ctx); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		return nil
	})
}

func (s *Store) Profile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	row := new(profileRow)
	err := s.db.NewSelect().Model(row).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &domain.UserProfile{
		UserID:         row.UserID,
		Username:       row.Username,
		TotalScore:     row.TotalScore,
		TotalQuestions: row.TotalQuestions,
		QuizCount:      row.QuizCount,
		CategoryStats:  row.CategoryStats,
	}, nil
}

func (s *Store) SaveProfile(ctx context.Context, profile domain.UserProfile) error {
	row := profileRow{
		UserID:         profile.UserID,
		Username:       profile.Username,
		TotalScore:     profile.TotalScore,
		TotalQuestions: profile.TotalQuestions,
		QuizCount:      profile.QuizCount,
		CategoryStats:  profile.CategoryStats,
	}
	if _, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (user_id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Exec(ctx); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context, period domain.Period, periodValue, category string) (*domain.LeaderboardSnapshot, error) {
	row := new(snapshotRow)
	err := s.db.NewSelect().
		Model(row).
		Where("period = ?", string(period)).
		Where("period_value = ?", periodValue).
		Where("category = ?", category).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return &domain.LeaderboardSnapshot{
		Period:       domain.Period(row.Period),
		PeriodValue:  row.PeriodValue,
		Category:     row.Category,
		TopPlayers:   row.TopPlayers,
		TotalPlayers: row.TotalPlayers,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

func (s *Store) SaveSnapshot(ctx context.Context, snapshot domain.LeaderboardSnapshot) error {
	row := snapshotRow{
		Period:       string(snapshot.Period),
		PeriodValue:  snapshot.PeriodValue,
		Category:     snapshot.Category,
		TopPlayers:   snapshot.TopPlayers,
		TotalPlayers: snapshot.TotalPlayers,
		UpdatedAt:    snapshot.UpdatedAt,
	}
	if _, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (period, period_value, category) DO UPDATE").
		Set("top_players = EXCLUDED.top_players").
		Set("total_players = EXCLUDED.total_players").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *Store) StatsMetadata(ctx context.Context) (*domain.AnimeStatsMetadata, error) {
	row := new(statsMetadataRow)
	err := s.db.NewSelect().Model(row).Where("id = 1").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMetadataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load stats metadata: %w", err)
	}
	return &domain.AnimeStatsMetadata{
		Animes:         row.Animes,
		TotalQuestions: row.TotalQuestions,
		LastUpdated:    row.LastUpdated,
		Version:        row.Version,
	}, nil
}

func (s *Store) SaveStatsMetadata(ctx context.Context, meta *domain.AnimeStatsMetadata) error {
	row := statsMetadataRow{
		ID:             1,
		Animes:         meta.Animes,
		TotalQuestions: meta.TotalQuestions,
		LastUpdated:    meta.LastUpdated,
		Version:        meta.Version,
	}
	if _, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("animes = EXCLUDED.animes").
		Set("total_questions = EXCLUDED.total_questions").
		Set("last_updated = EXCLUDED.last_updated").
		Set("version = EXCLUDED.version").
		Exec(ctx); err != nil {
		return fmt.Errorf("save stats metadata: %w", err)
	}
	return nil
}

func (s *Store) AnimeQuestionCounts(ctx context.Context) ([]domain.AnimeStats, int, error) {
	var rows []struct {
		AnimeID       string `bun:"anime_id"`
		Name          string `bun:"anime_name"`
		QuestionCount int    `bun:"question_count"`
	}
	err := s.db.NewSelect().
		Model((*questionRow)(nil)).
		ColumnExpr("q.anime_id, q.anime_name, count(*) AS question_count").
		Where("q.anime_id <> ''").
		GroupExpr("q.anime_id, q.anime_name").
		OrderExpr("q.anime_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, 0, fmt.Errorf("count questions by anime: %w", err)
	}

	total, err := s.db.NewSelect().Model((*questionRow)(nil)).Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count questions: %w", err)
	}

	stats := make([]domain.AnimeStats, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, domain.AnimeStats{AnimeID: r.AnimeID, Name: r.Name, QuestionCount: r.QuestionCount})
	}
	return stats, total, nil
}

func (s *Store) ListAnimes(ctx context.Context) ([]domain.Anime, error) {
	var rows []animeRow
	if err := s.db.NewSelect().Model(&rows).OrderExpr("a.id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list animes: %w", err)
	}
	animes := make([]domain.Anime, 0, len(rows))
	for _, r := range rows {
		animes = append(animes, domain.Anime{ID: r.ID, Name: r.Name, Popularity: r.Popularity})
	}
	return animes, nil
}

func (s *Store) CountQuestions(ctx context.Context, animeID string) (int, error) {
	return s.db.NewSelect().
		Model((*questionRow)(nil)).
		Where("anime_id = ?", animeID).
		Count(ctx)
}

// SeedQuestions bulk-loads questions (demo data and integration tests).
func (s *Store) SeedQuestions(ctx context.Context, questions ...domain.Question) error {
	rows := make([]questionRow, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, questionRow{
			ID:            q.ID,
			Text:          q.Text,
			Options:       q.Options,
			CorrectOption: q.CorrectOption,
			AnimeID:       q.AnimeID,
			AnimeName:     q.AnimeName,
			RandomKey:     q.RandomKey,
			LastUsed:      q.LastUsed,
			TimesUsed:     q.TimesUsed,
		})
	}
	if _, err := s.db.NewInsert().Model(&rows).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("seed questions: %w", err)
	}
	return nil
}

// SeedAnimes bulk-loads catalog entries.
func (s *Store) SeedAnimes(ctx context.Context, animes ...domain.Anime) error {
	rows := make([]animeRow, 0, len(animes))
	for _, a := range animes {
		rows = append(rows, animeRow{ID: a.ID, Name: a.Name, Popularity: a.Popularity})
	}
	if _, err := s.db.NewInsert().Model(&rows).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("seed animes: %w", err)
	}
	return nil
}
