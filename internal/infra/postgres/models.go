package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"anime-trivia-service/internal/domain"
)

// Row types mirror the persisted collections. Usage history is normalized into
// question_usage with a unique (question_id, category, used_date) triple, which
// gives the category/date unions true set semantics.

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID            string     `bun:"id,pk"`
	Text          string     `bun:"text,notnull"`
	Options       []string   `bun:"options,type:jsonb"`
	CorrectOption int        `bun:"correct_option,notnull"`
	AnimeID       string     `bun:"anime_id"`
	AnimeName     string     `bun:"anime_name"`
	RandomKey     float64    `bun:"random_key,notnull,default:0"`
	LastUsed      *time.Time `bun:"last_used"`
	TimesUsed     int        `bun:"times_used,notnull,default:0"`
}

type questionUsageRow struct {
	bun.BaseModel `bun:"table:question_usage,alias:qu"`

	QuestionID string `bun:"question_id,pk"`
	Category   string `bun:"category,pk"`
	UsedDate   string `bun:"used_date,pk"`
}

type dailySetRow struct {
	bun.BaseModel `bun:"table:daily_question_sets,alias:ds"`

	ID          string            `bun:"id,pk"`
	Date        string            `bun:"quiz_date,notnull"`
	Category    string            `bun:"category,notnull"`
	Questions   []domain.Question `bun:"questions,type:jsonb"`
	QuestionIDs []string          `bun:"question_ids,type:jsonb"`
	GeneratedAt time.Time         `bun:"generated_at,notnull"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:quiz_attempts,alias:qa"`

	ID             int64                  `bun:"id,pk,autoincrement"`
	UserID         string                 `bun:"user_id,notnull"`
	Date           string                 `bun:"quiz_date,notnull"`
	Category       string                 `bun:"category,notnull"`
	Score          int                    `bun:"score,notnull"`
	TotalQuestions int                    `bun:"total_questions,notnull"`
	CompletedAt    time.Time              `bun:"completed_at,notnull"`
	IsPractice     bool                   `bun:"is_practice,notnull"`
	Answers        []domain.AttemptAnswer `bun:"answers,type:jsonb"`
}

type rankingRow struct {
	bun.BaseModel `bun:"table:rankings,alias:r"`

	Period         string    `bun:"period,pk"`
	PeriodValue    string    `bun:"period_value,pk"`
	Category       string    `bun:"category,pk"`
	UserID         string    `bun:"user_id,pk"`
	Username       string    `bun:"username,notnull"`
	Score          int       `bun:"score,notnull"`
	TotalQuestions int       `bun:"total_questions,notnull"`
	AverageScore   float64   `bun:"average_score,notnull"`
	QuizCount      int       `bun:"quiz_count,notnull"`
	LastUpdated    time.Time `bun:"last_updated,notnull"`
}

func (r rankingRow) toDomain() *domain.RankingRecord {
	return &domain.RankingRecord{
		Period:         domain.Period(r.Period),
		PeriodValue:    r.PeriodValue,
		Category:       r.Category,
		UserID:         r.UserID,
		Username:       r.Username,
		Score:          r.Score,
		TotalQuestions: r.TotalQuestions,
		AverageScore:   r.AverageScore,
		QuizCount:      r.QuizCount,
		LastUpdated:    r.LastUpdated,
	}
}

func rankingFromDomain(r domain.RankingRecord) rankingRow {
	return rankingRow{
		Period:         string(r.Period),
		PeriodValue:    r.PeriodValue,
		Category:       r.Category,
		UserID:         r.UserID,
		Username:       r.Username,
		Score:          r.Score,
		TotalQuestions: r.TotalQuestions,
		AverageScore:   r.AverageScore,
		QuizCount:      r.QuizCount,
		LastUpdated:    r.LastUpdated,
	}
}

type snapshotRow struct {
	bun.BaseModel `bun:"table:leaderboard_snapshots,alias:ls"`

	Period       string                    `bun:"period,pk"`
	PeriodValue  string                    `bun:"period_value,pk"`
	Category     string                    `bun:"category,pk"`
	TopPlayers   []domain.LeaderboardEntry `bun:"top_players,type:jsonb"`
	TotalPlayers int                       `bun:"total_players,notnull"`
	UpdatedAt    time.Time                 `bun:"updated_at,notnull"`
}

type statsMetadataRow struct {
	bun.BaseModel `bun:"table:stats_metadata,alias:sm"`

	ID             int                 `bun:"id,pk"`
	Animes         []domain.AnimeStats `bun:"animes,type:jsonb"`
	TotalQuestions int                 `bun:"total_questions,notnull"`
	LastUpdated    time.Time           `bun:"last_updated,notnull"`
	Version        int64               `bun:"version,notnull"`
}

type profileRow struct {
	bun.BaseModel `bun:"table:user_profiles,alias:up"`

	UserID         string                          `bun:"user_id,pk"`
	Username       string                          `bun:"username,notnull"`
	TotalScore     int                             `bun:"total_score,notnull,default:0"`
	TotalQuestions int                             `bun:"total_questions,notnull,default:0"`
	QuizCount      int                             `bun:"quiz_count,notnull,default:0"`
	CategoryStats  map[string]domain.CategoryStats `bun:"category_stats,type:jsonb"`
}

type animeRow struct {
	bun.BaseModel `bun:"table:animes,alias:a"`

	ID         string `bun:"id,pk"`
	Name       string `bun:"name,notnull"`
	Popularity int    `bun:"popularity,notnull,default:0"`
}
