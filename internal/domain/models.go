package domain

import "time"

// Period identifies a ranking bucket's time granularity.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "allTime"

	// AllTimeValue is the fixed periodValue used by allTime buckets.
	AllTimeValue = "all"

	// CategoryAll is the wildcard category whose daily set draws from the whole pool.
	CategoryAll = "all"
)

// DateString formats t as the canonical UTC day key. All day boundaries in the
// service derive from UTC calendar fields, never local time.
func DateString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// MonthString formats t as the canonical UTC month key.
func MonthString(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Question is a pool question with embedded usage metadata. Categories and
// UsedDates carry set semantics: stores must treat repeated insertion as a no-op.
type Question struct {
	ID            string     `json:"id"`
	Text          string     `json:"text"`
	Options       []string   `json:"options"`
	CorrectOption int        `json:"correctOption"`
	AnimeID       string     `json:"animeId,omitempty"`
	AnimeName     string     `json:"animeName,omitempty"`
	RandomKey     float64    `json:"randomKey"`
	LastUsed      *time.Time `json:"lastUsed,omitempty"`
	TimesUsed     int        `json:"timesUsed"`
	UsedDates     []string   `json:"usedDates,omitempty"`
	Categories    []string   `json:"categories,omitempty"`
}

// UsedBy reports whether the question has already been consumed by category.
func (q Question) UsedBy(category string) bool {
	for _, c := range q.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// DailyQuestionSet is the fixed question list for one (date, category). At most
// one set per key ever exists; generation is idempotent.
type DailyQuestionSet struct {
	ID          string     `json:"id"` // "<date>_<category>"
	Date        string     `json:"date"`
	Category    string     `json:"category"`
	Questions   []Question `json:"questions"`
	QuestionIDs []string   `json:"questionIds"`
	GeneratedAt time.Time  `json:"generatedAt"`
}

// SetID builds the storage key for a daily question set.
func SetID(date, category string) string {
	return date + "_" + category
}

// AttemptAnswer records a single answered question within an attempt.
type AttemptAnswer struct {
	QuestionID string `json:"questionId"`
	Selected   int    `json:"selected"`
	Correct    bool   `json:"correct"`
}

// QuizAttempt is a completed quiz run. Immutable once written. Practice
// attempts never touch rankings or stats.
type QuizAttempt struct {
	UserID         string          `json:"userId"`
	Date           string          `json:"date"`
	Category       string          `json:"category"`
	Score          int             `json:"score"`
	TotalQuestions int             `json:"totalQuestions"`
	CompletedAt    time.Time       `json:"completedAt"`
	IsPractice     bool            `json:"isPractice"`
	Answers        []AttemptAnswer `json:"answers,omitempty"`
}

// RankingRecord is one user's standing in one (period, periodValue, category)
// bucket. AverageScore is always derived from Score and TotalQuestions.
type RankingRecord struct {
	Period         Period    `json:"period"`
	PeriodValue    string    `json:"periodValue"`
	Category       string    `json:"category"`
	UserID         string    `json:"userId"`
	Username       string    `json:"username"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	AverageScore   float64   `json:"averageScore"`
	QuizCount      int       `json:"quizCount"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// Average computes the percentage average for a score over a question count.
func Average(score, totalQuestions int) float64 {
	if totalQuestions == 0 {
		return 0
	}
	return float64(score) / float64(totalQuestions) * 100
}

// LeaderboardEntry is one ranked row in a snapshot.
type LeaderboardEntry struct {
	Rank         int     `json:"rank"`
	UserID       string  `json:"userId"`
	Username     string  `json:"username"`
	Score        int     `json:"score"`
	AverageScore float64 `json:"averageScore"`
	QuizCount    int     `json:"quizCount"`
}

// LeaderboardSnapshot is the cached top-N for one bucket, fully rebuilt on each
// trigger. TopPlayers is sorted by score desc, ties by averageScore desc, with
// contiguous 1-based ranks.
type LeaderboardSnapshot struct {
	Period       Period             `json:"period"`
	PeriodValue  string             `json:"periodValue"`
	Category     string             `json:"category"`
	TopPlayers   []LeaderboardEntry `json:"topPlayers"`
	TotalPlayers int                `json:"totalPlayers"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// Anime is a content category: the catalog entry daily sets are keyed by.
type Anime struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Popularity int    `json:"popularity"`
}

// AnimeStats is one row of the "categories with enough questions" aggregate.
type AnimeStats struct {
	AnimeID       string `json:"animeId"`
	Name          string `json:"name"`
	QuestionCount int    `json:"questionCount"`
}

// AnimeStatsMetadata is the persisted form of the stats aggregate. Version is
// forensic only: it records how many times the aggregate has been recomputed.
type AnimeStatsMetadata struct {
	Animes         []AnimeStats `json:"animes"`
	TotalQuestions int          `json:"totalQuestions"`
	LastUpdated    time.Time    `json:"lastUpdated"`
	Version        int64        `json:"version"`
}

// CategoryStats accumulates a user's ranked totals within one category.
type CategoryStats struct {
	Score          int `json:"score"`
	TotalQuestions int `json:"totalQuestions"`
	QuizCount      int `json:"quizCount"`
}

// UserProfile carries the per-user aggregate updated in the same atomic batch
// as the ranking records.
type UserProfile struct {
	UserID         string                   `json:"userId"`
	Username       string                   `json:"username"`
	TotalScore     int                      `json:"totalScore"`
	TotalQuestions int                      `json:"totalQuestions"`
	QuizCount      int                      `json:"quizCount"`
	CategoryStats  map[string]CategoryStats `json:"categoryStats,omitempty"`
}

// CategoryUsage summarizes pool consumption for one category.
type CategoryUsage struct {
	Category string `json:"category"`
	Used     int    `json:"used"`
	Unused   int    `json:"unused"`
}
