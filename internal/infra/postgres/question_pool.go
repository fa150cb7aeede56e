package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"anime-trivia-service/internal/domain"
)

// QuestionPool serves the selector's read path: the full candidate scan with
// usage sets folded in. It runs on a pgx pool to keep the hot query off the
// bun connection used for writes.
type QuestionPool struct {
	pool *pgxpool.Pool
}

func NewQuestionPool(pool *pgxpool.Pool) *QuestionPool {
	return &QuestionPool{pool: pool}
}

// QuestionsForCategory returns the candidate pool ordered by random_key then
// id, with the categories/usedDates sets aggregated from question_usage.
func (p *QuestionPool) QuestionsForCategory(ctx context.Context, category string) ([]domain.Question, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT q.id, q.text, q.options, q.correct_option,
		       COALESCE(q.anime_id, ''), COALESCE(q.anime_name, ''),
		       q.random_key, q.last_used, q.times_used,
		       COALESCE(array_agg(DISTINCT qu.category) FILTER (WHERE qu.category IS NOT NULL), '{}'),
		       COALESCE(array_agg(DISTINCT qu.used_date) FILTER (WHERE qu.used_date IS NOT NULL), '{}')
		FROM questions q
		LEFT JOIN question_usage qu ON qu.question_id = q.id
		WHERE $1 = 'all' OR q.anime_id = $1
		GROUP BY q.id
		ORDER BY q.random_key, q.id`, category)
	if err != nil {
		return nil, fmt.Errorf("scan question pool: %w", err)
	}
	defer rows.Close()

	var pool []domain.Question
	for rows.Next() {
		var (
			q       domain.Question
			options []byte
		)
		if err := rows.Scan(
			&q.ID, &q.Text, &options, &q.CorrectOption,
			&q.AnimeID, &q.AnimeName,
			&q.RandomKey, &q.LastUsed, &q.TimesUsed,
			&q.Categories, &q.UsedDates,
		); err != nil {
			return nil, fmt.Errorf("scan question row: %w", err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options for %s: %w", q.ID, err)
		}
		pool = append(pool, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question pool: %w", err)
	}
	return pool, nil
}
