// Package memory provides an in-memory store used in tests and in store-less
// demo runs. It mirrors the document-store contract the service assumes:
// atomic single-document read-modify-write, atomic batches, and simple
// equality/range/order-by queries.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"anime-trivia-service/internal/domain"
)

type Store struct {
	mu        sync.RWMutex
	questions map[string]*domain.Question
	animes    map[string]domain.Anime
	sets      map[string]domain.DailyQuestionSet
	attempts  []domain.QuizAttempt
	rankings  map[string]*domain.RankingRecord
	snapshots map[string]domain.LeaderboardSnapshot
	profiles  map[string]*domain.UserProfile
	meta      *domain.AnimeStatsMetadata
}

func NewStore() *Store {
	return &Store{
		questions: make(map[string]*domain.Question),
		animes:    make(map[string]domain.Anime),
		sets:      make(map[string]domain.DailyQuestionSet),
		rankings:  make(map[string]*domain.RankingRecord),
		snapshots: make(map[string]domain.LeaderboardSnapshot),
		profiles:  make(map[string]*domain.UserProfile),
	}
}

// SeedQuestions loads questions into the pool, replacing by ID.
func (s *Store) SeedQuestions(questions ...domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		q := q
		s.questions[q.ID] = &q
	}
}

// SeedAnimes loads category catalog entries.
func (s *Store) SeedAnimes(animes ...domain.Anime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range animes {
		s.animes[a.ID] = a
	}
}

// QuestionsForCategory returns the candidate pool ordered by randomKey then ID,
// the scan order the deterministic draw depends on.
func (s *Store) QuestionsForCategory(_ context.Context, category string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pool []domain.Question
	for _, q := range s.questions {
		if category == domain.CategoryAll || q.AnimeID == category {
			pool = append(pool, cloneQuestion(q))
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].RandomKey != pool[j].RandomKey {
			return pool[i].RandomKey < pool[j].RandomKey
		}
		return pool[i].ID < pool[j].ID
	})
	return pool, nil
}

// MarkQuestionsUsed stamps usage metadata. Category and date unions are
// idempotent; repeated insertion is a no-op.
func (s *Store) MarkQuestionsUsed(_ context.Context, questionIDs []string, category, date string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range questionIDs {
		q, ok := s.questions[id]
		if !ok {
			continue
		}
		t := now
		q.LastUsed = &t
		q.TimesUsed++
		q.Categories = unionString(q.Categories, category)
		q.UsedDates = unionString(q.UsedDates, date)
	}
	return nil
}

func (s *Store) HasSetsForDate(_ context.Context, date string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, set := range s.sets {
		if set.Date == date {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) SaveQuestionSet(_ context.Context, set domain.DailyQuestionSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sets[set.ID]; ok {
		return domain.ErrSetExists
	}
	s.sets[set.ID] = set
	return nil
}

func (s *Store) QuestionSet(_ context.Context, date, category string) (*domain.DailyQuestionSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[domain.SetID(date, category)]
	if !ok {
		return nil, domain.ErrSetNotFound
	}
	return &set, nil
}

func (s *Store) DeleteSetsBefore(_ context.Context, cutoffDate string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, set := range s.sets {
		if set.Date < cutoffDate {
			delete(s.sets, id)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) EligibleCategories(_ context.Context, minQuestions int) ([]domain.Anime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, q := range s.questions {
		if q.AnimeID != "" {
			counts[q.AnimeID]++
		}
	}
	var eligible []domain.Anime
	for id, anime := range s.animes {
		if counts[id] >= minQuestions {
			eligible = append(eligible, anime)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Popularity != eligible[j].Popularity {
			return eligible[i].Popularity > eligible[j].Popularity
		}
		return eligible[i].ID < eligible[j].ID
	})
	return eligible, nil
}

func (s *Store) SaveAttempt(_ context.Context, attempt domain.QuizAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, attempt)
	return nil
}

func (s *Store) HasRankedAttempt(_ context.Context, userID, date, category string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.attempts {
		if !a.IsPractice && a.UserID == userID && a.Date == date && a.Category == category {
			return true, nil
		}
	}
	return false, nil
}

func rankingKey(period domain.Period, periodValue, category, userID string) string {
	return string(period) + "|" + periodValue + "|" + category + "|" + userID
}

func (s *Store) Ranking(_ context.Context, period domain.Period, periodValue, category, userID string) (*domain.RankingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.rankings[rankingKey(period, periodValue, category, userID)]
	if !ok {
		return nil, domain.ErrRankingNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *Store) RankingsForBucket(_ context.Context, period domain.Period, periodValue, category string) ([]domain.RankingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []domain.RankingRecord
	for _, r := range s.rankings {
		if r.Period == period && r.PeriodValue == periodValue && r.Category == category {
			records = append(records, *r)
		}
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].UserID < records[j].UserID })
	return records, nil
}

func (s *Store) CountHigherScores(_ context.Context, period domain.Period, periodValue, category string, score int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, r := range s.rankings {
		if r.Period == period && r.PeriodValue == periodValue && r.Category == category && r.Score > score {
			count++
		}
	}
	return count, nil
}

// CommitRankedAttempt applies the ranking records and the profile update as
// one batch: all or nothing under the store lock.
func (s *Store) CommitRankedAttempt(_ context.Context, records []domain.RankingRecord, profile domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		r := r
		s.rankings[rankingKey(r.Period, r.PeriodValue, r.Category, r.UserID)] = &r
	}
	copied := profile
	s.profiles[profile.UserID] = &copied
	return nil
}

func (s *Store) Profile(_ context.Context, userID string) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	copied := *profile
	return &copied, nil
}

// SaveProfile seeds or replaces a profile (registration is out of scope; tests
// and demo data use this).
func (s *Store) SaveProfile(_ context.Context, profile domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := profile
	s.profiles[profile.UserID] = &copied
	return nil
}

func snapshotKey(period domain.Period, periodValue, category string) string {
	return string(period) + "|" + periodValue + "|" + category
}

func (s *Store) Snapshot(_ context.Context, period domain.Period, periodValue, category string) (*domain.LeaderboardSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[snapshotKey(period, periodValue, category)]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return &snapshot, nil
}

func (s *Store) SaveSnapshot(_ context.Context, snapshot domain.LeaderboardSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshotKey(snapshot.Period, snapshot.PeriodValue, snapshot.Category)] = snapshot
	return nil
}

func (s *Store) StatsMetadata(_ context.Context) (*domain.AnimeStatsMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meta == nil {
		return nil, domain.ErrMetadataNotFound
	}
	copied := *s.meta
	return &copied, nil
}

func (s *Store) SaveStatsMetadata(_ context.Context, meta *domain.AnimeStatsMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *meta
	s.meta = &copied
	return nil
}

func (s *Store) AnimeQuestionCounts(_ context.Context) ([]domain.AnimeStats, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]*domain.AnimeStats)
	total := 0
	for _, q := range s.questions {
		total++
		if q.AnimeID == "" {
			continue
		}
		stat, ok := counts[q.AnimeID]
		if !ok {
			stat = &domain.AnimeStats{AnimeID: q.AnimeID, Name: q.AnimeName}
			counts[q.AnimeID] = stat
		}
		stat.QuestionCount++
	}
	out := make([]domain.AnimeStats, 0, len(counts))
	for _, stat := range counts {
		out = append(out, *stat)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AnimeID < out[j].AnimeID })
	return out, total, nil
}

func (s *Store) ListAnimes(_ context.Context) ([]domain.Anime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Anime, 0, len(s.animes))
	for _, a := range s.animes {
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CountQuestions(_ context.Context, animeID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, q := range s.questions {
		if q.AnimeID == animeID {
			count++
		}
	}
	return count, nil
}

func cloneQuestion(q *domain.Question) domain.Question {
	copied := *q
	copied.Options = append([]string(nil), q.Options...)
	copied.UsedDates = append([]string(nil), q.UsedDates...)
	copied.Categories = append([]string(nil), q.Categories...)
	if q.LastUsed != nil {
		t := *q.LastUsed
		copied.LastUsed = &t
	}
	return copied
}

func unionString(set []string, value string) []string {
	for _, v := range set {
		if v == value {
			return set
		}
	}
	return append(set, value)
}
