package stats

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"anime-trivia-service/internal/domain"
)

// MetadataStore is the shared (L2) home of the stats aggregate.
type MetadataStore interface {
	StatsMetadata(ctx context.Context) (*domain.AnimeStatsMetadata, error)
	SaveStatsMetadata(ctx context.Context, meta *domain.AnimeStatsMetadata) error
}

// Source answers the recompute (L3) queries. AnimeQuestionCounts is the full
// scan fallback; ListAnimes plus CountQuestions form the cheaper two-phase path.
type Source interface {
	AnimeQuestionCounts(ctx context.Context) ([]domain.AnimeStats, int, error)
	ListAnimes(ctx context.Context) ([]domain.Anime, error)
	CountQuestions(ctx context.Context, animeID string) (int, error)
}

// Cache serves the "categories with enough questions" aggregate through a
// tiered fallback chain: in-process memory, persisted metadata, recompute.
// Every tier failure falls through to the next; callers never see an error,
// only (possibly stale, possibly empty) data.
type Cache struct {
	meta        MetadataStore
	source      Source
	memoryTTL   time.Duration
	metadataTTL time.Duration
	minCount    int
	concurrency int
	clock       func() time.Time
	sf          singleflight.Group
	log         *slog.Logger

	mu       sync.RWMutex
	cached   *domain.AnimeStatsMetadata
	cachedAt time.Time
}

// Options tune the cache tiers. Zero values fall back to the defaults the
// service runs with in production.
type Options struct {
	MemoryTTL   time.Duration // default 30m
	MetadataTTL time.Duration // default 24h
	MinCount    int           // default 100
	Concurrency int           // default 10
	Clock       func() time.Time
}

func NewCache(meta MetadataStore, source Source, opts Options, log *slog.Logger) *Cache {
	if opts.MemoryTTL <= 0 {
		opts.MemoryTTL = 30 * time.Minute
	}
	if opts.MetadataTTL <= 0 {
		opts.MetadataTTL = 24 * time.Hour
	}
	if opts.MinCount <= 0 {
		opts.MinCount = 100
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Cache{
		meta:        meta,
		source:      source,
		memoryTTL:   opts.MemoryTTL,
		metadataTTL: opts.MetadataTTL,
		minCount:    opts.MinCount,
		concurrency: opts.Concurrency,
		clock:       opts.Clock,
		log:         log,
	}
}

// Get walks the tier chain. On total failure it serves the stale memory value,
// then the stale metadata value ignoring its TTL, then an empty result; each
// step logs at a distinct level so "served stale" and "served nothing" are
// distinguishable.
func (c *Cache) Get(ctx context.Context) (*domain.AnimeStatsMetadata, error) {
	now := c.clock()

	c.mu.RLock()
	memory := c.cached
	memoryFresh := memory != nil && now.Sub(c.cachedAt) < c.memoryTTL
	c.mu.RUnlock()
	if memoryFresh {
		return memory, nil
	}

	var stale *domain.AnimeStatsMetadata
	persisted, err := c.meta.StatsMetadata(ctx)
	switch {
	case err == nil && now.Sub(persisted.LastUpdated) < c.metadataTTL:
		c.remember(persisted, now)
		return persisted, nil
	case err == nil:
		stale = persisted
	case !errors.Is(err, domain.ErrMetadataNotFound):
		c.log.Warn("stats metadata read failed, recomputing", "error", err)
	}

	result, err, _ := c.sf.Do("anime-stats", func() (interface{}, error) {
		return c.recompute(ctx, stale)
	})
	if err == nil {
		meta := result.(*domain.AnimeStatsMetadata)
		c.remember(meta, c.clock())
		return meta, nil
	}
	c.log.Warn("stats recompute failed", "error", err)

	if memory != nil {
		c.log.Warn("serving stale in-memory stats", "age", now.Sub(c.cachedAt))
		return memory, nil
	}
	if stale != nil {
		c.log.Warn("serving stale persisted stats", "age", now.Sub(stale.LastUpdated))
		return stale, nil
	}
	c.log.Error("all stats tiers failed, serving empty result")
	return &domain.AnimeStatsMetadata{LastUpdated: now}, nil
}

// Invalidate clears the memory tier and epoch-stamps the persisted document so
// the next read goes straight to recompute while keeping the stale content
// available as a fallback.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	c.cached = nil
	c.cachedAt = time.Time{}
	c.mu.Unlock()

	meta, err := c.meta.StatsMetadata(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrMetadataNotFound) {
			return err
		}
		meta = &domain.AnimeStatsMetadata{}
	}
	meta.LastUpdated = time.Unix(0, 0).UTC()
	return c.meta.SaveStatsMetadata(ctx, meta)
}

func (c *Cache) remember(meta *domain.AnimeStatsMetadata, at time.Time) {
	c.mu.Lock()
	c.cached = meta
	c.cachedAt = at
	c.mu.Unlock()
}

// recompute rebuilds the aggregate, preferring the two-phase path (cheap
// distinct fetch plus bounded-concurrency count queries) and falling back to a
// full scan. The result is written back to the metadata store best-effort.
func (c *Cache) recompute(ctx context.Context, previous *domain.AnimeStatsMetadata) (*domain.AnimeStatsMetadata, error) {
	animes, total, err := c.countTwoPhase(ctx)
	if err != nil {
		c.log.Warn("two-phase stats count failed, falling back to full scan", "error", err)
		animes, total, err = c.source.AnimeQuestionCounts(ctx)
		if err != nil {
			return nil, err
		}
	}

	qualified := animes[:0]
	for _, a := range animes {
		if a.QuestionCount >= c.minCount {
			qualified = append(qualified, a)
		}
	}
	sort.SliceStable(qualified, func(i, j int) bool {
		if qualified[i].QuestionCount != qualified[j].QuestionCount {
			return qualified[i].QuestionCount > qualified[j].QuestionCount
		}
		return qualified[i].Name < qualified[j].Name
	})

	var version int64 = 1
	if previous != nil {
		version = previous.Version + 1
	}
	meta := &domain.AnimeStatsMetadata{
		Animes:         qualified,
		TotalQuestions: total,
		LastUpdated:    c.clock(),
		Version:        version,
	}
	if err := c.meta.SaveStatsMetadata(ctx, meta); err != nil {
		c.log.Warn("stats metadata write-back failed", "error", err)
	}
	return meta, nil
}

func (c *Cache) countTwoPhase(ctx context.Context) ([]domain.AnimeStats, int, error) {
	catalog, err := c.source.ListAnimes(ctx)
	if err != nil {
		return nil, 0, err
	}

	counts := make([]domain.AnimeStats, len(catalog))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, anime := range catalog {
		i, anime := i, anime
		g.Go(func() error {
			n, err := c.source.CountQuestions(gctx, anime.ID)
			if err != nil {
				return err
			}
			counts[i] = domain.AnimeStats{AnimeID: anime.ID, Name: anime.Name, QuestionCount: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	total := 0
	for _, s := range counts {
		total += s.QuestionCount
	}
	return counts, total, nil
}
