// Package redis backs the shared (L2) tier of the stats cache with a single
// JSON document in Redis. The document carries no Redis TTL: freshness is
// judged by its lastUpdated field so a stale copy stays available as the
// final fallback.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"anime-trivia-service/internal/domain"
)

const metadataKey = "trivia:stats:animes"

type MetadataStore struct {
	client *redis.Client
}

func NewMetadataStore(client *redis.Client) *MetadataStore {
	return &MetadataStore{client: client}
}

func (s *MetadataStore) StatsMetadata(ctx context.Context) (*domain.AnimeStatsMetadata, error) {
	raw, err := s.client.Get(ctx, metadataKey).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrMetadataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read stats metadata: %w", err)
	}
	var meta domain.AnimeStatsMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal stats metadata: %w", err)
	}
	return &meta, nil
}

func (s *MetadataStore) SaveStatsMetadata(ctx context.Context, meta *domain.AnimeStatsMetadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal stats metadata: %w", err)
	}
	if err := s.client.Set(ctx, metadataKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("write stats metadata: %w", err)
	}
	return nil
}
