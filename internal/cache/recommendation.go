package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/replenish/internal/config"
	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/ordering"
)

const (
	previewKeyPrefix = "recommendation:preview"
	scanBatchSize    = 100
)

// RecommendationPreviewCache memoizes dry-run generation output so repeated
// previews with identical parameters skip the history scan.
type RecommendationPreviewCache interface {
	GetPreview(ctx context.Context, key string) ([]domain.RecommendationPreviewLine, bool, error)
	SetPreview(ctx context.Context, key string, lines []domain.RecommendationPreviewLine) error
	InvalidateAll(ctx context.Context) error
}

type redisPreviewCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopPreviewCache struct{}

func NewRecommendationPreviewCache(cfg config.CacheConfig) (RecommendationPreviewCache, error) {
	if !cfg.Enabled {
		return &noopPreviewCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisPreviewCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopRecommendationPreviewCache() RecommendationPreviewCache {
	return &noopPreviewCache{}
}

// PreviewKey derives a stable cache key from the generation inputs. Vendor
// order does not affect the key.
func PreviewKey(vendorIDs []int64, params ordering.Params, includeZeroQty bool) string {
	sorted := make([]int64, len(vendorIDs))
	copy(sorted, vendorIDs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, 0, len(sorted)+4)
	for _, id := range sorted {
		parts = append(parts, fmt.Sprintf("v=%d", id))
	}
	parts = append(parts,
		fmt.Sprintf("rw=%d", params.ReorderWeeks),
		fmt.Sprintf("sw=%d", params.StockUpWeeks),
		fmt.Sprintf("lb=%d", params.HistoryLookbackDays),
		fmt.Sprintf("z=%t", includeZeroQty),
	)

	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%s:%s", previewKeyPrefix, hex.EncodeToString(hash[:]))
}

func (c *redisPreviewCache) GetPreview(ctx context.Context, key string) ([]domain.RecommendationPreviewLine, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var lines []domain.RecommendationPreviewLine
	if err := json.Unmarshal(payload, &lines); err != nil {
		return nil, false, fmt.Errorf("decode recommendation preview cache: %w", err)
	}

	return lines, true, nil
}

func (c *redisPreviewCache) SetPreview(ctx context.Context, key string, lines []domain.RecommendationPreviewLine) error {
	payload, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode recommendation preview cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (c *redisPreviewCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, previewKeyPrefix, scanBatchSize)
}

func (n *noopPreviewCache) GetPreview(ctx context.Context, key string) ([]domain.RecommendationPreviewLine, bool, error) {
	return nil, false, nil
}

func (n *noopPreviewCache) SetPreview(ctx context.Context, key string, lines []domain.RecommendationPreviewLine) error {
	return nil
}

func (n *noopPreviewCache) InvalidateAll(ctx context.Context) error {
	return nil
}
