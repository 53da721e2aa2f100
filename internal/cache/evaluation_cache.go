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

	"github.com/andresuchdata/restockplan/internal/config"
	"github.com/andresuchdata/restockplan/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	evaluationKeyPrefix = "restock:evaluations"
	capacityKeyPrefix   = "restock:capacity"
	scanBatchSize       = 100
)

// EvaluationCache caches evaluation queries and branch capacity listings.
// Writers invalidate after every persisted run.
type EvaluationCache interface {
	GetEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.ProductEvaluation, bool, error)
	SetEvaluations(ctx context.Context, filter domain.EvaluationFilter, evals []domain.ProductEvaluation) error
	GetCapacity(ctx context.Context) ([]domain.CapacityReport, bool, error)
	SetCapacity(ctx context.Context, reports []domain.CapacityReport) error
	InvalidateEvaluations(ctx context.Context) error
	InvalidateCapacity(ctx context.Context) error
}

type redisEvaluationCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopEvaluationCache struct{}

func NewEvaluationCache(cfg config.CacheConfig) (EvaluationCache, error) {
	if !cfg.Enabled {
		return &noopEvaluationCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisEvaluationCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopEvaluationCache() EvaluationCache {
	return &noopEvaluationCache{}
}

func (c *redisEvaluationCache) GetEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.ProductEvaluation, bool, error) {
	var evals []domain.ProductEvaluation
	ok, err := c.get(ctx, buildEvaluationKey(filter), &evals)
	return evals, ok, err
}

func (c *redisEvaluationCache) SetEvaluations(ctx context.Context, filter domain.EvaluationFilter, evals []domain.ProductEvaluation) error {
	return c.set(ctx, buildEvaluationKey(filter), evals)
}

func (c *redisEvaluationCache) GetCapacity(ctx context.Context) ([]domain.CapacityReport, bool, error) {
	var reports []domain.CapacityReport
	ok, err := c.get(ctx, capacityKeyPrefix+":all", &reports)
	return reports, ok, err
}

func (c *redisEvaluationCache) SetCapacity(ctx context.Context, reports []domain.CapacityReport) error {
	return c.set(ctx, capacityKeyPrefix+":all", reports)
}

func (c *redisEvaluationCache) InvalidateEvaluations(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, evaluationKeyPrefix, scanBatchSize)
}

func (c *redisEvaluationCache) InvalidateCapacity(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, capacityKeyPrefix, scanBatchSize)
}

func (c *redisEvaluationCache) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

func (c *redisEvaluationCache) set(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (n *noopEvaluationCache) GetEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.ProductEvaluation, bool, error) {
	return nil, false, nil
}

func (n *noopEvaluationCache) SetEvaluations(ctx context.Context, filter domain.EvaluationFilter, evals []domain.ProductEvaluation) error {
	return nil
}

func (n *noopEvaluationCache) GetCapacity(ctx context.Context) ([]domain.CapacityReport, bool, error) {
	return nil, false, nil
}

func (n *noopEvaluationCache) SetCapacity(ctx context.Context, reports []domain.CapacityReport) error {
	return nil
}

func (n *noopEvaluationCache) InvalidateEvaluations(ctx context.Context) error {
	return nil
}

func (n *noopEvaluationCache) InvalidateCapacity(ctx context.Context) error {
	return nil
}

func buildEvaluationKey(filter domain.EvaluationFilter) string {
	return fmt.Sprintf("%s:%s", evaluationKeyPrefix, evaluationFilterHash(filter))
}

func evaluationFilterHash(filter domain.EvaluationFilter) string {
	parts := []string{}

	if filter.Type != "" {
		parts = append(parts, "type="+strings.ToLower(strings.TrimSpace(filter.Type)))
	}
	if filter.ABC != "" {
		parts = append(parts, "abc="+strings.ToUpper(strings.TrimSpace(filter.ABC)))
	}
	if filter.XYZ != "" {
		parts = append(parts, "xyz="+strings.ToUpper(strings.TrimSpace(filter.XYZ)))
	}
	if len(filter.Codes) > 0 {
		parts = append(parts, "codes="+joinStrings(filter.Codes))
	}

	if len(parts) == 0 {
		return "default"
	}

	sort.Strings(parts)
	raw := strings.Join(parts, "|")
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func joinStrings(values []string) string {
	c := append([]string(nil), values...)
	for i := range c {
		c[i] = strings.TrimSpace(c[i])
	}
	sort.Strings(c)
	return strings.Join(c, ",")
}
