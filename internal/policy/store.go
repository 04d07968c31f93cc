package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/zkspend-gateway/internal/domain"
	"github.com/xela07ax/zkspend-gateway/internal/infra"
)

// Store: L2-кэш, разделяемый инстансами шлюза.
type Store interface {
	Load(ctx context.Context, name string) (domain.Policy, time.Time, bool, error)
	Save(ctx context.Context, p domain.Policy, expiresAt time.Time) error
	Delete(ctx context.Context, name string) error
}

type storedPolicy struct {
	Policy    domain.Policy `json:"policy"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// RedisStore хранит политики JSON-ом с нативным TTL Redis.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Load(ctx context.Context, name string) (domain.Policy, time.Time, bool, error) {
	raw, err := s.rdb.Get(ctx, infra.PolicyCacheKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Policy{}, time.Time{}, false, nil
	}
	if err != nil {
		return domain.Policy{}, time.Time{}, false, fmt.Errorf("redis: load policy %s: %w", name, err)
	}

	var sp storedPolicy
	if err := json.Unmarshal(raw, &sp); err != nil {
		return domain.Policy{}, time.Time{}, false, fmt.Errorf("redis: decode policy %s: %w", name, err)
	}
	return sp.Policy, sp.ExpiresAt, true, nil
}

func (s *RedisStore) Save(ctx context.Context, p domain.Policy, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(storedPolicy{Policy: p, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("redis: encode policy %s: %w", p.SourceName, err)
	}
	return s.rdb.Set(ctx, infra.PolicyCacheKey(p.SourceName), raw, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, name string) error {
	return s.rdb.Del(ctx, infra.PolicyCacheKey(name)).Err()
}

// PublishInvalidation рассылает сигнал всем инстансам. name == "*" сбрасывает весь кэш.
func PublishInvalidation(ctx context.Context, rdb *redis.Client, name string) error {
	return rdb.Publish(ctx, infra.RedisChanPolicyInvalidate, name).Err()
}
