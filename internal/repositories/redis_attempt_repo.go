package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serenvoice/gateway/internal/models"
)

// RedisAttemptRepository stores rate limiter state as JSON values with a TTL,
// so expired state disappears without a cleanup pass.
type RedisAttemptRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisAttemptRepository creates a RedisAttemptRepository. Keys are namespaced with prefix.
func NewRedisAttemptRepository(client redis.UniversalClient, prefix string) *RedisAttemptRepository {
	return &RedisAttemptRepository{client: client, prefix: prefix}
}

func (r *RedisAttemptRepository) key(key string) string {
	return r.prefix + key
}

func (r *RedisAttemptRepository) Load(ctx context.Context, key string) (*models.AttemptState, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt state: %w", err)
	}

	var state models.AttemptState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode attempt state: %w", err)
	}
	return &state, nil
}

func (r *RedisAttemptRepository) Save(ctx context.Context, key string, state *models.AttemptState, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode attempt state: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save attempt state: %w", err)
	}
	return nil
}

func (r *RedisAttemptRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete attempt state: %w", err)
	}
	return nil
}

// HealthCheck pings the Redis server
func (r *RedisAttemptRepository) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
