package cache

import (
	"context"
	"errors"
	"fmt"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/obs"
	"route-optimization-service/internal/ports"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMatrixCache stores matrices as JSON under the key's string form.
type RedisMatrixCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisMatrixCache(client *redis.Client, ttl time.Duration) *RedisMatrixCache {
	return &RedisMatrixCache{client: client, ttl: ttl, prefix: "routeopt:"}
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

func (c *RedisMatrixCache) Get(ctx context.Context, key ports.MatrixKey) (_ *domain.DistanceMatrix, err error) {
	defer obs.Time(ctx, "matrix.cache.redis.Get")(&err)

	b, err := c.client.Get(ctx, c.prefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis matrix cache get: %w", err)
	}
	return decodeMatrix(b)
}

func (c *RedisMatrixCache) Put(ctx context.Context, key ports.MatrixKey, m *domain.DistanceMatrix) error {
	b, err := encodeMatrix(m)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.prefix+key.String(), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis matrix cache set: %w", err)
	}
	return nil
}

func (c *RedisMatrixCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
