package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/liamashdown/cryptoguard/internal/metrics"
)

const redisTimeout = 500 * time.Millisecond

// Redis stores entries in a shared Redis instance
type Redis struct {
	client *redis.Client
}

// NewRedis connects lazily; the first command dials
func NewRedis(addr, password string, db int) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Get returns the stored value; a missing key is not an error
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheLookup("redis", "miss")
		return nil, false, nil
	}
	if err != nil {
		metrics.RecordCacheLookup("redis", "error")
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	metrics.RecordCacheLookup("redis", "hit")
	return val, true, nil
}

// Set stores val with the given expiry
func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := r.client.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity for the readiness check
func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool
func (r *Redis) Close() error {
	return r.client.Close()
}
