package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/solgate/ports"
)

// RedisStore is a Redis implementation of the Store interface
type RedisStore struct {
	client      *redis.Client
	noncePrefix string
	prefix      string
}

var _ ports.Store = (*RedisStore)(nil)

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:      client,
		noncePrefix: "solgate:nonce:",
		prefix:      "solgate:invalidated:",
	}
}

// PutNonce stores an outstanding nonce with expiration
func (s *RedisStore) PutNonce(ctx context.Context, nonce string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.noncePrefix+nonce, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to store nonce: %w", err)
	}
	return nil
}

// ConsumeNonce deletes the nonce key. Redis deletes atomically, so only one
// caller observes the key as removed.
func (s *RedisStore) ConsumeNonce(ctx context.Context, nonce string) (bool, error) {
	removed, err := s.client.Del(ctx, s.noncePrefix+nonce).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return removed == 1, nil
}

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	key := s.prefix + tokenID

	if err := s.client.Set(ctx, key, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	key := s.prefix + tokenID

	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}

	return val > 0, nil
}
