package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "vidstream:revoked:"

// RedisStore shares revocations across replicas. Expiry is delegated to
// Redis key TTLs.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Revoke(ctx context.Context, key string, expiresAt time.Time) error {
	ttl := expiresAt.Add(RetentionSlack).Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	// A key always derives from the same token, so re-setting yields the same deadline.
	if err := s.client.Set(ctx, keyPrefix+key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revocation: %w", err)
	}
	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
