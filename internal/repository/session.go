package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	errs "goplay/internal/errors"
)

const sessionPrefix = "session:"

// RedisSessionStorage resolves session cookies issued by the identity
// provider to user ids.
type RedisSessionStorage struct {
	client *redis.Client
}

func NewSessionRedisStorage(client *redis.Client) *RedisSessionStorage {
	return &RedisSessionStorage{client: client}
}

func (r *RedisSessionStorage) GetUserIDBySession(ctx context.Context, sessionID string) (string, error) {
	userID, err := r.client.Get(ctx, sessionPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", errs.ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}
	return userID, nil
}

func (r *RedisSessionStorage) StoreSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	return r.client.Set(ctx, sessionPrefix+sessionID, userID, ttl).Err()
}

func (r *RedisSessionStorage) DeleteSession(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionPrefix+sessionID).Err()
}
