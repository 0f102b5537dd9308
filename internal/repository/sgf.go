package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	errs "goplay/internal/errors"
)

const sgfPrefix = "sgf:"

// SGFStorage keeps the running SGF record of each game in Redis.
type SGFStorage struct {
	client *redis.Client
}

func NewSGFStorage(client *redis.Client) *SGFStorage {
	return &SGFStorage{client: client}
}

func sgfKey(gameID int64) string {
	return sgfPrefix + strconv.FormatInt(gameID, 10)
}

func (s *SGFStorage) SaveSGF(ctx context.Context, gameID int64, text string) error {
	return s.client.Set(ctx, sgfKey(gameID), text, 0).Err()
}

func (s *SGFStorage) LoadSGF(ctx context.Context, gameID int64) (string, error) {
	text, err := s.client.Get(ctx, sgfKey(gameID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", errs.ErrGameNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load sgf of game %d: %w", gameID, err)
	}
	return text, nil
}
