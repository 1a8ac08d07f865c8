package settings

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "board:settings:"

// Redis persists settings in a shared redis, for deployments where several
// boards or a companion dashboard read the same configuration.
type Redis struct{ rdb *redis.Client }

func NewRedis(rdb *redis.Client) *Redis { return &Redis{rdb: rdb} }

func (s *Redis) key(k string) string { return keyPrefix + strings.TrimSpace(k) }

func (s *Redis) Get(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrEmptyKey
	}
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (s *Redis) Set(ctx context.Context, key, value string) error {
	if err := validate(key, value); err != nil {
		return err
	}
	// Settings have no TTL; they outlive any game.
	return s.rdb.Set(ctx, s.key(key), value, 0).Err()
}
