package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"predictengine/internal/model"
)

// RedisStore is the alternate PositionStore backend: useful when multiple
// live-engine instances need to share position state instead of each
// owning its own JSON directory.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisStoreConfig configures a new RedisStore.
type RedisStoreConfig struct {
	URL      string
	Password string
	DB       int
	Prefix   string // key prefix, defaults to "position:"
}

// OpenRedis connects to Redis and verifies the connection with a Ping.
func OpenRedis(ctx context.Context, cfg RedisStoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "position:"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// SavePosition writes pos as a JSON value under prefix+conditionID. No TTL
// is set: an open position must survive until explicitly closed or deleted.
func (s *RedisStore) SavePosition(conditionID string, pos model.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, s.key(conditionID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set position: %w", err)
	}
	return nil
}

// LoadPosition returns nil, nil if no key exists for conditionID.
func (s *RedisStore) LoadPosition(conditionID string) (*model.Position, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := s.client.Get(ctx, s.key(conditionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get position: %w", err)
	}
	var pos model.Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return nil, fmt.Errorf("unmarshal position: %w", err)
	}
	return &pos, nil
}

// DeletePosition removes the key; deleting an absent key is not an error.
func (s *RedisStore) DeletePosition(conditionID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, s.key(conditionID)).Err(); err != nil {
		return fmt.Errorf("redis delete position: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(conditionID string) string {
	return s.prefix + conditionID
}

var _ PositionStore = (*RedisStore)(nil)
