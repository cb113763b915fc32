package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/IshaanNene/divanscraper/internal/config"
	"github.com/IshaanNene/divanscraper/internal/types"
)

// RedisStorage mirrors the record list into a Redis list of JSON
// documents. The key is rewritten atomically on every flush.
type RedisStorage struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

// NewRedisStorage connects to cfg.Addr and pings the server.
func NewRedisStorage(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisStorage(client, cfg.Key, logger), nil
}

func newRedisStorage(client *redis.Client, key string, logger *slog.Logger) *RedisStorage {
	return &RedisStorage{
		client: client,
		key:    key,
		logger: logger.With("component", "redis_storage"),
	}
}

func (s *RedisStorage) Name() string { return "redis" }

func (s *RedisStorage) Flush(ctx context.Context, records []types.Record) error {
	if len(records) == 0 {
		return nil
	}

	values := make([]any, len(records))
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("encode record: %w", err)}
		}
		values[i] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.RPush(ctx, s.key, values...)
		return nil
	})
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("redis write: %w", err)}
	}

	s.logger.Debug("records mirrored to redis", "key", s.key, "count", len(records))
	return nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
