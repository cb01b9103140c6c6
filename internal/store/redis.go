package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"schoolbus-backend/internal/models"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "schoolbus:"

// RedisClient is the subset of *redis.Client the store needs
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisStore keeps each record as a JSON string and announces every write on
// a channel named after the key, so other processes can follow a bus live.
type RedisStore struct {
	client RedisClient
	ttl    time.Duration
}

// NewRedisStore wraps client. Records expire after ttl (0 keeps them forever).
func NewRedisStore(client RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Key maps a record path to its redis key
func Key(path string) string {
	return redisKeyPrefix + strings.ReplaceAll(strings.Trim(path, "/"), "/", ":")
}

func (s *RedisStore) Read(ctx context.Context, path string) (*models.LocationRecord, error) {
	raw, err := s.client.Get(ctx, Key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var record models.LocationRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode record at %s: %w", path, err)
	}
	return &record, nil
}

func (s *RedisStore) Write(ctx context.Context, path string, record models.LocationRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	key := Key(path)
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	if err := s.client.Publish(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
