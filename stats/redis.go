package stats

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	totalKey   = "total"
	perChatKey = "chats"
)

// RedisStore is a Store backed by Redis, so counters survive restarts and can
// be shared between bot instances.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store using an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "linktrim:stats:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// NewRedisStoreFromURL creates a Redis-backed store from a Redis URL.
// URL format: redis://[user[:password]@]host[:port][/db][?option=value]
func NewRedisStoreFromURL(redisURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), prefix), nil
}

// Incr records one rewritten message in the given chat.
func (r *RedisStore) Incr(ctx context.Context, chatID int64) error {
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, r.prefix+totalKey)
	pipe.HIncrBy(ctx, r.prefix+perChatKey, strconv.FormatInt(chatID, 10), 1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment counters: %w", err)
	}
	return nil
}

// Snapshot returns the current counters.
func (r *RedisStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	total, err := r.client.Get(ctx, r.prefix+totalKey).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read total counter: %w", err)
	}

	fields, err := r.client.HGetAll(ctx, r.prefix+perChatKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read per-chat counters: %w", err)
	}

	perChat := make(map[int64]int64, len(fields))
	for field, value := range fields {
		chatID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		count, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		perChat[chatID] = count
	}

	return &Snapshot{Total: total, PerChat: perChat}, nil
}

// Close closes the underlying Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
