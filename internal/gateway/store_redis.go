// Package gateway provides the Redis counter store.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStoreOptions configures the Redis counter store.
type RedisStoreOptions struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// RedisCounterStore implements CounterStore on a shared Redis instance.
type RedisCounterStore struct {
	client *redis.Client
	prefix string
}

var _ CounterStore = (*RedisCounterStore)(nil)

// NewRedisCounterStore connects to Redis and verifies reachability.
func NewRedisCounterStore(opts RedisStoreOptions) (*RedisCounterStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "ratelimit"
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisCounterStore{client: client, prefix: opts.KeyPrefix}, nil
}

// Close releases the underlying connection.
func (s *RedisCounterStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Healthy reports whether the store answers a ping.
func (s *RedisCounterStore) Healthy(ctx context.Context) bool {
	if s == nil || s.client == nil {
		return false
	}
	return s.client.Ping(ctx).Err() == nil
}

// RecordAndCount runs prune, insert, count, and expire as one MULTI/EXEC
// unit. Entries are "<unixMilli>-<uuid>" members scored by unix-milli
// timestamp; the uuid keeps same-millisecond inserts from colliding.
func (s *RedisCounterStore) RecordAndCount(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	if s == nil || s.client == nil {
		return 0, errors.New("redis counter store is not initialized")
	}
	if key == "" || window <= 0 {
		return 0, ErrInvalidInput
	}

	nowMS := now.UnixMilli()
	cutoff := nowMS - window.Milliseconds()
	member := strconv.FormatInt(nowMS, 10) + "-" + uuid.NewString()
	fullKey := s.prefix + ":" + key

	var card *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, fullKey, "0", strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, fullKey, redis.Z{Score: float64(nowMS), Member: member})
		card = pipe.ZCard(ctx, fullKey)
		pipe.Expire(ctx, fullKey, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return card.Val(), nil
}

// Increment bumps a plain counter and refreshes its TTL.
func (s *RedisCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if s == nil || s.client == nil {
		return 0, errors.New("redis counter store is not initialized")
	}
	if key == "" || ttl <= 0 {
		return 0, ErrInvalidInput
	}
	fullKey := s.prefix + ":" + key

	pipe := s.client.TxPipeline()
	counter := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return counter.Val(), nil
}
