package cursor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxAdvanceAttempts = 8

// RedisStore keeps cursors in Redis so they survive restarts.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "anchord:cursor:"}
}

func (s *RedisStore) key(account string) string {
	return s.prefix + account
}

func (s *RedisStore) Get(ctx context.Context, account string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(account)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cursor %q: %w", account, err)
	}
	return v, true, nil
}

// Advance moves the cursor inside a WATCH/MULTI transaction, retrying when
// another writer changed the key in between.
func (s *RedisStore) Advance(ctx context.Context, account, candidate string) (bool, error) {
	key := s.key(account)
	for attempt := 0; attempt < maxAdvanceAttempts; attempt++ {
		moved := false
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.Get(ctx, key).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if !Newer(candidate, cur) {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, key, candidate, 0)
				return nil
			})
			if err == nil {
				moved = true
			}
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("advance cursor %q: %w", account, err)
		}
		return moved, nil
	}
	return false, fmt.Errorf("advance cursor %q: too much contention", account)
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
