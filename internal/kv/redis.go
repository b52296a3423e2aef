// internal/kv/redis.go
//
// Redis implementation of Store.
//
// go-redis returns redis.Nil for absent keys; this adapter folds that
// into the (value, ok, err) miss convention so callers never import the
// redis package.  DeletePattern walks the keyspace with SCAN rather than
// KEYS to stay O(batch) per round trip on shared instances.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis adapts a go-redis client to the Store contract.
type Redis struct {
	client *redis.Client
}

// NewRedis dials the backend and verifies connectivity before returning.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Redis{client: cli}, nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *Redis) PutJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, true, nil
}

func (r *Redis) PutBytes(ctx context.Context, key string, b []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (r *Redis) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			removed += int(n)
			if err != nil {
				return removed, fmt.Errorf("redis del batch: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
