package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	redis "github.com/redis/go-redis/v9"
)

// RedisConfig selects the server and the hash that holds the fields.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string // hash name, default "groundtrack"
}

// Redis stores every field in one Redis hash so a clear is a single DEL.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis connects to the server in cfg and verifies it with a PING.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Key == "" {
		cfg.Key = "groundtrack"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &Redis{client: client, key: cfg.Key}, nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) SetAll(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.key, hashValues(entries)...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis HSET %s: %w", r.key, err)
	}
	return nil
}

// ReplaceAll deletes the hash and writes entries inside one MULTI/EXEC, so
// readers see either the old field set or the new one.
func (r *Redis) ReplaceAll(ctx context.Context, entries []Entry) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(entries) > 0 {
			pipe.HSet(ctx, r.key, hashValues(entries)...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis replace %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.HGet(ctx, r.key, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis HGET %s %s: %w", r.key, key, err)
	}
	return v, nil
}

func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.client.HKeys(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HKEYS %s: %w", r.key, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Ping reports whether the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func hashValues(entries []Entry) []any {
	values := make([]any, 0, 2*len(entries))
	for _, e := range entries {
		values = append(values, e.Key, e.Value)
	}
	return values
}
