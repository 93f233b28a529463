// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisKeyPrefix  = "storyreel:"
	redisFieldData  = "data"
	redisFieldStamp = "created"
	redisScanCount  = 200
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `yaml:"addr"`     // Redis server address (host:port)
	Password string `yaml:"password"` // Redis password (optional)
	DB       int    `yaml:"db"`       // Redis database number
}

// RedisBackend stores each entry as a hash {data, created} under
// "storyreel:<class>:<key>".
type RedisBackend struct {
	client *redis.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(config RedisConfig, logger zerolog.Logger) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", config.Addr).
		Int("db", config.DB).
		Msg("connected to Redis cache")

	return newRedisBackend(client, logger), nil
}

func newRedisBackend(client *redis.Client, logger zerolog.Logger) *RedisBackend {
	return &RedisBackend{client: client, logger: logger, now: time.Now}
}

// Name implements Backend.
func (r *RedisBackend) Name() string { return "redis" }

func redisKey(class Class, key string) string {
	return redisKeyPrefix + string(class) + ":" + key
}

func redisPattern(class Class) string {
	return redisKeyPrefix + string(class) + ":*"
}

// Get implements Backend.
func (r *RedisBackend) Get(ctx context.Context, class Class, key string) ([]byte, error) {
	if err := checkArgs(class, key); err != nil {
		return nil, err
	}
	val, err := r.client.HGet(ctx, redisKey(class, key), redisFieldData).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis cache: get: %w", err)
	}
	return val, nil
}

// Put implements Backend.
func (r *RedisBackend) Put(ctx context.Context, class Class, key string, data []byte, createdAt time.Time) error {
	if err := checkArgs(class, key); err != nil {
		return err
	}
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	err := r.client.HSet(ctx, redisKey(class, key),
		redisFieldData, data,
		redisFieldStamp, strconv.FormatInt(createdAt.UnixNano(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("redis cache: put: %w", err)
	}
	return nil
}

// Remove implements Backend.
func (r *RedisBackend) Remove(ctx context.Context, class Class, key string) error {
	if err := checkArgs(class, key); err != nil {
		return err
	}
	if err := r.client.Del(ctx, redisKey(class, key)).Err(); err != nil {
		return fmt.Errorf("redis cache: remove: %w", err)
	}
	return nil
}

// Sweep implements Backend.
func (r *RedisBackend) Sweep(ctx context.Context, class Class, cutoff time.Time) (int, error) {
	if !class.Valid() {
		return 0, ErrInvalidClass
	}
	removed := 0
	iter := r.client.Scan(ctx, 0, redisPattern(class), redisScanCount).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		raw, err := r.client.HGet(ctx, k, redisFieldStamp).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("redis cache: sweep stamp: %w", err)
		}
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			r.logger.Warn().Err(err).Str("key", k).Msg("redis cache: unreadable created stamp")
			continue
		}
		if !time.Unix(0, ts).Before(cutoff) {
			continue
		}
		if err := r.client.Del(ctx, k).Err(); err != nil {
			return removed, fmt.Errorf("redis cache: sweep delete: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis cache: sweep scan: %w", err)
	}
	return removed, nil
}

// Clear implements Backend.
func (r *RedisBackend) Clear(ctx context.Context, class Class) error {
	if !class.Valid() {
		return ErrInvalidClass
	}
	iter := r.client.Scan(ctx, 0, redisPattern(class), redisScanCount).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == redisScanCount {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis cache: clear: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis cache: clear scan: %w", err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis cache: clear: %w", err)
		}
	}
	return nil
}

// HealthCheck checks if Redis is available.
func (r *RedisBackend) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
