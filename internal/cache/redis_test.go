// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/ManuGH/storyreel/internal/cachekey"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMiniRedis creates a test Redis server using miniredis.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisBackend) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return mr, newRedisBackend(client, zerolog.Nop())
}

func TestRedisBackend_StoresHashWithStamp(t *testing.T) {
	mr, b := setupMiniRedis(t)
	ctx := context.Background()

	created := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	key := cachekey.Key("https://example.com/v.mp4")
	require.NoError(t, b.Put(ctx, ClassStoryVideo, key, []byte("video"), created))

	hkey := "storyreel:story-video:" + key
	assert.Equal(t, "video", mr.HGet(hkey, "data"))
	assert.Equal(t, strconv.FormatInt(created.UnixNano(), 10), mr.HGet(hkey, "created"))
}

func TestRedisBackend_ClearOnlyTouchesClass(t *testing.T) {
	mr, b := setupMiniRedis(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := cachekey.Key("https://example.com/" + strconv.Itoa(i))
		require.NoError(t, b.Put(ctx, ClassStoryImage, key, []byte("s"), time.Time{}))
		require.NoError(t, b.Put(ctx, ClassProfile, key, []byte("p"), time.Time{}))
	}
	require.NoError(t, b.Clear(ctx, ClassStoryImage))

	assert.Len(t, mr.Keys(), 5)
	for _, k := range mr.Keys() {
		assert.Contains(t, k, "storyreel:profile:")
	}
}

func TestRedisBackend_SweepSkipsUnreadableStamp(t *testing.T) {
	mr, b := setupMiniRedis(t)
	ctx := context.Background()

	mr.HSet("storyreel:story-image:broken", "data", "x")
	mr.HSet("storyreel:story-image:broken", "created", "not-a-number")

	n, err := b.Sweep(ctx, ClassStoryImage, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, mr.Exists("storyreel:story-image:broken"))
}

func TestRedisBackend_HealthCheck(t *testing.T) {
	mr, b := setupMiniRedis(t)
	require.NoError(t, b.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, b.HealthCheck(context.Background()))
}

func TestNewRedisBackend_ConnectFailure(t *testing.T) {
	_, err := NewRedisBackend(RedisConfig{Addr: "127.0.0.1:1"}, zerolog.Nop())
	require.Error(t, err)
}
