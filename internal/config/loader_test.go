// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/storyreel/internal/cache"
	"github.com/ManuGH/storyreel/internal/story"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoader_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader("", "1.2.3").Load()
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "1.2.3", cfg.Telemetry.ServiceVersion)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, filepath.Join(cfg.DataDir, "cache"), cfg.Cache.Dir)
	assert.Equal(t, def.Fetch, cfg.Fetch)
	assert.Equal(t, def.Playback, cfg.Playback)
}

func TestLoader_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
log_level: debug
users_file: users.yaml
playback:
  sort_unseen_first: true
  cache_expiry: 2h
cache:
  backend: memory
  memory_max_entries: 5
fetch:
  timeout: 3s
api:
  listen: 127.0.0.1:9000
`)

	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, filepath.Join(dir, "users.yaml"), cfg.UsersFile)
	assert.True(t, cfg.Playback.SortUnseenFirst)
	assert.Equal(t, 2*time.Hour, cfg.Playback.CacheExpiry)
	assert.Equal(t, cache.BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 5, cfg.Cache.MemoryMaxEntries)
	assert.Equal(t, 3*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "127.0.0.1:9000", cfg.API.Listen)
	// Untouched keys keep their defaults.
	assert.Equal(t, Default().Fetch.MaxAttempts, cfg.Fetch.MaxAttempts)
	assert.Equal(t, Default().FFmpeg, cfg.FFmpeg)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "cache:\n  backend: memory\n")
	t.Setenv("STORYREEL_CACHE_BACKEND", "redis")
	t.Setenv("STORYREEL_REDIS_ADDR", "redis:6379")
	t.Setenv("STORYREEL_SORT_UNSEEN_FIRST", "yes")
	t.Setenv("STORYREEL_FETCH_RATE", "2.5")
	t.Setenv("STORYREEL_API_TOKEN", "secret")

	l := NewLoader(path, "dev")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, cache.BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	assert.True(t, cfg.Playback.SortUnseenFirst)
	assert.InDelta(t, 2.5, cfg.Fetch.RatePerSec, 1e-9)
	assert.Equal(t, "secret", cfg.API.Token)
	assert.Contains(t, l.ConsumedEnvKeys, "STORYREEL_CACHE_BACKEND")
	assert.Contains(t, l.ConsumedEnvKeys, "STORYREEL_OTEL_SAMPLING_RATE")
}

func TestLoader_RejectsUnknownFields(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "cache:\n  backend: disk\n  sharding: 4\n")
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoader_EmptyFileKeepsDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "")
	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)
	assert.Equal(t, Default().API, cfg.API)
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"), "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestChanged(t *testing.T) {
	a := Default()
	b := a
	assert.Empty(t, Changed(a, b))

	b.Cache.Backend = cache.BackendMemory
	b.API.RateLimit = 1
	b.Fetch.Burst++
	want := []string{"cache", "fetch", "api"}
	if diff := cmp.Diff(want, Changed(a, b)); diff != "" {
		t.Fatalf("Changed mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_ExampleConfigIsValid(t *testing.T) {
	t.Setenv(EnvPrefix+"DATA_DIR", t.TempDir())
	cfg, err := NewLoader(filepath.Join("..", "..", "config.example.yaml"), "test").Load()
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	users, err := story.LoadUsersFile(cfg.UsersFile)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
