// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Backend names accepted by Open.
const (
	BackendDisk   = "disk"
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendSqlite = "sqlite"
	BackendRedis  = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Backend string      `yaml:"backend"`
	Dir     string      `yaml:"dir"`
	Redis   RedisConfig `yaml:"redis"`
	// MemoryMaxEntries and MemoryMaxBytes bound the memory backend.
	MemoryMaxEntries int   `yaml:"memory_max_entries"`
	MemoryMaxBytes   int64 `yaml:"memory_max_bytes"`
}

// Open creates a Backend based on the backend configuration.
func Open(cfg Config, logger zerolog.Logger) (Backend, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = BackendDisk
	}

	switch backend {
	case BackendDisk:
		return NewDiskBackend(cfg.Dir)
	case BackendMemory:
		maxEntries, maxBytes := cfg.MemoryMaxEntries, cfg.MemoryMaxBytes
		if maxEntries == 0 {
			maxEntries = DefaultMemoryMaxEntries
		}
		if maxBytes == 0 {
			maxBytes = DefaultMemoryMaxBytes
		}
		return NewMemoryBackend(maxEntries, maxBytes), nil
	case BackendBadger:
		dir := filepath.Join(cfg.Dir, "badger")
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("badger cache: create %s: %w", dir, err)
		}
		return OpenBadgerBackend(dir)
	case BackendSqlite:
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("sqlite cache: create %s: %w", cfg.Dir, err)
		}
		return OpenSqliteBackend(filepath.Join(cfg.Dir, "cache.sqlite"))
	case BackendRedis:
		return NewRedisBackend(cfg.Redis, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", backend)
	}
}
