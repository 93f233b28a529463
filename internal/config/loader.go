// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
// defaults < file < environment.
type Loader struct {
	configPath string
	version    string
	// ConsumedEnvKeys records every environment key the last Load read.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty configPath loads
// defaults and environment only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseString(EnvPrefix+key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseBool(EnvPrefix+key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseInt(EnvPrefix+key, defaultVal)
}

func (l *Loader) envInt64(key string, defaultVal int64) int64 {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseInt64(EnvPrefix+key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseDuration(EnvPrefix+key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseFloat(EnvPrefix+key, defaultVal)
}

// Load builds the configuration. It does not validate; callers run Validate.
func (l *Loader) Load() (AppConfig, error) {
	clear(l.ConsumedEnvKeys)

	// 1. Defaults
	cfg := Default()

	// 2. File (decoded over the defaults so omitted keys keep them)
	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	// 3. Environment (highest priority)
	l.mergeEnv(&cfg)

	// 4. Derived paths
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(cfg.DataDir, "cache")
	}
	if cfg.UsersFile != "" && !filepath.IsAbs(cfg.UsersFile) && l.configPath != "" {
		cfg.UsersFile = filepath.Join(filepath.Dir(l.configPath), cfg.UsersFile)
	}

	cfg.Version = l.version
	cfg.Telemetry.ServiceVersion = l.version
	return cfg, nil
}

func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	// #nosec G304 -- the config path is operator supplied
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	// Parse YAML with strict mode (unknown fields cause errors)
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.UsersFile = l.envString("USERS_FILE", cfg.UsersFile)
	cfg.DataDir = l.envString("DATA_DIR", cfg.DataDir)

	cfg.Playback.SortUnseenFirst = l.envBool("SORT_UNSEEN_FIRST", cfg.Playback.SortUnseenFirst)
	cfg.Playback.CacheExpiry = l.envDuration("CACHE_EXPIRY", cfg.Playback.CacheExpiry)
	cfg.Playback.TickInterval = l.envDuration("TICK_INTERVAL", cfg.Playback.TickInterval)

	cfg.Cache.Backend = l.envString("CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.Dir = l.envString("CACHE_DIR", cfg.Cache.Dir)
	cfg.Cache.MemoryMaxEntries = l.envInt("CACHE_MEMORY_MAX_ENTRIES", cfg.Cache.MemoryMaxEntries)
	cfg.Cache.MemoryMaxBytes = l.envInt64("CACHE_MEMORY_MAX_BYTES", cfg.Cache.MemoryMaxBytes)
	cfg.Cache.Redis.Addr = l.envString("REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = l.envString("REDIS_PASSWORD", cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = l.envInt("REDIS_DB", cfg.Cache.Redis.DB)

	cfg.Fetch.Timeout = l.envDuration("FETCH_TIMEOUT", cfg.Fetch.Timeout)
	cfg.Fetch.MaxBytes = l.envInt64("FETCH_MAX_BYTES", cfg.Fetch.MaxBytes)
	cfg.Fetch.RatePerSec = l.envFloat("FETCH_RATE", cfg.Fetch.RatePerSec)
	cfg.Fetch.Burst = l.envInt("FETCH_BURST", cfg.Fetch.Burst)
	cfg.Fetch.MaxAttempts = l.envInt("FETCH_MAX_ATTEMPTS", cfg.Fetch.MaxAttempts)
	cfg.Fetch.UserAgent = l.envString("FETCH_USER_AGENT", cfg.Fetch.UserAgent)

	cfg.FFmpeg.Bin = l.envString("FFMPEG_BIN", cfg.FFmpeg.Bin)
	cfg.FFmpeg.FFprobeBin = l.envString("FFPROBE_BIN", cfg.FFmpeg.FFprobeBin)
	cfg.FFmpeg.StallTimeout = l.envDuration("FFMPEG_STALL_TIMEOUT", cfg.FFmpeg.StallTimeout)

	cfg.API.Listen = l.envString("LISTEN", cfg.API.Listen)
	cfg.API.RateLimit = l.envInt("API_RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.Token = l.envString("API_TOKEN", cfg.API.Token)

	cfg.Telemetry.Enabled = l.envBool("OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = l.envString("OTEL_EXPORTER", cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = l.envString("OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Environment = l.envString("OTEL_ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.SamplingRate = l.envFloat("OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}
