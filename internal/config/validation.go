// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"github.com/ManuGH/storyreel/internal/cache"
	"github.com/ManuGH/storyreel/internal/telemetry"
	"github.com/ManuGH/storyreel/internal/validate"
)

// Validate checks cfg and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.LogLevel("LogLevel", cfg.LogLevel)
	v.File("UsersFile", cfg.UsersFile)

	v.PositiveDuration("Playback.CacheExpiry", cfg.Playback.CacheExpiry)
	v.PositiveDuration("Playback.TickInterval", cfg.Playback.TickInterval)

	v.OneOf("Cache.Backend", cfg.Cache.Backend, []string{
		cache.BackendDisk, cache.BackendMemory, cache.BackendBadger, cache.BackendSqlite, cache.BackendRedis,
	})
	switch cfg.Cache.Backend {
	case cache.BackendDisk, cache.BackendBadger, cache.BackendSqlite:
		v.Directory("Cache.Dir", cfg.Cache.Dir, false)
	case cache.BackendRedis:
		v.NotEmpty("Cache.Redis.Addr", cfg.Cache.Redis.Addr)
		v.Range("Cache.Redis.DB", cfg.Cache.Redis.DB, 0, 15)
	case cache.BackendMemory:
		v.NonNegative("Cache.MemoryMaxEntries", cfg.Cache.MemoryMaxEntries)
	}

	v.PositiveDuration("Fetch.Timeout", cfg.Fetch.Timeout)
	v.Range("Fetch.MaxAttempts", cfg.Fetch.MaxAttempts, 1, 10)
	v.NonNegative("Fetch.Burst", cfg.Fetch.Burst)
	if cfg.Fetch.RatePerSec < 0 {
		v.AddError("Fetch.RatePerSec", "value cannot be negative", cfg.Fetch.RatePerSec)
	}
	if cfg.Fetch.MaxBytes <= 0 {
		v.AddError("Fetch.MaxBytes", "value must be positive", cfg.Fetch.MaxBytes)
	}
	if _, err := cfg.Fetch.HostPolicy(); err != nil {
		v.AddError("Fetch.AllowHosts", err.Error(), cfg.Fetch.AllowHosts)
	}

	v.NonNegative("Image.MaxWidth", cfg.Image.MaxWidth)
	v.NonNegative("Image.MaxHeight", cfg.Image.MaxHeight)
	v.NonNegative("Image.AvatarSize", cfg.Image.AvatarSize)
	v.NonNegative("Image.MaxPixels", cfg.Image.MaxPixels)

	v.NotEmpty("FFmpeg.Bin", cfg.FFmpeg.Bin)
	v.NotEmpty("FFmpeg.FFprobeBin", cfg.FFmpeg.FFprobeBin)
	v.PositiveDuration("FFmpeg.StartTimeout", cfg.FFmpeg.StartTimeout)
	v.PositiveDuration("FFmpeg.StallTimeout", cfg.FFmpeg.StallTimeout)

	v.ListenAddr("API.Listen", cfg.API.Listen)
	v.NonNegative("API.RateLimit", cfg.API.RateLimit)

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.ExporterType", cfg.Telemetry.ExporterType,
			[]string{telemetry.ExporterGRPC, telemetry.ExporterHTTP})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.RangeFloat("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
