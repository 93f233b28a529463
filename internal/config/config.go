// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the daemon configuration from a YAML file, applies
// STORYREEL_* environment overrides and keeps the active configuration for
// hot reload.
package config

import (
	"time"

	"github.com/ManuGH/storyreel/internal/cache"
	"github.com/ManuGH/storyreel/internal/media"
	"github.com/ManuGH/storyreel/internal/story"
	"github.com/ManuGH/storyreel/internal/telemetry"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STORYREEL_"

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	// Version is stamped from the binary, never read from the file.
	Version string `yaml:"-"`

	LogLevel  string `yaml:"log_level"`
	UsersFile string `yaml:"users_file"`
	DataDir   string `yaml:"data_dir"`

	Playback  PlaybackConfig    `yaml:"playback"`
	Cache     cache.Config      `yaml:"cache"`
	Fetch     media.FetchConfig `yaml:"fetch"`
	Image     ImageConfig       `yaml:"image"`
	FFmpeg    FFmpegConfig      `yaml:"ffmpeg"`
	API       APIConfig         `yaml:"api"`
	Telemetry telemetry.Config  `yaml:"telemetry"`
}

// PlaybackConfig tunes the story engine.
type PlaybackConfig struct {
	// SortUnseenFirst moves users with unseen stories to the front.
	SortUnseenFirst bool `yaml:"sort_unseen_first"`
	// CacheExpiry is the age past which story media is swept at startup.
	CacheExpiry  time.Duration `yaml:"cache_expiry"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

// ImageConfig bounds decoded images.
type ImageConfig struct {
	MaxWidth   int `yaml:"max_width"`
	MaxHeight  int `yaml:"max_height"`
	AvatarSize int `yaml:"avatar_size"`
	// MaxPixels rejects larger images before decoding. Zero disables the check.
	MaxPixels int `yaml:"max_pixels"`
}

// Target returns the story image bound.
func (c ImageConfig) Target() media.Size {
	return media.Size{Width: c.MaxWidth, Height: c.MaxHeight}
}

// AvatarTarget returns the avatar bound.
func (c ImageConfig) AvatarTarget() media.Size {
	return media.Size{Width: c.AvatarSize, Height: c.AvatarSize}
}

// FFmpegConfig locates the transcoding binaries and bounds exports.
type FFmpegConfig struct {
	Bin          string        `yaml:"bin"`
	FFprobeBin   string        `yaml:"ffprobe_bin"`
	StartTimeout time.Duration `yaml:"start_timeout"`
	StallTimeout time.Duration `yaml:"stall_timeout"`
}

// APIConfig configures the control API.
type APIConfig struct {
	Listen string `yaml:"listen"`
	// RateLimit is the number of requests per minute per client IP. Zero
	// disables limiting.
	RateLimit int `yaml:"rate_limit"`
	// Token, when set, is required as a bearer token on mutating routes.
	Token string `yaml:"token"`
}

// Default returns the built-in configuration.
func Default() AppConfig {
	return AppConfig{
		LogLevel:  "info",
		UsersFile: "users.yaml",
		DataDir:   "data",
		Playback: PlaybackConfig{
			CacheExpiry:  story.DefaultCacheExpiry,
			TickInterval: story.TickInterval,
		},
		Cache: cache.Config{
			Backend:          cache.BackendDisk,
			MemoryMaxEntries: cache.DefaultMemoryMaxEntries,
			MemoryMaxBytes:   cache.DefaultMemoryMaxBytes,
			Redis:            cache.RedisConfig{Addr: "localhost:6379"},
		},
		Fetch: media.DefaultFetchConfig(),
		Image: ImageConfig{
			MaxWidth:   1080,
			MaxHeight:  1920,
			AvatarSize: 96,
			MaxPixels:  50_000_000,
		},
		FFmpeg: FFmpegConfig{
			Bin:          "ffmpeg",
			FFprobeBin:   "ffprobe",
			StartTimeout: media.DefaultExportStartTimeout,
			StallTimeout: media.DefaultExportStallTimeout,
		},
		API: APIConfig{
			Listen:    ":8088",
			RateLimit: 120,
		},
		Telemetry: telemetry.Config{
			ServiceName:  "storyreel",
			ExporterType: telemetry.ExporterGRPC,
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
