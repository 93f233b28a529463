// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command storyreel runs the story engine as a headless daemon with an HTTP
// control API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ManuGH/storyreel/internal/api"
	"github.com/ManuGH/storyreel/internal/cache"
	"github.com/ManuGH/storyreel/internal/config"
	"github.com/ManuGH/storyreel/internal/health"
	xglog "github.com/ManuGH/storyreel/internal/log"
	"github.com/ManuGH/storyreel/internal/media"
	"github.com/ManuGH/storyreel/internal/story"
	"github.com/ManuGH/storyreel/internal/telemetry"
	"github.com/ManuGH/storyreel/internal/version"
	"github.com/ManuGH/storyreel/internal/viewer"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: "storyreel", Version: version.Version})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, logger); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.failed").Msg("daemon exited with error")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, logger zerolog.Logger) error {
	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: "storyreel", Version: cfg.Version})
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str(xglog.FieldPath, configPath).
		Str("users_file", cfg.UsersFile).
		Str(xglog.FieldBackend, cfg.Cache.Backend).
		Msg("configuration loaded")

	if err := health.PerformStartupChecks(cfg); err != nil {
		return err
	}

	tp, err := telemetry.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	users, err := story.LoadUsersFile(cfg.UsersFile)
	if err != nil {
		return err
	}

	backend, err := cache.Open(cfg.Cache, xglog.WithComponent("cache"))
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	store := cache.NewStore(backend, cache.WithSpoolDir(filepath.Join(cfg.DataDir, "spool")))
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("close cache")
		}
	}()

	transcoder := media.NewFFmpegTranscoder(cfg.FFmpeg.Bin, cfg.FFmpeg.FFprobeBin)
	transcoder.StartTimeout = cfg.FFmpeg.StartTimeout
	transcoder.StallTimeout = cfg.FFmpeg.StallTimeout
	if err := os.MkdirAll(filepath.Join(cfg.DataDir, "exports"), 0o750); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	cutoff := time.Now().Add(-cfg.Playback.CacheExpiry)

	fetcher, err := media.NewHTTPFetcher(cfg.Fetch, nil)
	if err != nil {
		return err
	}
	v := viewer.New(users, viewer.Deps{
		Store:      store,
		Fetcher:    fetcher,
		Codec:      media.StdCodec{MaxPixels: cfg.Image.MaxPixels},
		Transcoder: transcoder,
	}, viewer.Options{
		Sorted:            cfg.Playback.SortUnseenFirst,
		OnStorySeen:       storySeenLogger(logger),
		CacheExpireBefore: &cutoff,
		ImageTarget:       cfg.Image.Target(),
		AvatarTarget:      cfg.Image.AvatarTarget(),
		ExportDir:         filepath.Join(cfg.DataDir, "exports"),
		TickInterval:      cfg.Playback.TickInterval,
	})
	defer v.Close()
	if err := v.Start(ctx); err != nil {
		return err
	}

	holder := config.NewHolder(cfg, loader)
	reloads := make(chan config.AppConfig, 1)
	holder.RegisterListener(reloads)
	if err := holder.StartWatcher(ctx); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_failed").Msg("config hot reload disabled")
	}
	defer holder.Stop()

	checks := health.NewManager(cfg.Version)
	checks.RegisterChecker(health.NewFileChecker("users_file", cfg.UsersFile))
	checks.RegisterChecker(health.NewBinaryChecker("ffmpeg", cfg.FFmpeg.Bin))
	checks.RegisterChecker(health.NewBinaryChecker("ffprobe", cfg.FFmpeg.FFprobeBin))
	checks.RegisterChecker(health.NewCacheChecker(store.Backend))

	srv := &http.Server{
		Addr: cfg.API.Listen,
		Handler: api.New(v, api.Config{
			Token:     cfg.API.Token,
			RateLimit: cfg.API.RateLimit,
			Tracing:   cfg.Telemetry.Enabled,
			Version:   cfg.Version,
			Health:    checks,
		}).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str(xglog.FieldEvent, "api.listening").
			Str("addr", srv.Addr).
			Int("users", len(users)).
			Msg("control API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info().Str(xglog.FieldEvent, "daemon.shutdown").Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		current := cfg
		for {
			select {
			case <-gctx.Done():
				return nil
			case next := <-reloads:
				applyReload(v, current, next, logger)
				current = next
			}
		}
	})
	return g.Wait()
}

func storySeenLogger(logger zerolog.Logger) func(userID string, index int) {
	return func(userID string, index int) {
		logger.Info().
			Str(xglog.FieldEvent, "story.seen").
			Str(xglog.FieldUserID, userID).
			Int(xglog.FieldStoryIndex, index).
			Msg("story seen")
	}
}

// applyReload applies the sections that can change at runtime. Everything
// else needs a restart.
func applyReload(v *viewer.Viewer, old, next config.AppConfig, logger zerolog.Logger) {
	for _, section := range config.Changed(old, next) {
		switch section {
		case "log_level":
			xglog.Configure(xglog.Config{Level: next.LogLevel, Service: "storyreel", Version: next.Version})
		case "cache":
			b, err := cache.Open(next.Cache, xglog.WithComponent("cache"))
			if err != nil {
				logger.Error().Err(err).
					Str(xglog.FieldEvent, "cache.swap_failed").
					Str(xglog.FieldBackend, next.Cache.Backend).
					Msg("keeping current cache backend")
				continue
			}
			prev := v.SetCacheBackend(b)
			if err := prev.Close(); err != nil {
				logger.Warn().Err(err).Str(xglog.FieldBackend, prev.Name()).Msg("close previous cache backend")
			}
			logger.Info().
				Str(xglog.FieldEvent, "cache.swapped").
				Str(xglog.FieldBackend, b.Name()).
				Msg("cache backend swapped")
		default:
			logger.Warn().
				Str(xglog.FieldEvent, "config.restart_required").
				Str("section", section).
				Msg("config change takes effect after restart")
		}
	}
}
