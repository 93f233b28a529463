// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package slot

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/ManuGH/storyreel/internal/cache"
	xglog "github.com/ManuGH/storyreel/internal/log"
	"github.com/ManuGH/storyreel/internal/media"
	"github.com/ManuGH/storyreel/internal/metrics"
	"github.com/ManuGH/storyreel/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// VideoRequest describes one video to resolve.
type VideoRequest struct {
	URL       string
	CreatedAt time.Time
}

// VideoState is a snapshot of a VideoSlot. Source is what the player
// should open: a cached local file, or the original URL.
type VideoState struct {
	Phase  Phase
	URL    string
	Source string
	Cached bool
	Err    error
}

// VideoSlot resolves videos. Uncached videos succeed immediately with the
// original URL while an export into the cache runs in the background.
type VideoSlot struct {
	m          machine
	store      *cache.Store
	transcoder media.Transcoder
	tempDir    string
	logger     zerolog.Logger
	tracer     trace.Tracer

	state      VideoState
	listener   func(VideoState)
	onDuration func(url string, seconds float64)
}

// NewVideoSlot wires a slot to its collaborators. Exports are staged in
// tempDir, or the system temp directory when empty.
func NewVideoSlot(store *cache.Store, transcoder media.Transcoder, tempDir string) *VideoSlot {
	return &VideoSlot{
		m:          machine{kind: "video"},
		store:      store,
		transcoder: transcoder,
		tempDir:    tempDir,
		logger:     xglog.WithComponent("slot.video"),
		tracer:     telemetry.Tracer("storyreel/slot"),
	}
}

// OnChange registers the transition listener.
func (s *VideoSlot) OnChange(fn func(VideoState)) {
	s.m.mu.Lock()
	s.listener = fn
	s.m.mu.Unlock()
}

// OnDuration registers the listener for probed durations. It fires at most
// once per request and only while the request is current. A duration that
// cannot be determined is reported as 0.
func (s *VideoSlot) OnDuration(fn func(url string, seconds float64)) {
	s.m.mu.Lock()
	s.onDuration = fn
	s.m.mu.Unlock()
}

// State returns the latest published state.
func (s *VideoSlot) State() VideoState {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.state
}

// Load resolves req. Loading the URL that is already current is a no-op.
func (s *VideoSlot) Load(ctx context.Context, req VideoRequest) {
	runCtx, gen, ok := s.m.begin(ctx, req.URL)
	if !ok {
		return
	}
	s.set(gen, VideoState{Phase: PhaseLoading, URL: req.URL})

	go func() {
		defer s.m.wg.Done()
		s.run(runCtx, gen, req)
	}()
}

// Cancel aborts in-flight work, including background exports.
func (s *VideoSlot) Cancel() { s.m.detach() }

// Close cancels in-flight work and waits for it, exports included.
func (s *VideoSlot) Close() { s.m.close() }

func (s *VideoSlot) set(gen uint64, st VideoState) bool {
	var fn func(VideoState)
	return s.m.publish(gen, st.Phase,
		func() {
			s.state = st
			fn = s.listener
		},
		func() {
			if fn != nil {
				fn(st)
			}
		})
}

func (s *VideoSlot) run(ctx context.Context, gen uint64, req VideoRequest) {
	if err := media.ValidateURL(req.URL); err != nil {
		s.set(gen, VideoState{Phase: PhaseFailed, URL: req.URL, Err: err})
		return
	}

	if path, ok := s.store.Locate(ctx, req.URL, cache.ClassStoryVideo); ok {
		if s.set(gen, VideoState{Phase: PhaseSuccess, URL: req.URL, Source: path, Cached: true}) {
			s.probeDuration(ctx, gen, req.URL, path)
		}
		return
	}

	if !s.set(gen, VideoState{Phase: PhaseSuccess, URL: req.URL, Source: req.URL}) {
		return
	}

	s.m.wg.Add(1)
	go func() {
		defer s.m.wg.Done()
		s.export(ctx, req)
	}()
	s.probeDuration(ctx, gen, req.URL, req.URL)
}

func (s *VideoSlot) probeDuration(ctx context.Context, gen uint64, url, source string) {
	d, err := s.transcoder.Duration(ctx, source)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Debug().Err(err).Str(xglog.FieldURL, url).Msg("video duration probe failed")
		d = 0
	}

	s.m.notifyMu.Lock()
	defer s.m.notifyMu.Unlock()
	s.m.mu.Lock()
	if gen != s.m.gen || s.m.closed {
		s.m.mu.Unlock()
		return
	}
	fn := s.onDuration
	s.m.mu.Unlock()
	if fn != nil {
		fn(url, d)
	}
}

// export copies the source into the cache. Every failure is logged and
// swallowed: playback already proceeds from the original URL.
func (s *VideoSlot) export(ctx context.Context, req VideoRequest) {
	ctx, span := s.tracer.Start(ctx, "slot.video.export",
		trace.WithAttributes(attribute.String(telemetry.MediaURLKey, req.URL)))
	defer span.End()

	logger := s.logger.With().Str(xglog.FieldURL, req.URL).Logger()
	result := "ok"
	defer func() { metrics.VideoExports.WithLabelValues(result).Inc() }()

	if !s.transcoder.IsExportable(ctx, req.URL) {
		result = "not_exportable"
		if ctx.Err() != nil {
			result = "cancelled"
		}
		logger.Debug().Msg("video not exportable, streaming only")
		return
	}

	tmp, err := os.CreateTemp(s.tempDir, "storyreel-export-*.mp4")
	if err != nil {
		result = "error"
		logger.Warn().Err(err).Msg("create export temp file")
		return
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := s.transcoder.Export(ctx, req.URL, tmpPath); err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			result = "cancelled"
			return
		}
		result = media.Reason(err)
		telemetry.RecordError(span, err, result)
		logger.Warn().Err(err).Str(xglog.FieldEvent, "slot.export_failed").Msg("video export failed")
		return
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		result = "error"
		logger.Warn().Err(err).Msg("read exported video")
		return
	}
	span.SetAttributes(attribute.Int(telemetry.MediaBytesKey, len(data)))
	s.store.Put(context.WithoutCancel(ctx), data, req.URL, cache.ClassStoryVideo, req.CreatedAt)
	logger.Debug().Int("bytes", len(data)).Msg("video exported to cache")
}
