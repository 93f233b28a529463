// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package slot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/ManuGH/storyreel/internal/cache"
	xglog "github.com/ManuGH/storyreel/internal/log"
	"github.com/ManuGH/storyreel/internal/media"
	"github.com/ManuGH/storyreel/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ImageRequest describes one image to resolve.
type ImageRequest struct {
	URL   string
	Class cache.Class
	// CreatedAt stamps story images in the cache. Ignored for profiles.
	CreatedAt time.Time
	// Target bounds the decoded image. Zero keeps the original size.
	Target media.Size
}

// ImageState is a snapshot of an ImageSlot.
type ImageState struct {
	Phase  Phase
	URL    string
	Image  image.Image
	Cached bool
	Err    error
}

// ImageSlot resolves images through the cache, falling back to the
// network and writing fetched bytes through to the cache.
type ImageSlot struct {
	m       machine
	store   *cache.Store
	fetcher media.Fetcher
	codec   media.ImageCodec
	logger  zerolog.Logger
	tracer  trace.Tracer

	state    ImageState
	listener func(ImageState)
}

// NewImageSlot wires a slot to its collaborators.
func NewImageSlot(store *cache.Store, fetcher media.Fetcher, codec media.ImageCodec) *ImageSlot {
	return &ImageSlot{
		m:       machine{kind: "image"},
		store:   store,
		fetcher: fetcher,
		codec:   codec,
		logger:  xglog.WithComponent("slot.image"),
		tracer:  telemetry.Tracer("storyreel/slot"),
	}
}

// OnChange registers the transition listener, replacing any previous one.
func (s *ImageSlot) OnChange(fn func(ImageState)) {
	s.m.mu.Lock()
	s.listener = fn
	s.m.mu.Unlock()
}

// State returns the latest published state.
func (s *ImageSlot) State() ImageState {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.state
}

// Load resolves req asynchronously. Loading the URL that is already current
// is a no-op.
func (s *ImageSlot) Load(ctx context.Context, req ImageRequest) {
	runCtx, gen, ok := s.m.begin(ctx, req.URL)
	if !ok {
		return
	}
	s.set(gen, ImageState{Phase: PhaseLoading, URL: req.URL})

	go func() {
		defer s.m.wg.Done()
		s.run(runCtx, gen, req)
	}()
}

// Cancel aborts in-flight work. No further transitions are published for
// the cancelled request.
func (s *ImageSlot) Cancel() { s.m.detach() }

// Close cancels in-flight work and waits for it to return.
func (s *ImageSlot) Close() { s.m.close() }

func (s *ImageSlot) set(gen uint64, st ImageState) bool {
	var fn func(ImageState)
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

func (s *ImageSlot) run(ctx context.Context, gen uint64, req ImageRequest) {
	ctx, span := s.tracer.Start(ctx, "slot.image.load",
		trace.WithAttributes(attribute.String(telemetry.MediaURLKey, req.URL)))
	defer span.End()

	fail := func(err error) {
		telemetry.RecordError(span, err, media.Reason(err))
		s.logger.Debug().
			Err(err).
			Str(xglog.FieldURL, req.URL).
			Str(xglog.FieldCacheClass, string(req.Class)).
			Msg("image load failed")
		s.set(gen, ImageState{Phase: PhaseFailed, URL: req.URL, Err: err})
	}

	if err := media.ValidateURL(req.URL); err != nil {
		fail(err)
		return
	}

	if data, ok := s.store.Get(ctx, req.URL, req.Class); ok {
		img, err := s.codec.Decode(data)
		if err == nil {
			span.SetAttributes(telemetry.MediaAttributes(req.URL, string(req.Class), true)...)
			s.set(gen, ImageState{Phase: PhaseSuccess, URL: req.URL, Image: s.codec.Downsample(img, req.Target), Cached: true})
			return
		}
		// A corrupt entry is dropped and re-fetched.
		s.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "slot.cache_corrupt").
			Str(xglog.FieldURL, req.URL).
			Msg("cached image failed to decode, refetching")
		s.store.Remove(ctx, req.URL, req.Class)
	}
	span.SetAttributes(telemetry.MediaAttributes(req.URL, string(req.Class), false)...)

	data, err := s.fetcher.Fetch(ctx, req.URL)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if !errors.Is(err, media.ErrInvalidURL) && !errors.Is(err, media.ErrNetwork) {
			err = fmt.Errorf("%w: %v", media.ErrNetwork, err)
		}
		fail(err)
		return
	}
	span.SetAttributes(attribute.Int(telemetry.MediaBytesKey, len(data)))

	img, err := s.codec.Decode(data)
	if err != nil {
		if !errors.Is(err, media.ErrDecoding) {
			err = fmt.Errorf("%w: %v", media.ErrDecoding, err)
		}
		fail(err)
		return
	}

	s.set(gen, ImageState{Phase: PhaseSuccess, URL: req.URL, Image: s.codec.Downsample(img, req.Target)})

	// Write-through is best effort and always follows the Success transition.
	s.store.Put(context.WithoutCancel(ctx), data, req.URL, req.Class, req.CreatedAt)
}
