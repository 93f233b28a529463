// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package viewer composes the story engine: the user queue, the playback
// controller, the media slots, the cache and the video player.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/ManuGH/storyreel/internal/cache"
	xglog "github.com/ManuGH/storyreel/internal/log"
	"github.com/ManuGH/storyreel/internal/media"
	"github.com/ManuGH/storyreel/internal/playback"
	"github.com/ManuGH/storyreel/internal/queue"
	"github.com/ManuGH/storyreel/internal/slot"
	"github.com/ManuGH/storyreel/internal/story"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownUser is returned for user IDs that are not in the queue.
var ErrUnknownUser = errors.New("viewer: unknown user")

// ErrClosed is returned by operations on a closed viewer.
var ErrClosed = errors.New("viewer: closed")

// Options are the host-facing settings of a Viewer.
type Options struct {
	// Sorted moves users with unseen stories to the front, at construction
	// and after every story marked seen.
	Sorted bool
	// OnStorySeen is called once per story transition with the story being
	// left. It runs on the viewer's event goroutine and must not call Close.
	OnStorySeen func(userID string, index int)
	// CacheExpireBefore is the cutoff of the startup expiry sweep. Nil means
	// story.DefaultCacheExpiry before Start.
	CacheExpireBefore *time.Time
	// ImageTarget bounds decoded story images.
	ImageTarget media.Size
	// AvatarTarget bounds decoded avatars.
	AvatarTarget media.Size
	// ExportDir stages video exports. Empty uses the system temp directory.
	ExportDir string
	// TickInterval overrides story.TickInterval.
	TickInterval time.Duration
}

// Deps are the collaborators a Viewer drives.
type Deps struct {
	Store      *cache.Store
	Fetcher    media.Fetcher
	Codec      media.ImageCodec
	Transcoder media.Transcoder
	// Player is the video player. Nil selects a ClockPlayer reporting every
	// story.VideoProgressInterval.
	Player media.Player
	// Clock replaces the ticker clock, for tests.
	Clock playback.Clock
}

// Viewer is one mounted story viewer.
type Viewer struct {
	opts   Options
	store  *cache.Store
	deps   Deps
	queue  *queue.Queue
	ctrl   *playback.Controller
	image  *slot.ImageSlot
	video  *slot.VideoSlot
	player media.Player
	owned  *media.ClockPlayer
	loop   *loop
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

type durationSetter interface {
	SetDuration(seconds float64)
}

// New builds a viewer over users. The viewer is inert until Start.
func New(users []*story.User, deps Deps, opts Options) *Viewer {
	v := &Viewer{
		opts:   opts,
		store:  deps.Store,
		deps:   deps,
		queue:  queue.New(users, opts.Sorted),
		loop:   newLoop(),
		logger: xglog.WithComponent("viewer"),
	}
	v.ctx, v.cancel = context.WithCancel(context.Background())

	v.player = deps.Player
	if v.player == nil {
		v.owned = media.NewClockPlayer(story.VideoProgressInterval, func(src string, pos, dur float64) {
			v.loop.post(func() { v.handleVideoProgress(src, pos, dur) })
		})
		v.player = v.owned
	}

	ctrlOpts := []playback.Option{playback.WithPlayer(v.player)}
	if opts.TickInterval > 0 {
		ctrlOpts = append(ctrlOpts, playback.WithTickInterval(opts.TickInterval))
	}
	if deps.Clock != nil {
		ctrlOpts = append(ctrlOpts, playback.WithClock(deps.Clock))
	}
	v.ctrl = playback.New(v.queue, ctrlOpts...)
	v.ctrl.Subscribe(func(ev playback.Event) {
		v.loop.post(func() { v.handleEvent(ev) })
	})

	v.image = slot.NewImageSlot(deps.Store, deps.Fetcher, deps.Codec)
	v.image.OnChange(func(st slot.ImageState) {
		v.loop.post(func() { v.handleImage(st) })
	})
	v.video = slot.NewVideoSlot(deps.Store, deps.Transcoder, opts.ExportDir)
	v.video.OnChange(func(st slot.VideoState) {
		v.loop.post(func() { v.handleVideo(st) })
	})
	v.video.OnDuration(func(url string, d float64) {
		v.loop.post(func() { v.handleDuration(url, d) })
	})

	go v.loop.run()
	return v
}

// Start runs the one-time cache expiry sweep over the story classes.
func (v *Viewer) Start(ctx context.Context) error {
	cutoff := time.Now().Add(-story.DefaultCacheExpiry)
	if v.opts.CacheExpireBefore != nil {
		cutoff = *v.opts.CacheExpireBefore
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, class := range []cache.Class{cache.ClassStoryImage, cache.ClassStoryVideo} {
		g.Go(func() error {
			n := v.store.SweepExpired(gctx, cutoff, class)
			v.logger.Info().
				Str(xglog.FieldEvent, "viewer.cache_swept").
				Str(xglog.FieldCacheClass, string(class)).
				Time(xglog.FieldCutoff, cutoff).
				Int("removed", n).
				Msg("startup cache expiry sweep")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("viewer start: %w", err)
	}
	return ctx.Err()
}

// Users returns the queue in display order.
func (v *Viewer) Users() []*story.User { return v.queue.Users() }

// Summaries returns a consistent copy of the queue with seen state.
func (v *Viewer) Summaries() []queue.UserSummary { return v.queue.Summaries() }

// Open starts playback at the user with userID.
func (v *Viewer) Open(userID string) error {
	if v.ctx.Err() != nil {
		return ErrClosed
	}
	u := v.queue.User(userID)
	if u == nil {
		return fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	v.ctrl.Open(u)
	return nil
}

// Next advances to the next story.
func (v *Viewer) Next() { v.ctrl.Advance() }

// Previous goes back one story.
func (v *Viewer) Previous() { v.ctrl.Retreat() }

// SetPaused pauses or resumes playback.
func (v *Viewer) SetPaused(paused bool) { v.ctrl.SetPaused(paused) }

// Dismiss ends playback but keeps the viewer usable.
func (v *Viewer) Dismiss() { v.ctrl.Close() }

// Snapshot returns the playback state.
func (v *Viewer) Snapshot() playback.Snapshot { return v.ctrl.Snapshot() }

// ImageState returns the story image slot state.
func (v *Viewer) ImageState() slot.ImageState { return v.image.State() }

// VideoState returns the video slot state.
func (v *Viewer) VideoState() slot.VideoState { return v.video.State() }

// SetCacheBackend swaps the cache backend for all subsequent cache calls and
// returns the previous backend, which the caller closes.
func (v *Viewer) SetCacheBackend(b cache.Backend) cache.Backend {
	return v.store.SetBackend(b)
}

// Store returns the media cache.
func (v *Viewer) Store() *cache.Store { return v.store }

// LoadAvatar resolves the avatar of userID through the profile cache.
func (v *Viewer) LoadAvatar(ctx context.Context, userID string) (image.Image, error) {
	u := v.queue.User(userID)
	if u == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}

	s := slot.NewImageSlot(v.store, v.deps.Fetcher, v.deps.Codec)
	defer s.Close()
	done := make(chan slot.ImageState, 1)
	s.OnChange(func(st slot.ImageState) {
		if st.Phase == slot.PhaseSuccess || st.Phase == slot.PhaseFailed {
			done <- st
		}
	})
	s.Load(ctx, slot.ImageRequest{URL: u.AvatarURL, Class: cache.ClassProfile, Target: v.opts.AvatarTarget})

	select {
	case st := <-done:
		if st.Err != nil {
			return nil, st.Err
		}
		return st.Image, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close ends playback, cancels in-flight media work, releases the player
// and waits for every goroutine the viewer started.
func (v *Viewer) Close() {
	v.closeOnce.Do(func() {
		v.ctrl.Close()
		v.cancel()
		v.image.Close()
		v.video.Close()
		v.player.Stop()
		if v.owned != nil {
			v.owned.Close()
		}
		v.loop.stop()
	})
}

func (v *Viewer) handleEvent(ev playback.Event) {
	v.logger.Debug().
		Str(xglog.FieldEvent, "playback."+ev.Type.String()).
		Str(xglog.FieldUserID, ev.UserID).
		Int(xglog.FieldStoryIndex, ev.Index).
		Msg("playback event")

	switch ev.Type {
	case playback.EventStorySeen:
		if v.opts.OnStorySeen != nil {
			v.opts.OnStorySeen(ev.UserID, ev.Index)
		}
	case playback.EventStoryChanged:
		v.loadStory(ev.UserID, ev.Index)
	case playback.EventClosed:
		v.image.Cancel()
		v.video.Cancel()
	}
}

func (v *Viewer) loadStory(userID string, index int) {
	u := v.queue.User(userID)
	if u == nil {
		return
	}
	s := u.Story(index)
	if s == nil {
		return
	}
	// Superseded transitions are skipped; a later event loads the current story.
	snap := v.ctrl.Snapshot()
	if snap.StoryID != s.ID {
		return
	}

	switch s.Kind {
	case story.KindVideo:
		v.image.Cancel()
		v.video.Load(v.ctx, slot.VideoRequest{URL: s.MediaURL, CreatedAt: s.CreatedAt})
	default:
		v.video.Cancel()
		v.image.Load(v.ctx, slot.ImageRequest{
			URL:       s.MediaURL,
			Class:     cache.ClassStoryImage,
			CreatedAt: s.CreatedAt,
			Target:    v.opts.ImageTarget,
		})
	}
}

func (v *Viewer) handleImage(st slot.ImageState) {
	if st.Phase != slot.PhaseFailed {
		return
	}
	snap := v.ctrl.Snapshot()
	if snap.Kind == story.KindImage && snap.MediaURL == st.URL {
		v.ctrl.ReportMediaFailed(snap.StoryID)
	}
}

func (v *Viewer) handleVideo(st slot.VideoState) {
	snap := v.ctrl.Snapshot()
	if snap.Kind != story.KindVideo || snap.MediaURL != st.URL {
		return
	}
	switch st.Phase {
	case slot.PhaseSuccess:
		// Playback starts once the duration is known; see handleDuration.
		v.player.Load(st.Source, 0)
	case slot.PhaseFailed:
		v.ctrl.ReportMediaFailed(snap.StoryID)
	}
}

func (v *Viewer) handleDuration(url string, seconds float64) {
	snap := v.ctrl.Snapshot()
	if snap.Kind != story.KindVideo || snap.MediaURL != url {
		return
	}
	if seconds <= 0 {
		// Unknown duration: the story is skipped.
		v.ctrl.ReportVideoProgress(snap.StoryID, 0, 0)
		return
	}
	v.ctrl.ReportDuration(snap.StoryID, seconds)
	if ds, ok := v.player.(durationSetter); ok {
		ds.SetDuration(seconds)
	}
	if !snap.Paused {
		v.player.Play()
	}
}

// handleVideoProgress forwards a player position for the active video. A
// position queued before the story changed names another source and is
// dropped.
func (v *Viewer) handleVideoProgress(source string, position, duration float64) {
	snap := v.ctrl.Snapshot()
	st := v.video.State()
	if snap.Kind != story.KindVideo || st.URL != snap.MediaURL || st.Source != source {
		return
	}
	v.ctrl.ReportVideoProgress(snap.StoryID, position, duration)
}
