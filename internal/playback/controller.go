// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playback drives story progress and navigation for one viewer.
//
// The Controller owns the active user, the active story index, one progress
// counter per story and the pause flag. Image stories advance on a periodic
// tick; video stories advance on position reports from the player. At either
// end of a user's stories the controller asks the user queue for the
// neighbouring user and continues there, or closes when there is none.
package playback

import (
	"sync"
	"time"

	xglog "github.com/ManuGH/storyreel/internal/log"
	"github.com/ManuGH/storyreel/internal/media"
	"github.com/ManuGH/storyreel/internal/metrics"
	"github.com/ManuGH/storyreel/internal/progress"
	"github.com/ManuGH/storyreel/internal/story"
	"github.com/rs/zerolog"
)

// State is the coarse controller state.
type State int

const (
	StateInactive State = iota
	StateViewing
)

func (s State) String() string {
	if s == StateViewing {
		return "viewing"
	}
	return "inactive"
}

// Users is the view of the user queue the controller navigates.
type Users interface {
	Next(afterID string) *story.User
	Previous(beforeID string) *story.User
	MarkSeen(userID string, index int) bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithPlayer sets the video player handle driven by pause, resume and story
// changes.
func WithPlayer(p media.Player) Option {
	return func(c *Controller) { c.player = p }
}

// WithClock replaces the wall clock used by the progress ticker.
func WithClock(clk Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithTickInterval sets the ticker period. Each tick adds the period in
// seconds to the active counter.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger overrides the controller logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller is the playback state machine. All methods are safe for
// concurrent use.
type Controller struct {
	users    Users
	player   media.Player
	clock    Clock
	interval time.Duration
	logger   zerolog.Logger

	// dispatchMu orders listener delivery across concurrent operations.
	dispatchMu sync.Mutex

	mu        sync.Mutex
	state     State
	user      *story.User
	index     int
	counters  []*progress.Counter
	paused    bool
	ticker    *ticker
	listeners []Listener
	pending   []Event

	tickWG sync.WaitGroup
}

// New returns an inactive controller navigating users.
func New(users Users, opts ...Option) *Controller {
	c := &Controller{
		users:    users,
		clock:    realClock{},
		interval: story.TickInterval,
		logger:   xglog.WithComponent("playback"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe adds a listener.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// do runs fn under the state lock, then delivers the events it emitted.
func (c *Controller) do(fn func()) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	fn()
	events := c.pending
	c.pending = nil
	listeners := c.listeners
	c.mu.Unlock()

	for _, ev := range events {
		for _, l := range listeners {
			l(ev)
		}
	}
}

func (c *Controller) emitLocked(ev Event) {
	c.pending = append(c.pending, ev)
}

// Open makes user active. If the user has unseen stories playback resumes
// at the first story past the seen count, with earlier counters filled;
// otherwise it starts at the first story. Opening while another story is
// active marks that story seen first.
func (c *Controller) Open(user *story.User) {
	c.do(func() {
		if c.state == StateViewing {
			c.markSeenLocked()
		}
		c.openLocked(user, "next")
	})
}

// Advance moves to the next story, or to the next user at the end.
func (c *Controller) Advance() {
	c.do(c.advanceLocked)
}

// Retreat moves to the previous story, or to the previous user at the
// start.
func (c *Controller) Retreat() {
	c.do(c.retreatLocked)
}

// Tick adds delta seconds to the active image story. It is a no-op while
// paused or on a video story.
func (c *Controller) Tick(delta float64) {
	c.do(func() { c.tickLocked(delta) })
}

// ReportVideoProgress feeds the player position of the video story with
// storyID. A duration of 0 means the real duration could not be resolved and
// advances immediately. Reports for a story that is no longer active are
// dropped.
func (c *Controller) ReportVideoProgress(storyID string, position, duration float64) {
	c.do(func() {
		if !c.activeKindLocked(story.KindVideo) || c.paused || c.activeStoryLocked().ID != storyID {
			return
		}
		if duration == 0 {
			c.logger.Debug().
				Str(xglog.FieldUserID, c.user.ID).
				Int(xglog.FieldStoryIndex, c.index).
				Msg("video reported no duration, skipping")
			c.advanceLocked()
			return
		}
		ctr := c.counters[c.index]
		ctr.SetTarget(duration)
		ctr.Set(position)
		if !ctr.CanAdvance() {
			c.advanceLocked()
		}
	})
}

// ReportDuration corrects the target of the story with storyID once its
// real media duration is known. Unknown stories are ignored.
func (c *Controller) ReportDuration(storyID string, seconds float64) {
	if seconds <= 0 {
		return
	}
	c.do(func() {
		for _, ctr := range c.counters {
			if ctr.StoryID() == storyID {
				ctr.SetTarget(seconds)
				return
			}
		}
	})
}

// ReportMediaFailed treats the story with storyID as consumed if it is the
// active one. Reports for any other story are stale and ignored.
func (c *Controller) ReportMediaFailed(storyID string) {
	c.do(func() {
		if c.state != StateViewing || c.activeStoryLocked() == nil || c.activeStoryLocked().ID != storyID {
			return
		}
		c.logger.Info().
			Str(xglog.FieldEvent, "playback.media_failed").
			Str(xglog.FieldUserID, c.user.ID).
			Str(xglog.FieldStoryID, storyID).
			Msg("media failed to load, advancing")
		c.advanceLocked()
	})
}

// SetPaused pauses or resumes playback. Pausing a video story also pauses
// the player.
func (c *Controller) SetPaused(paused bool) {
	c.do(func() {
		if c.state != StateViewing || c.paused == paused {
			return
		}
		c.paused = paused
		video := c.activeKindLocked(story.KindVideo)
		ev := Event{Type: EventResumed, UserID: c.user.ID, Index: c.index, StoryID: c.activeStoryLocked().ID}
		if paused {
			ev.Type = EventPaused
			c.stopTickerLocked()
			if video && c.player != nil {
				c.player.Pause()
			}
		} else {
			c.startTickerLocked()
			if video && c.player != nil {
				c.player.Play()
			}
		}
		c.emitLocked(ev)
	})
}

// Close ends playback, marking the active story seen, and waits for the
// progress ticker to exit.
func (c *Controller) Close() {
	c.do(func() {
		if c.state != StateViewing {
			return
		}
		c.markSeenLocked()
		c.closeLocked()
	})
	c.tickWG.Wait()
}

// openLocked activates user. direction is the way playback travels, so an
// empty user is passed over towards the same side.
func (c *Controller) openLocked(user *story.User, direction string) {
	c.stopTickerLocked()
	c.stopPlayerLocked()

	if user == nil {
		c.closeLocked()
		return
	}

	c.user = user
	c.counters = make([]*progress.Counter, len(user.Stories))
	for i, s := range user.Stories {
		d := s.Duration
		if d <= 0 {
			d = story.DefaultDuration
		}
		c.counters[i] = progress.New(s.ID, d)
	}
	c.state = StateViewing
	c.paused = false

	if len(user.Stories) == 0 {
		c.logger.Warn().
			Str(xglog.FieldUserID, user.ID).
			Msg("user has no stories, skipping")
		c.index = 0
		if direction == "previous" {
			prev := c.users.Previous(user.ID)
			c.emitLocked(Event{Type: EventBoundaryPrevious, UserID: user.ID})
			c.crossLocked(direction, prev)
			return
		}
		next := c.users.Next(user.ID)
		c.emitLocked(Event{Type: EventBoundaryNext, UserID: user.ID})
		c.crossLocked(direction, next)
		return
	}

	c.index = 0
	if !user.AllSeen() {
		c.index = min(user.SeenCount(), len(user.Stories)-1)
		for i := 0; i < c.index; i++ {
			c.counters[i].Complete()
		}
	}

	c.logger.Debug().
		Str(xglog.FieldUserID, user.ID).
		Int(xglog.FieldStoryIndex, c.index).
		Msg("user opened")
	c.emitLocked(Event{Type: EventUserChanged, UserID: user.ID, Index: c.index, StoryID: user.Stories[c.index].ID})
	c.emitLocked(Event{Type: EventStoryChanged, UserID: user.ID, Index: c.index, StoryID: user.Stories[c.index].ID})
	c.startTickerLocked()
}

func (c *Controller) advanceLocked() {
	if c.state != StateViewing || len(c.counters) == 0 {
		return
	}
	c.counters[c.index].Complete()

	if c.index < len(c.counters)-1 {
		c.markSeenLocked()
		c.moveLocked(c.index+1, "next")
		return
	}

	// The neighbour is resolved before the mark so a re-sort cannot change it.
	next := c.users.Next(c.user.ID)
	c.markSeenLocked()
	c.emitLocked(Event{Type: EventBoundaryNext, UserID: c.user.ID, Index: c.index})
	c.crossLocked("next", next)
}

func (c *Controller) retreatLocked() {
	if c.state != StateViewing || len(c.counters) == 0 {
		return
	}
	c.counters[c.index].Reset()

	if c.index > 0 {
		c.markSeenLocked()
		c.moveLocked(c.index-1, "previous")
		return
	}

	prev := c.users.Previous(c.user.ID)
	c.markSeenLocked()
	c.emitLocked(Event{Type: EventBoundaryPrevious, UserID: c.user.ID, Index: c.index})
	c.crossLocked("previous", prev)
}

// moveLocked switches to story index i of the active user.
func (c *Controller) moveLocked(i int, direction string) {
	c.stopTickerLocked()
	c.stopPlayerLocked()
	c.index = i
	c.counters[i].Reset()
	c.paused = false
	metrics.StoryTransitions.WithLabelValues(direction).Inc()
	c.emitLocked(Event{Type: EventStoryChanged, UserID: c.user.ID, Index: i, StoryID: c.user.Stories[i].ID})
	c.startTickerLocked()
}

// crossLocked continues at a neighbouring user, or closes when there is none.
func (c *Controller) crossLocked(direction string, neighbour *story.User) {
	if neighbour == nil {
		metrics.BoundaryTransitions.WithLabelValues(direction, "closed").Inc()
		c.closeLocked()
		return
	}
	metrics.BoundaryTransitions.WithLabelValues(direction, "user").Inc()
	c.openLocked(neighbour, direction)
}

func (c *Controller) tickLocked(delta float64) {
	if !c.shouldTickLocked() {
		return
	}
	ctr := c.counters[c.index]
	ctr.Increase(delta)
	if !ctr.CanAdvance() {
		c.advanceLocked()
	}
}

// markSeenLocked marks the active story seen and emits EventStorySeen. It
// must run before the index or user changes.
func (c *Controller) markSeenLocked() {
	s := c.activeStoryLocked()
	if s == nil {
		return
	}
	first := c.users.MarkSeen(c.user.ID, c.index)
	if first {
		metrics.StoriesSeen.Inc()
	}
	c.emitLocked(Event{Type: EventStorySeen, UserID: c.user.ID, Index: c.index, StoryID: s.ID, FirstSeen: first})
}

func (c *Controller) closeLocked() {
	c.stopTickerLocked()
	c.stopPlayerLocked()
	userID := ""
	if c.user != nil {
		userID = c.user.ID
	}
	c.state = StateInactive
	c.user = nil
	c.counters = nil
	c.index = 0
	c.paused = false
	c.logger.Debug().Str(xglog.FieldUserID, userID).Msg("playback closed")
	c.emitLocked(Event{Type: EventClosed, UserID: userID})
}

func (c *Controller) stopPlayerLocked() {
	if c.player != nil && c.activeKindLocked(story.KindVideo) {
		c.player.Stop()
	}
}

func (c *Controller) shouldTickLocked() bool {
	return !c.paused && c.activeKindLocked(story.KindImage)
}

func (c *Controller) activeStoryLocked() *story.Story {
	if c.state != StateViewing || c.user == nil {
		return nil
	}
	return c.user.Story(c.index)
}

func (c *Controller) activeKindLocked(kind story.MediaKind) bool {
	s := c.activeStoryLocked()
	return s != nil && s.Kind == kind
}
