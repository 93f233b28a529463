// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import "github.com/ManuGH/storyreel/internal/story"

// CounterSnapshot is the state of one progress bar segment.
type CounterSnapshot struct {
	StoryID  string  `json:"story_id"`
	Progress float64 `json:"progress"`
	Target   float64 `json:"target"`
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	State    State             `json:"-"`
	UserID   string            `json:"user_id,omitempty"`
	Index    int               `json:"index"`
	StoryID  string            `json:"story_id,omitempty"`
	Kind     story.MediaKind   `json:"kind,omitempty"`
	MediaURL string            `json:"media_url,omitempty"`
	Paused   bool              `json:"paused"`
	Counters []CounterSnapshot `json:"counters,omitempty"`
}

// Viewing reports whether a story is active.
func (s Snapshot) Viewing() bool { return s.State == StateViewing }

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{State: c.state, Index: c.index, Paused: c.paused}
	if c.user != nil {
		snap.UserID = c.user.ID
	}
	if s := c.activeStoryLocked(); s != nil {
		snap.StoryID = s.ID
		snap.Kind = s.Kind
		snap.MediaURL = s.MediaURL
	}
	snap.Counters = make([]CounterSnapshot, len(c.counters))
	for i, ctr := range c.counters {
		snap.Counters[i] = CounterSnapshot{StoryID: ctr.StoryID(), Progress: ctr.Progress(), Target: ctr.Target()}
	}
	return snap
}

// Ticking reports whether the progress ticker is active.
func (c *Controller) Ticking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticker != nil
}
