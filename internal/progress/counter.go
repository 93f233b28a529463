// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package progress tracks elapsed display time of a single story.
package progress

// Counter is the elapsed/target tracker behind one progress bar segment.
// Progress always stays within [0, Target]. Counter is not safe for
// concurrent use; the playback controller serialises access.
type Counter struct {
	storyID  string
	progress float64
	target   float64
}

// New returns a counter at zero progress. A negative target is treated as 0.
func New(storyID string, target float64) *Counter {
	if target < 0 {
		target = 0
	}
	return &Counter{storyID: storyID, target: target}
}

// StoryID identifies the story the counter belongs to.
func (c *Counter) StoryID() string { return c.storyID }

// Progress returns the elapsed seconds.
func (c *Counter) Progress() float64 { return c.progress }

// Target returns the target duration in seconds.
func (c *Counter) Target() float64 { return c.target }

// Fraction returns progress as a value in [0, 1]. A zero target reads as 0.
func (c *Counter) Fraction() float64 {
	if c.target == 0 {
		return 0
	}
	return c.progress / c.target
}

// Increase advances progress by delta, clamped to [0, Target].
func (c *Counter) Increase(delta float64) {
	c.progress = clamp(c.progress+delta, 0, c.target)
}

// Set moves progress to an absolute position, clamped to [0, Target].
func (c *Counter) Set(position float64) {
	c.progress = clamp(position, 0, c.target)
}

// SetTarget replaces the target once the real media duration is known.
func (c *Counter) SetTarget(target float64) {
	if target < 0 {
		target = 0
	}
	c.target = target
	c.progress = clamp(c.progress, 0, c.target)
}

// Complete fills the counter.
func (c *Counter) Complete() { c.progress = c.target }

// Reset empties the counter.
func (c *Counter) Reset() { c.progress = 0 }

// CanAdvance reports whether the story still has time left. Whole seconds
// are compared so float accumulation of tick deltas cannot leave the counter
// hanging a hair below its target.
func (c *Counter) CanAdvance() bool {
	return int64(c.progress) < int64(c.target)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
