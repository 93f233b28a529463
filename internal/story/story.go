// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package story holds the user/story data model shared by the playback engine,
// the user queue and the media slots.
package story

import (
	"time"

	"github.com/google/uuid"
)

// Playback timing defaults.
const (
	// DefaultDuration is the display time of a story that does not carry its own.
	DefaultDuration = 10.0
	// TickInterval drives image progress.
	TickInterval = 100 * time.Millisecond
	// VideoProgressInterval is the cadence of player position callbacks.
	VideoProgressInterval = 500 * time.Millisecond
	// DefaultCacheExpiry is how far back the startup expiry sweep reaches
	// when the host does not supply a cutoff.
	DefaultCacheExpiry = 24 * time.Hour
)

// MediaKind is the type of media a story shows.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// Valid reports whether k is a known media kind.
func (k MediaKind) Valid() bool {
	return k == KindImage || k == KindVideo
}

// SeenState is the per-story viewed flag.
type SeenState string

const (
	Unseen SeenState = "unseen"
	Seen   SeenState = "seen"
)

// Story is one timed piece of media belonging to a user.
type Story struct {
	ID        string
	MediaURL  string
	CreatedAt time.Time
	Caption   string
	// Duration is the target display time in seconds.
	Duration float64
	Kind     MediaKind
	State    SeenState
}

// New builds a story with a fresh ID, the default duration and Unseen state.
func New(mediaURL string, kind MediaKind, createdAt time.Time) *Story {
	return &Story{
		ID:        uuid.NewString(),
		MediaURL:  mediaURL,
		CreatedAt: createdAt,
		Duration:  DefaultDuration,
		Kind:      kind,
		State:     Unseen,
	}
}

// Normalize fills in defaults for fields the caller left empty.
func (s *Story) Normalize() {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Duration <= 0 {
		s.Duration = DefaultDuration
	}
	if s.State == "" {
		s.State = Unseen
	}
	if s.Kind == "" {
		s.Kind = KindImage
	}
}

// IsSeen reports whether the story has been viewed.
func (s *Story) IsSeen() bool {
	return s.State == Seen
}

// MarkSeen flips the story to Seen. It returns false when it already was.
func (s *Story) MarkSeen() bool {
	if s.State == Seen {
		return false
	}
	s.State = Seen
	return true
}
