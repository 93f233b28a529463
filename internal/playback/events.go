// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

// EventType identifies a controller notification.
type EventType int

const (
	// EventStorySeen fires once per story transition for the story being
	// left, on the user it belongs to.
	EventStorySeen EventType = iota + 1
	// EventStoryChanged fires after the active story index changed.
	EventStoryChanged
	// EventUserChanged fires after a new user became active.
	EventUserChanged
	// EventBoundaryNext fires when the stories of a user are exhausted
	// moving forward.
	EventBoundaryNext
	// EventBoundaryPrevious fires when moving back past the first story.
	EventBoundaryPrevious
	// EventClosed fires when playback ends.
	EventClosed
	EventPaused
	EventResumed
)

func (t EventType) String() string {
	switch t {
	case EventStorySeen:
		return "story_seen"
	case EventStoryChanged:
		return "story_changed"
	case EventUserChanged:
		return "user_changed"
	case EventBoundaryNext:
		return "boundary_next"
	case EventBoundaryPrevious:
		return "boundary_previous"
	case EventClosed:
		return "closed"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners after the state mutation it describes.
// UserID and Index refer to the story the event is about; for
// EventStorySeen that is the story being left.
type Event struct {
	Type    EventType
	UserID  string
	Index   int
	StoryID string
	// FirstSeen is set on EventStorySeen when the story was unseen before.
	FirstSeen bool
}

// Listener receives controller events. Listeners run on the goroutine that
// caused the transition, after the controller lock is released, in emission
// order. They may call Snapshot but must not call mutating operations.
type Listener func(Event)
