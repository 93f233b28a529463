// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldStoryID   = "story_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldBackend   = "backend"

	// Playback fields
	FieldStoryIndex = "story_index"
	FieldMediaKind  = "media_kind"
	FieldOldState   = "old_state"
	FieldNewState   = "new_state"
	FieldProgress   = "progress"
	FieldTarget     = "target"

	// Cache fields
	FieldCacheClass = "cache_class"
	FieldCacheKey   = "cache_key"
	FieldCutoff     = "cutoff"

	// Path / URL fields
	FieldPath = "path"
	FieldURL  = "url"
)
