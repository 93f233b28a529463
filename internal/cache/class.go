// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"fmt"
	"path/filepath"
)

// Class partitions the cache by media role.
type Class string

const (
	// ClassProfile holds user avatars. Profile entries never expire.
	ClassProfile Class = "profile"
	// ClassStoryImage holds encoded story images.
	ClassStoryImage Class = "story-image"
	// ClassStoryVideo holds exported story videos.
	ClassStoryVideo Class = "story-video"
)

// Classes lists every partition.
var Classes = []Class{ClassProfile, ClassStoryImage, ClassStoryVideo}

// Valid reports whether c names a known partition.
func (c Class) Valid() bool {
	switch c {
	case ClassProfile, ClassStoryImage, ClassStoryVideo:
		return true
	}
	return false
}

// Expires reports whether entries of the class take part in expiry sweeps.
func (c Class) Expires() bool {
	return c == ClassStoryImage || c == ClassStoryVideo
}

// ParseClass converts a string into a Class.
func ParseClass(s string) (Class, error) {
	c := Class(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidClass, s)
	}
	return c, nil
}

// relDir is the directory of the class relative to a disk cache root.
func (c Class) relDir() string {
	switch c {
	case ClassProfile:
		return filepath.Join("images", "profiles")
	case ClassStoryImage:
		return filepath.Join("images", "stories")
	default:
		return "videos"
	}
}

// ext is the filename extension for entries of the class.
func (c Class) ext() string {
	if c == ClassStoryVideo {
		return ".mp4"
	}
	return ".img"
}
