// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package story

import "github.com/google/uuid"

// User owns an ordered list of stories. The order is the display order and
// never changes after construction.
type User struct {
	ID        string
	Name      string
	AvatarURL string
	Stories   []*Story
}

// NewUser builds a user with a fresh ID.
func NewUser(name, avatarURL string, stories ...*Story) *User {
	return &User{
		ID:        uuid.NewString(),
		Name:      name,
		AvatarURL: avatarURL,
		Stories:   stories,
	}
}

// AllSeen reports whether every story of the user has been viewed.
// A user without stories counts as all seen.
func (u *User) AllSeen() bool {
	for _, s := range u.Stories {
		if !s.IsSeen() {
			return false
		}
	}
	return true
}

// SeenCount returns the number of viewed stories.
func (u *User) SeenCount() int {
	n := 0
	for _, s := range u.Stories {
		if s.IsSeen() {
			n++
		}
	}
	return n
}

// Story returns the story at index i, or nil when out of range.
func (u *User) Story(i int) *Story {
	if i < 0 || i >= len(u.Stories) {
		return nil
	}
	return u.Stories[i]
}
