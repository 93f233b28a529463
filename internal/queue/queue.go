// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package queue orders the users whose stories are shown.
package queue

import (
	"slices"
	"sync"

	"github.com/ManuGH/storyreel/internal/story"
)

// Queue is an ordered list of users with stable identity. It is safe for
// concurrent use; story seen-state is only mutated through MarkSeen.
type Queue struct {
	mu     sync.RWMutex
	users  []*story.User
	sorted bool
}

// New builds a queue over users. With sorted set, users with unseen stories
// are moved ahead of fully seen users now and after every MarkSeen.
func New(users []*story.User, sorted bool) *Queue {
	q := &Queue{
		users:  slices.Clone(users),
		sorted: sorted,
	}
	if sorted {
		q.sortLocked()
	}
	return q
}

// Users returns the users in queue order.
func (q *Queue) Users() []*story.User {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return slices.Clone(q.users)
}

// Len returns the number of users.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.users)
}

// Sorted reports whether the queue re-sorts after MarkSeen.
func (q *Queue) Sorted() bool { return q.sorted }

// IndexOf returns the position of the user with id.
func (q *Queue) IndexOf(id string) (int, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	i := q.indexLocked(id)
	return i, i >= 0
}

// User returns the user with id, or nil.
func (q *Queue) User(id string) *story.User {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if i := q.indexLocked(id); i >= 0 {
		return q.users[i]
	}
	return nil
}

// SortBySeenStatus stable-partitions the queue: users with any unseen
// story first, relative order kept within each group.
func (q *Queue) SortBySeenStatus() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sortLocked()
}

// Next returns the user after afterID, or nil at the end of the queue or
// when afterID is unknown.
func (q *Queue) Next(afterID string) *story.User {
	q.mu.RLock()
	defer q.mu.RUnlock()
	i := q.indexLocked(afterID)
	if i < 0 || i+1 >= len(q.users) {
		return nil
	}
	return q.users[i+1]
}

// Previous returns the user before beforeID, or nil at the start of the
// queue or when beforeID is unknown.
func (q *Queue) Previous(beforeID string) *story.User {
	q.mu.RLock()
	defer q.mu.RUnlock()
	i := q.indexLocked(beforeID)
	if i <= 0 {
		return nil
	}
	return q.users[i-1]
}

// MarkSeen marks story index of the user seen and reports whether the
// state changed. A sorted queue is re-sorted on change.
func (q *Queue) MarkSeen(userID string, index int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.indexLocked(userID)
	if i < 0 {
		return false
	}
	s := q.users[i].Story(index)
	if s == nil || !s.MarkSeen() {
		return false
	}
	if q.sorted {
		q.sortLocked()
	}
	return true
}

func (q *Queue) indexLocked(id string) int {
	return slices.IndexFunc(q.users, func(u *story.User) bool { return u.ID == id })
}

func (q *Queue) sortLocked() {
	slices.SortStableFunc(q.users, func(a, b *story.User) int {
		as, bs := a.AllSeen(), b.AllSeen()
		switch {
		case as == bs:
			return 0
		case !as:
			return -1
		default:
			return 1
		}
	})
}
