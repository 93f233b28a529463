// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package queue

import (
	"testing"
	"time"

	"github.com/ManuGH/storyreel/internal/story"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func user(id string, seen ...bool) *story.User {
	u := &story.User{ID: id, Name: id}
	for _, s := range seen {
		st := story.New("https://example.com/"+id+".jpg", story.KindImage, time.Now())
		if s {
			st.MarkSeen()
		}
		u.Stories = append(u.Stories, st)
	}
	return u
}

func ids(users []*story.User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func TestSortBySeenStatusIsStable(t *testing.T) {
	a, b, c := user("A", false), user("B", true), user("C", false)
	q := New([]*story.User{a, b, c}, false)
	assert.Equal(t, []string{"A", "B", "C"}, ids(q.Users()))

	q.SortBySeenStatus()
	if diff := cmp.Diff([]string{"A", "C", "B"}, ids(q.Users())); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestNewSorted(t *testing.T) {
	q := New([]*story.User{
		user("seen1", true, true),
		user("mixed", true, false),
		user("seen2", true),
		user("fresh", false),
		user("empty"),
	}, true)
	assert.Equal(t, []string{"mixed", "fresh", "seen1", "seen2", "empty"}, ids(q.Users()))
}

func TestNewCopiesInput(t *testing.T) {
	in := []*story.User{user("A", true), user("B", false)}
	New(in, true)
	assert.Equal(t, []string{"A", "B"}, ids(in))
}

func TestNavigation(t *testing.T) {
	q := New([]*story.User{user("A"), user("B"), user("C")}, false)

	i, ok := q.IndexOf("B")
	require.True(t, ok)
	assert.Equal(t, 1, i)
	_, ok = q.IndexOf("Z")
	assert.False(t, ok)

	assert.Equal(t, "C", q.Next("B").ID)
	assert.Nil(t, q.Next("C"))
	assert.Nil(t, q.Next("Z"))
	assert.Equal(t, "A", q.Previous("B").ID)
	assert.Nil(t, q.Previous("A"))
	assert.Nil(t, q.Previous("Z"))
	assert.Equal(t, "B", q.User("B").ID)
	assert.Nil(t, q.User("Z"))
	assert.Equal(t, 3, q.Len())
}

func TestMarkSeen(t *testing.T) {
	q := New([]*story.User{user("A", false, false), user("B", false)}, false)

	assert.True(t, q.MarkSeen("A", 0))
	assert.False(t, q.MarkSeen("A", 0), "re-marking is a no-op")
	assert.False(t, q.MarkSeen("A", 5))
	assert.False(t, q.MarkSeen("Z", 0))
	assert.Equal(t, 1, q.User("A").SeenCount())
	assert.Equal(t, []string{"A", "B"}, ids(q.Users()), "unsorted queue keeps its order")
}

func TestMarkSeenResortsSortedQueue(t *testing.T) {
	q := New([]*story.User{user("A", false), user("B", false), user("C", false)}, true)

	require.True(t, q.MarkSeen("A", 0))
	assert.Equal(t, []string{"B", "C", "A"}, ids(q.Users()))
	assert.Equal(t, "C", q.Next("B").ID)
	assert.Nil(t, q.Next("A"))
}

func TestSummariesReflectSeenState(t *testing.T) {
	q := New([]*story.User{user("A", true, false), user("B", true)}, false)
	require.True(t, q.MarkSeen("A", 1))

	got := q.Summaries()
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].ID)
	assert.Equal(t, 2, got[0].SeenCount)
	assert.True(t, got[0].AllSeen)
	assert.True(t, got[0].Stories[1].Seen)
	assert.Equal(t, story.KindImage, got[1].Stories[0].Kind)
}
