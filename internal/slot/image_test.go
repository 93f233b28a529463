// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package slot

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/ManuGH/storyreel/internal/cache"
	"github.com/ManuGH/storyreel/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const imgURL = "https://cdn.example.com/stories/1.png"

func phases(states []ImageState) []Phase {
	out := make([]Phase, len(states))
	for i, s := range states {
		out[i] = s.Phase
	}
	return out
}

func TestImageSlot_MissFetchesAndWritesThrough(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := memoryStore(t)
	f := newFakeFetcher()
	f.bodies[imgURL] = pngBytes(t, 8, 8)

	s := NewImageSlot(store, f, media.StdCodec{})
	var rec recorder[ImageState]
	s.OnChange(rec.add)

	s.Load(context.Background(), ImageRequest{URL: imgURL, Class: cache.ClassStoryImage, CreatedAt: time.Now()})
	waitFor(t, func() bool { return rec.len() == 2 })
	s.Close()

	states := rec.all()
	assert.Equal(t, []Phase{PhaseLoading, PhaseSuccess}, phases(states))
	assert.False(t, states[1].Cached)
	assert.Equal(t, image.Rect(0, 0, 8, 8), states[1].Image.Bounds())

	data, ok := store.Get(context.Background(), imgURL, cache.ClassStoryImage)
	require.True(t, ok, "fetched bytes are written through")
	assert.Equal(t, f.bodies[imgURL], data)
}

func TestImageSlot_HitSkipsFetch(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := memoryStore(t)
	store.Put(context.Background(), pngBytes(t, 4, 4), imgURL, cache.ClassProfile, time.Time{})
	f := newFakeFetcher()

	s := NewImageSlot(store, f, media.StdCodec{})
	var rec recorder[ImageState]
	s.OnChange(rec.add)
	s.Load(context.Background(), ImageRequest{URL: imgURL, Class: cache.ClassProfile})
	waitFor(t, func() bool { return rec.len() == 2 })
	s.Close()

	assert.True(t, rec.all()[1].Cached)
	assert.Zero(t, f.count(imgURL))
}

func TestImageSlot_SameURLIsNoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFakeFetcher()
	f.bodies[imgURL] = pngBytes(t, 2, 2)
	s := NewImageSlot(memoryStore(t), f, media.StdCodec{})
	var rec recorder[ImageState]
	s.OnChange(rec.add)

	req := ImageRequest{URL: imgURL, Class: cache.ClassStoryImage}
	s.Load(context.Background(), req)
	waitFor(t, func() bool { return rec.len() == 2 })
	s.Load(context.Background(), req)
	s.Close()

	assert.Len(t, rec.all(), 2)
	assert.Equal(t, 1, f.count(imgURL))
	assert.Equal(t, PhaseSuccess, s.State().Phase)
}

func TestImageSlot_Failures(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		prepare func(*fakeFetcher)
		want    error
	}{
		{"empty url", "", nil, media.ErrInvalidURL},
		{"bad scheme", "file:///etc/passwd", nil, media.ErrInvalidURL},
		{"network", imgURL, func(f *fakeFetcher) { f.errs[imgURL] = media.ErrNetwork }, media.ErrNetwork},
		{"undecodable", imgURL, func(f *fakeFetcher) { f.bodies[imgURL] = []byte("<html>") }, media.ErrDecoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher()
			if tt.prepare != nil {
				tt.prepare(f)
			}
			store := memoryStore(t)
			s := NewImageSlot(store, f, media.StdCodec{})
			var rec recorder[ImageState]
			s.OnChange(rec.add)

			s.Load(context.Background(), ImageRequest{URL: tt.url, Class: cache.ClassStoryImage})
			waitFor(t, func() bool { return rec.len() == 2 })
			s.Close()

			last := rec.all()[1]
			assert.Equal(t, PhaseFailed, last.Phase)
			assert.ErrorIs(t, last.Err, tt.want)
			_, cached := store.Get(context.Background(), tt.url, cache.ClassStoryImage)
			assert.False(t, cached, "failures are never cached")
		})
	}
}

func TestImageSlot_SupersededResultIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const slowURL = "https://cdn.example.com/slow.png"
	f := newFakeFetcher()
	f.bodies[slowURL] = pngBytes(t, 1, 1)
	f.bodies[imgURL] = pngBytes(t, 2, 2)
	gate := make(chan struct{})
	f.blocked[slowURL] = gate

	s := NewImageSlot(memoryStore(t), f, media.StdCodec{})
	var rec recorder[ImageState]
	s.OnChange(rec.add)

	s.Load(context.Background(), ImageRequest{URL: slowURL, Class: cache.ClassStoryImage})
	waitFor(t, func() bool { return f.count(slowURL) == 1 })
	s.Load(context.Background(), ImageRequest{URL: imgURL, Class: cache.ClassStoryImage})
	waitFor(t, func() bool { return rec.len() == 3 })
	close(gate)
	s.Close()

	states := rec.all()
	require.Len(t, states, 3)
	assert.Equal(t, []Phase{PhaseLoading, PhaseLoading, PhaseSuccess}, phases(states))
	assert.Equal(t, slowURL, states[0].URL)
	assert.Equal(t, imgURL, states[2].URL)
}

func TestImageSlot_CancelStopsTransitions(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFakeFetcher()
	f.bodies[imgURL] = pngBytes(t, 1, 1)
	f.blocked[imgURL] = make(chan struct{})

	s := NewImageSlot(memoryStore(t), f, media.StdCodec{})
	var rec recorder[ImageState]
	s.OnChange(rec.add)

	s.Load(context.Background(), ImageRequest{URL: imgURL, Class: cache.ClassStoryImage})
	waitFor(t, func() bool { return f.count(imgURL) == 1 })
	s.Cancel()
	s.Close()

	assert.Equal(t, []Phase{PhaseLoading}, phases(rec.all()))
}

func TestImageSlot_LoadAfterCancelRestarts(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFakeFetcher()
	f.bodies[imgURL] = pngBytes(t, 1, 1)
	s := NewImageSlot(memoryStore(t), f, media.StdCodec{})
	var rec recorder[ImageState]
	s.OnChange(rec.add)

	req := ImageRequest{URL: imgURL, Class: cache.ClassStoryImage}
	s.Load(context.Background(), req)
	waitFor(t, func() bool { return rec.len() == 2 })
	s.Cancel()
	s.Load(context.Background(), req)
	waitFor(t, func() bool { return rec.len() == 4 })
	s.Close()
}

func TestImageSlot_CorruptCacheEntryIsRefetched(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := memoryStore(t)
	store.Put(context.Background(), []byte("garbage"), imgURL, cache.ClassStoryImage, time.Now())
	f := newFakeFetcher()
	f.bodies[imgURL] = pngBytes(t, 3, 3)

	s := NewImageSlot(store, f, media.StdCodec{})
	var rec recorder[ImageState]
	s.OnChange(rec.add)
	s.Load(context.Background(), ImageRequest{URL: imgURL, Class: cache.ClassStoryImage})
	waitFor(t, func() bool { return rec.len() == 2 })
	s.Close()

	assert.Equal(t, PhaseSuccess, rec.all()[1].Phase)
	assert.Equal(t, 1, f.count(imgURL))
	data, ok := store.Get(context.Background(), imgURL, cache.ClassStoryImage)
	require.True(t, ok)
	assert.Equal(t, f.bodies[imgURL], data)
}

func TestImageSlot_Downsamples(t *testing.T) {
	f := newFakeFetcher()
	f.bodies[imgURL] = pngBytes(t, 200, 100)
	s := NewImageSlot(memoryStore(t), f, media.StdCodec{})
	var rec recorder[ImageState]
	s.OnChange(rec.add)

	s.Load(context.Background(), ImageRequest{URL: imgURL, Class: cache.ClassStoryImage, Target: media.Size{Width: 50}})
	waitFor(t, func() bool { return rec.len() == 2 })
	s.Close()

	assert.Equal(t, image.Rect(0, 0, 50, 25), rec.all()[1].Image.Bounds())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "loading", PhaseLoading.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
