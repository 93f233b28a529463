// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/storyreel/internal/cachekey"
	"github.com/ManuGH/storyreel/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, b Backend) *Store {
	t.Helper()
	return NewStore(b, WithSpoolDir(t.TempDir()), WithLogger(zerolog.Nop()))
}

func TestStore_MissThenHit(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend(0, 0))
	ctx := context.Background()
	url := "https://example.com/story/1.jpg"

	_, ok := s.Get(ctx, url, ClassStoryImage)
	require.False(t, ok)

	s.Put(ctx, []byte("jpeg"), url, ClassStoryImage, time.Now())

	data, ok := s.Get(ctx, url, ClassStoryImage)
	require.True(t, ok)
	assert.Equal(t, []byte("jpeg"), data)
}

func TestStore_RoundTripEveryClassAndBackend(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		s := newTestStore(t, b)
		ctx := context.Background()
		for _, class := range Classes {
			url := "https://example.com/media/" + string(class)
			s.Put(ctx, []byte(url), url, class, time.Now())
			got, ok := s.Get(ctx, url, class)
			require.True(t, ok, "class %s", class)
			assert.Equal(t, []byte(url), got)
		}
	})
}

func TestStore_SweepExpiredKeepsProfile(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		s := newTestStore(t, b)
		ctx := context.Background()

		cutoff := time.Now().Add(-24 * time.Hour)
		t1 := cutoff.Add(-time.Hour)
		t2 := cutoff.Add(time.Hour)

		s.Put(ctx, []byte("old"), "https://example.com/old.jpg", ClassStoryImage, t1)
		s.Put(ctx, []byte("new"), "https://example.com/new.jpg", ClassStoryImage, t2)
		s.Put(ctx, []byte("oldvid"), "https://example.com/old.mp4", ClassStoryVideo, t1)
		// Profile stamps are ignored; the entry keeps its write time.
		s.Put(ctx, []byte("avatar"), "https://example.com/avatar.jpg", ClassProfile, t1)

		assert.Equal(t, 1, s.SweepExpired(ctx, cutoff, ClassStoryImage))
		assert.Equal(t, 1, s.SweepExpired(ctx, cutoff, ClassStoryVideo))
		assert.Equal(t, 0, s.SweepExpired(ctx, time.Now().Add(time.Hour), ClassProfile))

		_, ok := s.Get(ctx, "https://example.com/old.jpg", ClassStoryImage)
		assert.False(t, ok)
		_, ok = s.Get(ctx, "https://example.com/new.jpg", ClassStoryImage)
		assert.True(t, ok)
		_, ok = s.Get(ctx, "https://example.com/old.mp4", ClassStoryVideo)
		assert.False(t, ok)
		_, ok = s.Get(ctx, "https://example.com/avatar.jpg", ClassProfile)
		assert.True(t, ok, "profile entries are never swept")
	})
}

func TestStore_RemoveAndClearAll(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend(0, 0))
	ctx := context.Background()

	s.Put(ctx, []byte("a"), "https://example.com/a", ClassStoryImage, time.Time{})
	s.Put(ctx, []byte("b"), "https://example.com/b", ClassStoryImage, time.Time{})

	s.Remove(ctx, "https://example.com/a", ClassStoryImage)
	_, ok := s.Get(ctx, "https://example.com/a", ClassStoryImage)
	assert.False(t, ok)

	s.ClearAll(ctx, ClassStoryImage)
	_, ok = s.Get(ctx, "https://example.com/b", ClassStoryImage)
	assert.False(t, ok)

	// Missing entries are not an error.
	s.Remove(ctx, "https://example.com/never", ClassStoryImage)
}

func TestStore_SetBackendIsVisibleToSubsequentCalls(t *testing.T) {
	first := NewMemoryBackend(0, 0)
	second := NewMemoryBackend(0, 0)
	s := newTestStore(t, first)
	ctx := context.Background()
	url := "https://example.com/a.jpg"

	s.Put(ctx, []byte("first"), url, ClassStoryImage, time.Time{})

	old := s.SetBackend(second)
	assert.Same(t, first, old)
	assert.Same(t, second, s.Backend())

	_, ok := s.Get(ctx, url, ClassStoryImage)
	assert.False(t, ok, "new backend starts empty")

	s.Put(ctx, []byte("second"), url, ClassStoryImage, time.Time{})
	data, err := first.Get(ctx, ClassStoryImage, cachekey.Key(url))
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data, "old backend untouched by later writes")
}

type failingBackend struct{ *MemoryBackend }

var errDiskFull = errors.New("disk full")

func (f failingBackend) Name() string { return "failing" }

func (f failingBackend) Get(context.Context, Class, string) ([]byte, error) {
	return nil, errDiskFull
}

func (f failingBackend) Put(context.Context, Class, string, []byte, time.Time) error {
	return errDiskFull
}

func (f failingBackend) Sweep(context.Context, Class, time.Time) (int, error) {
	return 0, errDiskFull
}

func TestStore_AbsorbsBackendErrors(t *testing.T) {
	s := newTestStore(t, failingBackend{NewMemoryBackend(0, 0)})
	ctx := context.Background()

	before := testutil.ToFloat64(metrics.CacheIOErrors.WithLabelValues("put", "failing"))

	s.Put(ctx, []byte("x"), "https://example.com/x", ClassStoryImage, time.Time{})
	_, ok := s.Get(ctx, "https://example.com/x", ClassStoryImage)
	assert.False(t, ok)
	assert.Zero(t, s.SweepExpired(ctx, time.Now(), ClassStoryImage))

	after := testutil.ToFloat64(metrics.CacheIOErrors.WithLabelValues("put", "failing"))
	assert.Equal(t, before+1, after)
}

func TestStore_LocateDiskReturnsEntryPath(t *testing.T) {
	d, err := NewDiskBackend(t.TempDir())
	require.NoError(t, err)
	s := newTestStore(t, d)
	ctx := context.Background()
	url := "https://example.com/v.mp4"

	_, ok := s.Locate(ctx, url, ClassStoryVideo)
	assert.False(t, ok)

	s.Put(ctx, []byte("mp4"), url, ClassStoryVideo, time.Now())
	p, ok := s.Locate(ctx, url, ClassStoryVideo)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(d.Root(), "videos", cachekey.Key(url)+".mp4"), p)
}

func TestStore_LocateSpoolsNonFileBackends(t *testing.T) {
	spool := t.TempDir()
	s := NewStore(NewMemoryBackend(0, 0), WithSpoolDir(spool), WithLogger(zerolog.Nop()))
	ctx := context.Background()
	url := "https://example.com/v.mp4"

	s.Put(ctx, []byte("mp4-bytes"), url, ClassStoryVideo, time.Now())
	p, ok := s.Locate(ctx, url, ClassStoryVideo)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(spool, string(ClassStoryVideo), cachekey.Key(url)+".mp4"), p)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4-bytes"), data)
}
