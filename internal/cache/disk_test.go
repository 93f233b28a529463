// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/storyreel/internal/cachekey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskBackend_Layout(t *testing.T) {
	root := t.TempDir()
	d, err := NewDiskBackend(root)
	require.NoError(t, err)
	ctx := context.Background()

	key := cachekey.Key("https://example.com/a")
	require.NoError(t, d.Put(ctx, ClassProfile, key, []byte("p"), time.Time{}))
	require.NoError(t, d.Put(ctx, ClassStoryImage, key, []byte("i"), time.Time{}))
	require.NoError(t, d.Put(ctx, ClassStoryVideo, key, []byte("v"), time.Time{}))

	assert.FileExists(t, filepath.Join(root, "images", "profiles", key+".img"))
	assert.FileExists(t, filepath.Join(root, "images", "stories", key+".img"))
	assert.FileExists(t, filepath.Join(root, "videos", key+".mp4"))
}

func TestDiskBackend_DirectoriesAreLazy(t *testing.T) {
	root := t.TempDir()
	_, err := NewDiskBackend(root)
	require.NoError(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskBackend_StampsCreatedAt(t *testing.T) {
	d, err := NewDiskBackend(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	key := cachekey.Key("https://example.com/story.jpg")
	require.NoError(t, d.Put(ctx, ClassStoryImage, key, []byte("x"), created))

	p, ok := d.Locate(ClassStoryImage, key)
	require.True(t, ok)
	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(created), "mtime %v != %v", info.ModTime(), created)
}

func TestDiskBackend_RejectsNonHashKeys(t *testing.T) {
	d, err := NewDiskBackend(t.TempDir())
	require.NoError(t, err)

	err = d.Put(context.Background(), ClassStoryImage, "../escape", []byte("x"), time.Time{})
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestDiskBackend_ClearRemovesOnlyClassDir(t *testing.T) {
	root := t.TempDir()
	d, err := NewDiskBackend(root)
	require.NoError(t, err)
	ctx := context.Background()

	key := cachekey.Key("https://example.com/x")
	require.NoError(t, d.Put(ctx, ClassProfile, key, []byte("p"), time.Time{}))
	require.NoError(t, d.Put(ctx, ClassStoryImage, key, []byte("s"), time.Time{}))

	require.NoError(t, d.Clear(ctx, ClassStoryImage))
	assert.NoDirExists(t, filepath.Join(root, "images", "stories"))
	assert.DirExists(t, filepath.Join(root, "images", "profiles"))
}

func TestDiskBackend_ConcurrentSweepAndReads(t *testing.T) {
	d, err := NewDiskBackend(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	keys := make([]string, 50)
	for i := range keys {
		keys[i] = cachekey.Key(fmt.Sprintf("https://example.com/%d.jpg", i))
		require.NoError(t, d.Put(ctx, ClassStoryImage, keys[i], []byte("data"), old))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = d.Sweep(ctx, ClassStoryImage, time.Now())
	}()
	go func() {
		defer wg.Done()
		for _, k := range keys {
			data, err := d.Get(ctx, ClassStoryImage, k)
			if err != nil {
				assert.ErrorIs(t, err, ErrNotFound)
				continue
			}
			assert.Equal(t, []byte("data"), data)
		}
	}()
	wg.Wait()

	n, err := d.Sweep(ctx, ClassStoryImage, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n, "first sweep removed everything")
}
