// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package slot

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/storyreel/internal/cache"
	"github.com/ManuGH/storyreel/internal/media"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu      sync.Mutex
	bodies  map[string][]byte
	errs    map[string]error
	blocked map[string]chan struct{}
	calls   map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies:  map[string][]byte{},
		errs:    map[string]error{},
		blocked: map[string]chan struct{}{},
		calls:   map[string]int{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	gate := f.blocked[url]
	body, err := f.bodies[url], f.errs[url]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, media.ErrNetwork
	}
	return body, nil
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type fakeTranscoder struct {
	exportable bool
	payload    []byte
	exportErr  error
	duration   float64
	durErr     error

	mu      sync.Mutex
	exports int
	probed  []string
}

func (f *fakeTranscoder) IsExportable(context.Context, string) bool { return f.exportable }

func (f *fakeTranscoder) Export(_ context.Context, _ string, out string) error {
	f.mu.Lock()
	f.exports++
	f.mu.Unlock()
	if f.exportErr != nil {
		return f.exportErr
	}
	return os.WriteFile(out, f.payload, 0o600)
}

func (f *fakeTranscoder) Duration(_ context.Context, source string) (float64, error) {
	f.mu.Lock()
	f.probed = append(f.probed, source)
	f.mu.Unlock()
	if f.durErr != nil {
		return 0, f.durErr
	}
	return f.duration, nil
}

func (f *fakeTranscoder) exportCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exports
}

// recorder collects published states in order.
type recorder[T any] struct {
	mu     sync.Mutex
	states []T
}

func (r *recorder[T]) add(s T) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder[T]) all() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.states...)
}

func (r *recorder[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func memoryStore(t *testing.T) *cache.Store {
	t.Helper()
	return cache.NewStore(cache.NewMemoryBackend(0, 0), cache.WithSpoolDir(t.TempDir()), cache.WithLogger(zerolog.Nop()))
}

func diskStore(t *testing.T) *cache.Store {
	t.Helper()
	d, err := cache.NewDiskBackend(t.TempDir())
	require.NoError(t, err)
	return cache.NewStore(d, cache.WithLogger(zerolog.Nop()))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}
