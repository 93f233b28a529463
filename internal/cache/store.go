// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ManuGH/storyreel/internal/cachekey"
	xglog "github.com/ManuGH/storyreel/internal/log"
	"github.com/ManuGH/storyreel/internal/metrics"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

type backendRef struct {
	b Backend
}

// Store is the media cache used by the fetch pipeline. It addresses entries
// by source URL and never reports backend failures: a failed read is a miss,
// a failed write only costs a future re-fetch.
//
// The backend can be replaced at any time with SetBackend; calls that already
// loaded the old backend finish against it.
type Store struct {
	ref      atomic.Pointer[backendRef]
	spoolDir string
	logger   zerolog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSpoolDir sets where Locate materialises entries of backends that do
// not keep plain files.
func WithSpoolDir(dir string) StoreOption {
	return func(s *Store) { s.spoolDir = dir }
}

// WithLogger overrides the store logger.
func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore wraps b.
func NewStore(b Backend, opts ...StoreOption) *Store {
	s := &Store{
		spoolDir: filepath.Join(os.TempDir(), "storyreel-spool"),
		logger:   xglog.WithComponent("cache"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ref.Store(&backendRef{b: b})
	return s
}

// Backend returns the current backend.
func (s *Store) Backend() Backend {
	return s.ref.Load().b
}

// SetBackend installs b for all subsequent calls and returns the previous
// backend. The caller owns the returned backend and decides when to close it.
func (s *Store) SetBackend(b Backend) Backend {
	old := s.ref.Swap(&backendRef{b: b})
	metrics.CacheBackendSwaps.Inc()
	s.logger.Info().
		Str(xglog.FieldEvent, "cache.backend_swapped").
		Str("from", old.b.Name()).
		Str("to", b.Name()).
		Msg("cache backend replaced")
	return old.b
}

// Get returns the cached bytes for sourceURL.
func (s *Store) Get(ctx context.Context, sourceURL string, class Class) ([]byte, bool) {
	b := s.Backend()
	key := cachekey.Key(sourceURL)
	data, err := b.Get(ctx, class, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.ioError(b, "get", class, key, err)
		}
		metrics.RecordCacheLookup(string(class), false)
		return nil, false
	}
	metrics.RecordCacheLookup(string(class), true)
	return data, true
}

// Put stores data for sourceURL. createdAt is honoured only for story
// classes; profile entries keep the write time so they never age out.
func (s *Store) Put(ctx context.Context, data []byte, sourceURL string, class Class, createdAt time.Time) {
	if !class.Expires() {
		createdAt = time.Time{}
	}
	b := s.Backend()
	key := cachekey.Key(sourceURL)
	if err := b.Put(ctx, class, key, data, createdAt); err != nil {
		s.ioError(b, "put", class, key, err)
		return
	}
	metrics.CacheWrites.WithLabelValues(string(class)).Inc()
}

// Remove deletes the entry for sourceURL.
func (s *Store) Remove(ctx context.Context, sourceURL string, class Class) {
	b := s.Backend()
	key := cachekey.Key(sourceURL)
	if err := b.Remove(ctx, class, key); err != nil {
		s.ioError(b, "remove", class, key, err)
	}
}

// SweepExpired deletes entries of class created before cutoff and returns
// how many were removed. The profile class is never swept.
func (s *Store) SweepExpired(ctx context.Context, cutoff time.Time, class Class) int {
	if !class.Expires() {
		s.logger.Warn().
			Str(xglog.FieldEvent, "cache.sweep_refused").
			Str(xglog.FieldCacheClass, string(class)).
			Msg("refusing to sweep non-expiring cache class")
		return 0
	}
	b := s.Backend()
	n, err := b.Sweep(ctx, class, cutoff)
	if err != nil {
		s.ioError(b, "sweep", class, "", err)
	}
	if n > 0 {
		metrics.CacheSwept.WithLabelValues(string(class)).Add(float64(n))
	}
	s.logger.Debug().
		Str(xglog.FieldEvent, "cache.swept").
		Str(xglog.FieldCacheClass, string(class)).
		Time(xglog.FieldCutoff, cutoff).
		Int("removed", n).
		Msg("cache expiry sweep finished")
	return n
}

// ClearAll deletes the whole partition.
func (s *Store) ClearAll(ctx context.Context, class Class) {
	b := s.Backend()
	if err := b.Clear(ctx, class); err != nil {
		s.ioError(b, "clear", class, "", err)
	}
}

// Locate returns a local file path holding the cached entry for sourceURL.
// Backends that keep plain files answer directly; for the others the bytes
// are written to the spool directory first.
func (s *Store) Locate(ctx context.Context, sourceURL string, class Class) (string, bool) {
	b := s.Backend()
	key := cachekey.Key(sourceURL)
	if fl, ok := b.(FileLocator); ok {
		return fl.Locate(class, key)
	}

	data, ok := s.Get(ctx, sourceURL, class)
	if !ok {
		return "", false
	}
	dir := filepath.Join(s.spoolDir, string(class))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		s.ioError(b, "spool", class, key, err)
		return "", false
	}
	p := filepath.Join(dir, key+class.ext())
	if err := renameio.WriteFile(p, data, 0o644); err != nil {
		s.ioError(b, "spool", class, key, err)
		return "", false
	}
	return p, true
}

// Close closes the current backend.
func (s *Store) Close() error {
	return s.Backend().Close()
}

func (s *Store) ioError(b Backend, op string, class Class, key string, err error) {
	metrics.CacheIOErrors.WithLabelValues(op, b.Name()).Inc()
	s.logger.Warn().
		Err(err).
		Str(xglog.FieldEvent, "cache."+op+"_failed").
		Str(xglog.FieldBackend, b.Name()).
		Str(xglog.FieldCacheClass, string(class)).
		Str(xglog.FieldCacheKey, key).
		Msg("cache operation failed")
}
