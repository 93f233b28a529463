// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cache stores fetched story media keyed by a hash of its source URL.
//
// A Backend is a plain key/blob store partitioned by Class. Store wraps a
// Backend, derives keys from URLs and absorbs every backend error: the cache
// is an optimisation and must never break playback.
package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by backends on a cache miss.
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidClass is returned for unknown partitions.
	ErrInvalidClass = errors.New("invalid cache class")
	// ErrInvalidKey is returned for keys that are not content hashes.
	ErrInvalidKey = errors.New("invalid cache key")
	// ErrClosed is returned by backends used after Close.
	ErrClosed = errors.New("cache backend closed")
)

// Backend is a class-partitioned blob store.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Get returns the blob stored under key, or ErrNotFound.
	Get(ctx context.Context, class Class, key string) ([]byte, error)
	// Put stores data under key. A zero createdAt leaves the backend's
	// own notion of creation time (the write time).
	Put(ctx context.Context, class Class, key string, data []byte, createdAt time.Time) error
	// Remove deletes key. A missing entry is not an error.
	Remove(ctx context.Context, class Class, key string) error
	// Sweep deletes entries created before cutoff and returns how many went.
	Sweep(ctx context.Context, class Class, cutoff time.Time) (int, error)
	// Clear deletes the whole partition.
	Clear(ctx context.Context, class Class) error
	// Close releases backend resources.
	Close() error
}

// FileLocator is implemented by backends whose entries live as plain files.
type FileLocator interface {
	Locate(class Class, key string) (string, bool)
}

// Stats holds backend counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Evictions int64
	Entries   int
}

// StatsReporter is implemented by backends that keep counters.
type StatsReporter interface {
	Stats() Stats
}

// encodeEntry prefixes data with createdAt in unix nanoseconds. Used by
// backends without per-entry metadata.
func encodeEntry(data []byte, createdAt time.Time) []byte {
	buf := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(buf[:8], uint64(createdAt.UnixNano()))
	copy(buf[8:], data)
	return buf
}

func decodeEntry(buf []byte) ([]byte, time.Time, bool) {
	if len(buf) < 8 {
		return nil, time.Time{}, false
	}
	ts := int64(binary.BigEndian.Uint64(buf[:8]))
	out := make([]byte, len(buf)-8)
	copy(out, buf[8:])
	return out, time.Unix(0, ts), true
}

func checkArgs(class Class, key string) error {
	if !class.Valid() {
		return ErrInvalidClass
	}
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}
