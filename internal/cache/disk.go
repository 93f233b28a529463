// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/storyreel/internal/cachekey"
	xglog "github.com/ManuGH/storyreel/internal/log"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// DiskBackend stores one file per entry under a directory per class:
//
//	<root>/images/profiles/<key>.img
//	<root>/images/stories/<key>.img
//	<root>/videos/<key>.mp4
//
// The creation timestamp of an entry is carried as the file's modification
// time, which Put sets explicitly when the caller supplies one.
type DiskBackend struct {
	root   string
	logger zerolog.Logger
}

// NewDiskBackend returns a backend rooted at dir. Class directories are
// created lazily on first write.
func NewDiskBackend(dir string) (*DiskBackend, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("disk cache: empty directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("disk cache: resolve %q: %w", dir, err)
	}
	return &DiskBackend{
		root:   abs,
		logger: xglog.WithComponent("cache.disk"),
	}, nil
}

// Name implements Backend.
func (d *DiskBackend) Name() string { return "disk" }

// Root returns the absolute cache root.
func (d *DiskBackend) Root() string { return d.root }

func (d *DiskBackend) dir(class Class) string {
	return filepath.Join(d.root, class.relDir())
}

func (d *DiskBackend) path(class Class, key string) (string, error) {
	if !class.Valid() {
		return "", ErrInvalidClass
	}
	// Keys become file names; only accept content hashes.
	if !cachekey.Valid(key) {
		return "", ErrInvalidKey
	}
	return filepath.Join(d.dir(class), key+class.ext()), nil
}

// Get implements Backend. A file removed by a concurrent sweep reads as a miss.
func (d *DiskBackend) Get(_ context.Context, class Class, key string) ([]byte, error) {
	p, err := d.path(class, key)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path is built from a validated hash
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("disk cache: read %s: %w", p, err)
	}
	return data, nil
}

// Put implements Backend.
func (d *DiskBackend) Put(_ context.Context, class Class, key string, data []byte, createdAt time.Time) error {
	p, err := d.path(class, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir(class), 0o750); err != nil {
		return fmt.Errorf("disk cache: create %s: %w", d.dir(class), err)
	}

	// renameio handles: temp file creation, fsync, atomic rename, cleanup on error
	pending, err := renameio.NewPendingFile(p, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("disk cache: create pending file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			d.logger.Debug().Err(err).Str(xglog.FieldPath, p).Msg("cleanup pending cache file")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("disk cache: write: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("disk cache: replace %s: %w", p, err)
	}

	if !createdAt.IsZero() {
		if err := os.Chtimes(p, createdAt, createdAt); err != nil {
			return fmt.Errorf("disk cache: stamp %s: %w", p, err)
		}
	}
	return nil
}

// Remove implements Backend.
func (d *DiskBackend) Remove(_ context.Context, class Class, key string) error {
	p, err := d.path(class, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("disk cache: remove %s: %w", p, err)
	}
	return nil
}

// Sweep implements Backend.
func (d *DiskBackend) Sweep(ctx context.Context, class Class, cutoff time.Time) (int, error) {
	if !class.Valid() {
		return 0, ErrInvalidClass
	}
	entries, err := os.ReadDir(d.dir(class))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("disk cache: list %s: %w", d.dir(class), err)
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), class.ext()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Gone between listing and stat.
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		p := filepath.Join(d.dir(class), e.Name())
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// Clear implements Backend.
func (d *DiskBackend) Clear(_ context.Context, class Class) error {
	if !class.Valid() {
		return ErrInvalidClass
	}
	if err := os.RemoveAll(d.dir(class)); err != nil {
		return fmt.Errorf("disk cache: clear %s: %w", d.dir(class), err)
	}
	return nil
}

// Locate implements FileLocator.
func (d *DiskBackend) Locate(class Class, key string) (string, bool) {
	p, err := d.path(class, key)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return p, true
}

// Close implements Backend.
func (d *DiskBackend) Close() error { return nil }
