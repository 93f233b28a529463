// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"errors"
	"os"
	"os/exec"

	"github.com/ManuGH/storyreel/internal/cache"
	"github.com/ManuGH/storyreel/internal/cachekey"
)

// FileChecker requires a non-empty regular file.
type FileChecker struct {
	name string
	path string
}

// NewFileChecker checks path under name.
func NewFileChecker(name, path string) *FileChecker {
	return &FileChecker{name: name, path: path}
}

func (c *FileChecker) Name() string { return c.name }

func (c *FileChecker) Check(context.Context) CheckResult {
	info, err := os.Stat(c.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return CheckResult{Status: StatusUnhealthy, Error: "file not found", Message: c.path}
	case err != nil:
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	case info.IsDir():
		return CheckResult{Status: StatusUnhealthy, Error: "expected file, got directory"}
	case info.Size() == 0:
		return CheckResult{Status: StatusDegraded, Message: "file is empty"}
	}
	return CheckResult{Status: StatusHealthy}
}

// BinaryChecker looks a binary up on $PATH. A missing binary only degrades
// the process: images still play without ffmpeg.
type BinaryChecker struct {
	name string
	bin  string
}

// NewBinaryChecker checks bin under name.
func NewBinaryChecker(name, bin string) *BinaryChecker {
	return &BinaryChecker{name: name, bin: bin}
}

func (c *BinaryChecker) Name() string { return c.name }

func (c *BinaryChecker) Check(context.Context) CheckResult {
	p, err := exec.LookPath(c.bin)
	if err != nil {
		return CheckResult{Status: StatusDegraded, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: p}
}

var probeKey = cachekey.Key("storyreel://health/probe")

// CacheChecker reads a key that is never written from the active backend.
// A miss is healthy; anything else means the backend is unreachable.
type CacheChecker struct {
	backend func() cache.Backend
}

// NewCacheChecker checks whatever backend returns at call time, so the
// check follows backend swaps.
func NewCacheChecker(backend func() cache.Backend) *CacheChecker {
	return &CacheChecker{backend: backend}
}

func (c *CacheChecker) Name() string { return "cache" }

func (c *CacheChecker) Check(ctx context.Context) CheckResult {
	b := c.backend()
	if b == nil {
		return CheckResult{Status: StatusUnhealthy, Error: "no backend"}
	}
	_, err := b.Get(ctx, cache.ClassProfile, probeKey)
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		// The cache is an optimisation; playback continues without it.
		return CheckResult{Status: StatusDegraded, Message: b.Name(), Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: b.Name()}
}
