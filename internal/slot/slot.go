// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package slot resolves one on-screen media item to a renderable asset.
//
// A slot moves through Loading and then Success or Failed for every new
// URL it is asked to load. A request for a different URL supersedes the
// previous one: its context is cancelled and any result it still produces
// is dropped, so listeners never observe an out-of-order transition.
// Listeners run synchronously on the goroutine that produced the
// transition and must not call back into the same slot.
package slot

import (
	"context"
	"sync"

	"github.com/ManuGH/storyreel/internal/metrics"
)

// Phase is the lifecycle stage of a slot.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSuccess
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// machine holds the supersede bookkeeping shared by both slot kinds.
type machine struct {
	kind string

	mu     sync.Mutex
	url    string
	loaded bool
	gen    uint64
	cancel context.CancelFunc
	closed bool

	// notifyMu serialises publication so a stale result can never be
	// delivered after a newer Loading.
	notifyMu sync.Mutex
	wg       sync.WaitGroup
}

// begin supersedes the current request. It returns false when url is
// already current or the slot is closed. On success the caller owns one
// wg slot and must call wg.Done when its work returns.
func (m *machine) begin(parent context.Context, url string) (context.Context, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || (m.loaded && url == m.url) {
		return nil, 0, false
	}
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	m.cancel = cancel
	m.gen++
	m.url = url
	m.loaded = true
	m.wg.Add(1)
	return ctx, m.gen, true
}

// current reports whether gen still owns the slot.
func (m *machine) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen && !m.closed
}

// publish runs apply and deliver only if gen still owns the slot.
func (m *machine) publish(gen uint64, phase Phase, apply func(), deliver func()) bool {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return false
	}
	apply()
	m.mu.Unlock()

	metrics.SlotTransitions.WithLabelValues(m.kind, phase.String()).Inc()
	deliver()
	return true
}

// detach cancels in-flight work and forgets the current URL, so the next
// Load always starts fresh.
func (m *machine) detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.url = ""
	m.loaded = false
}

func (m *machine) close() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.closed = true
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *machine) currentURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}
