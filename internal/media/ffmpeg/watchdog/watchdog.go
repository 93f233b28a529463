// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package watchdog detects ffmpeg runs that stop making progress.
//
// ffmpeg is started with "-progress pipe:1"; every line it prints is fed to
// ParseLine. Run fails when no progress arrives within the start timeout or
// when progress stops for longer than the stall timeout.
package watchdog

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	xglog "github.com/ManuGH/storyreel/internal/log"
)

var (
	// ErrStartTimeout is returned when ffmpeg never reports progress.
	ErrStartTimeout = errors.New("ffmpeg reported no progress")
	// ErrStalled is returned when progress stops.
	ErrStalled = errors.New("ffmpeg stalled")
)

// State is the watchdog's view of the process.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateStalled
	StateTimedOut
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStalled:
		return "stalled"
	case StateTimedOut:
		return "timed_out"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

type clock interface {
	Now() time.Time
	NewTicker(d time.Duration) ticker
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time                   { return time.Now() }
func (realClock) NewTicker(d time.Duration) ticker { return &realTicker{time.NewTicker(d)} }

type realTicker struct {
	*time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.Ticker.C }

// Watchdog tracks ffmpeg progress lines.
type Watchdog struct {
	mu sync.Mutex

	startTimeout time.Duration
	stallTimeout time.Duration
	interval     time.Duration

	lastOutTimeUs int64
	lastTotalSize int64
	lastHeartbeat time.Time
	state         State

	completed chan struct{}
	once      sync.Once
	clock     clock
}

// New creates a watchdog. The check interval is derived from the shorter
// timeout and capped at one second.
func New(startTimeout, stallTimeout time.Duration) *Watchdog {
	interval := min(startTimeout, stallTimeout) / 2
	if interval <= 0 || interval > time.Second {
		interval = time.Second
	}
	return &Watchdog{
		startTimeout: startTimeout,
		stallTimeout: stallTimeout,
		interval:     interval,
		completed:    make(chan struct{}),
		clock:        realClock{},
	}
}

// Run checks progress until ctx ends or ffmpeg reports completion, which
// both return nil.
func (w *Watchdog) Run(ctx context.Context) error {
	w.mu.Lock()
	w.lastHeartbeat = w.clock.Now()
	w.mu.Unlock()

	t := w.clock.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.completed:
			return nil
		case <-t.C():
			if err := w.check(); err != nil {
				return err
			}
		}
	}
}

// ParseLine records one "key=value" line of ffmpeg progress output.
func (w *Watchdog) ParseLine(line string) {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg reports microseconds under both keys.
		n, _ := strconv.ParseInt(val, 10, 64)
		if n > w.lastOutTimeUs {
			w.lastOutTimeUs = n
			w.heartbeatLocked()
		}
	case "total_size":
		n, _ := strconv.ParseInt(val, 10, 64)
		if n > w.lastTotalSize {
			w.lastTotalSize = n
			w.heartbeatLocked()
		}
	case "progress":
		if val == "end" {
			w.state = StateCompleted
			w.once.Do(func() { close(w.completed) })
		}
	}
}

func (w *Watchdog) heartbeatLocked() {
	w.lastHeartbeat = w.clock.Now()
	if w.state == StateStarting {
		w.state = StateRunning
		logger := xglog.WithComponent("ffmpeg.watchdog")
		logger.Debug().Msg("progress detected")
	}
}

func (w *Watchdog) check() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	elapsed := w.clock.Now().Sub(w.lastHeartbeat)
	switch w.state {
	case StateStarting:
		if w.startTimeout > 0 && elapsed > w.startTimeout {
			w.state = StateTimedOut
			return ErrStartTimeout
		}
	case StateRunning:
		if w.stallTimeout > 0 && elapsed > w.stallTimeout {
			w.state = StateStalled
			return ErrStalled
		}
	}
	return nil
}

// State returns the current state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Writer returns an io.Writer that splits ffmpeg's progress output into
// lines and feeds them to ParseLine.
func (w *Watchdog) Writer() *LineWriter {
	return &LineWriter{w: w}
}

// LineWriter buffers partial lines between writes.
type LineWriter struct {
	w   *Watchdog
	buf []byte
}

func (lw *LineWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		i := bytes.IndexByte(lw.buf, '\n')
		if i < 0 {
			break
		}
		lw.w.ParseLine(string(lw.buf[:i]))
		lw.buf = lw.buf[i+1:]
	}
	return len(p), nil
}
