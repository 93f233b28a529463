// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package watchdog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type mockClock struct {
	mu     sync.Mutex
	now    time.Time
	ticker *mockTicker
	made   chan struct{}
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Unix(1_700_000_000, 0), made: make(chan struct{})}
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockClock) NewTicker(time.Duration) ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticker = &mockTicker{c: make(chan time.Time)}
	close(m.made)
	return m.ticker
}

// advance moves time forward and delivers one tick.
func (m *mockClock) advance(d time.Duration) {
	<-m.made
	m.mu.Lock()
	m.now = m.now.Add(d)
	now, t := m.now, m.ticker
	m.mu.Unlock()
	t.c <- now
}

type mockTicker struct {
	c chan time.Time
}

func (m *mockTicker) C() <-chan time.Time { return m.c }
func (m *mockTicker) Stop()               {}

func start(t *testing.T, w *Watchdog) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(context.Background()) }()
	return errCh
}

func TestStartTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := newMockClock()
	w := New(2*time.Second, 5*time.Second)
	w.clock = clock

	errCh := start(t, w)
	clock.advance(3 * time.Second)

	assert.ErrorIs(t, <-errCh, ErrStartTimeout)
	assert.Equal(t, StateTimedOut, w.State())
}

func TestStall(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := newMockClock()
	w := New(2*time.Second, 5*time.Second)
	w.clock = clock

	errCh := start(t, w)
	clock.advance(time.Second)
	w.ParseLine("out_time_us=1000000")
	assert.Equal(t, StateRunning, w.State())

	clock.advance(4 * time.Second)
	w.ParseLine("out_time_us=1000000") // no forward progress
	clock.advance(2 * time.Second)

	assert.ErrorIs(t, <-errCh, ErrStalled)
	assert.Equal(t, StateStalled, w.State())
}

func TestCompletionStopsRun(t *testing.T) {
	defer goleak.VerifyNone(t)
	w := New(time.Minute, time.Minute)
	errCh := start(t, w)

	lw := w.Writer()
	_, err := fmt.Fprint(lw, "total_size=48\nout_time_us=2000\nprogr")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, w.State())
	_, err = fmt.Fprint(lw, "ess=end\n")
	require.NoError(t, err)

	require.NoError(t, <-errCh)
	assert.Equal(t, StateCompleted, w.State())
}

func TestRunStopsOnContext(t *testing.T) {
	defer goleak.VerifyNone(t)
	w := New(time.Minute, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	cancel()
	assert.NoError(t, <-errCh)
	assert.Equal(t, StateStarting, w.State())
}

func TestParseLineIgnoresNoise(t *testing.T) {
	w := New(time.Second, time.Second)
	w.ParseLine("frame=12")
	w.ParseLine("garbage")
	w.ParseLine("out_time_us=N/A")
	assert.Equal(t, StateStarting, w.State())
	assert.Equal(t, "starting", w.State().String())
}
