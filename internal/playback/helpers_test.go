// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/storyreel/internal/queue"
	"github.com/ManuGH/storyreel/internal/story"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type manualTicker struct {
	c       chan time.Time
	stopped atomic.Bool
}

func (t *manualTicker) C() <-chan time.Time { return t.c }
func (t *manualTicker) Stop()               { t.stopped.Store(true) }

// manualClock hands out tickers that only fire when the test says so.
type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (m *manualClock) NewTicker(time.Duration) TickSource {
	t := &manualTicker{c: make(chan time.Time)}
	m.mu.Lock()
	m.tickers = append(m.tickers, t)
	m.mu.Unlock()
	return t
}

func (m *manualClock) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickers {
		if !t.stopped.Load() {
			n++
		}
	}
	return n
}

func (m *manualClock) fire(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	var cur *manualTicker
	for i := len(m.tickers) - 1; i >= 0; i-- {
		if !m.tickers[i].stopped.Load() {
			cur = m.tickers[i]
			break
		}
	}
	m.mu.Unlock()
	require.NotNil(t, cur, "no active ticker")
	select {
	case cur.c <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("ticker goroutine did not receive")
	}
}

type fakePlayer struct {
	mu    sync.Mutex
	calls []string
}

func (p *fakePlayer) record(s string) {
	p.mu.Lock()
	p.calls = append(p.calls, s)
	p.mu.Unlock()
}

func (p *fakePlayer) Load(source string, _ float64) { p.record("load " + source) }
func (p *fakePlayer) Play()                         { p.record("play") }
func (p *fakePlayer) Pause()                        { p.record("pause") }
func (p *fakePlayer) Stop()                         { p.record("stop") }

func (p *fakePlayer) log() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) of(types ...EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		for _, typ := range types {
			if ev.Type == typ {
				out = append(out, ev)
			}
		}
	}
	return out
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

func (l *eventLog) reset() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}

// newUser builds a user with one story per kind, each lasting duration.
func newUser(id string, duration float64, kinds ...story.MediaKind) *story.User {
	u := &story.User{ID: id, Name: id}
	for i, k := range kinds {
		u.Stories = append(u.Stories, &story.Story{
			ID:        fmt.Sprintf("%s-%d", id, i),
			MediaURL:  fmt.Sprintf("https://cdn.example.com/%s/%d", id, i),
			CreatedAt: time.Now(),
			Duration:  duration,
			Kind:      k,
			State:     story.Unseen,
		})
	}
	return u
}

func images(n int) []story.MediaKind {
	out := make([]story.MediaKind, n)
	for i := range out {
		out[i] = story.KindImage
	}
	return out
}

type fixture struct {
	ctrl   *Controller
	clock  *manualClock
	player *fakePlayer
	events *eventLog
	queue  *queue.Queue
}

func newFixture(t *testing.T, sorted bool, users ...*story.User) *fixture {
	t.Helper()
	f := &fixture{
		clock:  &manualClock{},
		player: &fakePlayer{},
		events: &eventLog{},
		queue:  queue.New(users, sorted),
	}
	f.ctrl = New(f.queue,
		WithClock(f.clock),
		WithPlayer(f.player),
		WithTickInterval(time.Second),
		WithLogger(zerolog.Nop()),
	)
	f.ctrl.Subscribe(f.events.add)
	t.Cleanup(f.ctrl.Close)
	return f
}

func (f *fixture) ticks(n int, delta float64) {
	for i := 0; i < n; i++ {
		f.ctrl.Tick(delta)
	}
}
