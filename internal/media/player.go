// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"sync"
	"time"
)

// Player is the video player handle the playback controller drives.
type Player interface {
	// Load replaces the current item. Playback stays paused until Play.
	Load(source string, duration float64)
	Play()
	Pause()
	// Stop unloads the current item.
	Stop()
}

// ProgressFunc receives the loaded source with its play position and known
// duration, both in seconds. duration is 0 while unknown.
type ProgressFunc func(source string, position, duration float64)

// ClockPlayer is a headless Player that advances its position with the wall
// clock and reports it every interval. It stands in for a real decoder when
// the engine runs as a daemon.
type ClockPlayer struct {
	interval   time.Duration
	onProgress ProgressFunc

	mu       sync.Mutex
	source   string
	duration float64
	position float64
	playing  bool
	started  bool
	closed   bool

	quit     chan struct{}
	done     chan struct{}
	quitOnce sync.Once
}

// NewClockPlayer returns a stopped player. onProgress runs on the player's
// goroutine and must not call Close.
func NewClockPlayer(interval time.Duration, onProgress ProgressFunc) *ClockPlayer {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &ClockPlayer{
		interval:   interval,
		onProgress: onProgress,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Load implements Player.
func (p *ClockPlayer) Load(source string, duration float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = source
	p.duration = duration
	p.position = 0
	p.playing = false
	if !p.started && !p.closed {
		p.started = true
		go p.loop()
	}
}

// SetDuration updates the duration once it is known.
func (p *ClockPlayer) SetDuration(d float64) {
	p.mu.Lock()
	p.duration = d
	p.mu.Unlock()
}

// Play implements Player.
func (p *ClockPlayer) Play() {
	p.mu.Lock()
	p.playing = p.source != ""
	p.mu.Unlock()
}

// Pause implements Player.
func (p *ClockPlayer) Pause() {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
}

// Stop implements Player.
func (p *ClockPlayer) Stop() {
	p.mu.Lock()
	p.playing = false
	p.source = ""
	p.position = 0
	p.mu.Unlock()
}

// Playing reports whether the clock is running.
func (p *ClockPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Source returns the loaded item, or "" when stopped.
func (p *ClockPlayer) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// Position returns the current play position in seconds.
func (p *ClockPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Close stops the reporting goroutine and waits for it to exit.
func (p *ClockPlayer) Close() {
	p.mu.Lock()
	p.closed = true
	started := p.started
	p.mu.Unlock()
	p.quitOnce.Do(func() { close(p.quit) })
	if started {
		<-p.done
	}
}

func (p *ClockPlayer) loop() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	step := p.interval.Seconds()
	for {
		select {
		case <-p.quit:
			return
		case <-ticker.C:
			p.mu.Lock()
			if !p.playing {
				p.mu.Unlock()
				continue
			}
			p.position += step
			if p.duration > 0 && p.position > p.duration {
				p.position = p.duration
			}
			src, pos, dur := p.source, p.position, p.duration
			p.mu.Unlock()

			if p.onProgress != nil {
				p.onProgress(src, pos, dur)
			}
		}
	}
}
