// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"time"

	"github.com/ManuGH/storyreel/internal/metrics"
)

// Clock creates tick sources. Tests substitute a manual clock.
type Clock interface {
	NewTicker(d time.Duration) TickSource
}

// TickSource is the subset of time.Ticker the controller needs.
type TickSource interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) NewTicker(d time.Duration) TickSource { return &realTicker{time.NewTicker(d)} }

type realTicker struct {
	*time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.Ticker.C }

// ticker is one run of the periodic progress task. A stopped ticker is
// never restarted; the controller starts a new one instead.
type ticker struct {
	quit chan struct{}
}

func (t *ticker) stop() {
	close(t.quit)
}

// startTickerLocked starts the progress task if playback is running on an
// image story and no task is active.
func (c *Controller) startTickerLocked() {
	if c.ticker != nil || !c.shouldTickLocked() {
		return
	}
	t := &ticker{quit: make(chan struct{})}
	c.ticker = t
	c.tickWG.Add(1)
	go c.runTicker(t)
}

// stopTickerLocked detaches the active task. It does not wait; a tick that
// is already waiting for the lock sees it is stale and does nothing.
func (c *Controller) stopTickerLocked() {
	if c.ticker == nil {
		return
	}
	c.ticker.stop()
	c.ticker = nil
}

func (c *Controller) runTicker(t *ticker) {
	defer c.tickWG.Done()
	metrics.ActiveTickers.Inc()
	defer metrics.ActiveTickers.Dec()

	src := c.clock.NewTicker(c.interval)
	defer src.Stop()
	for {
		select {
		case <-t.quit:
			return
		case <-src.C():
			c.tickFrom(t)
		}
	}
}

func (c *Controller) tickFrom(t *ticker) {
	c.do(func() {
		if c.ticker != t {
			return
		}
		c.tickLocked(c.interval.Seconds())
	})
}
