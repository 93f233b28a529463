// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoryTransitions counts story index changes by direction and cause.
	StoryTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyreel_story_transitions_total",
		Help: "Story index changes",
	}, []string{"direction"})

	// BoundaryTransitions counts user boundary crossings.
	BoundaryTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyreel_boundary_transitions_total",
		Help: "User boundary transitions",
	}, []string{"direction", "outcome"})

	// StoriesSeen counts stories marked seen.
	StoriesSeen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyreel_stories_seen_total",
		Help: "Stories marked as seen",
	})

	// ActiveTickers reports running progress tickers. It should never exceed 1
	// per viewer.
	ActiveTickers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storyreel_active_tickers",
		Help: "Running progress tickers",
	})
)
