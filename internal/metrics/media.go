// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchDuration tracks media downloads.
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storyreel_fetch_duration_seconds",
		Help:    "Duration of media downloads",
		Buckets: prometheus.ExponentialBuckets(0.01, 2.0, 12), // 10ms to ~40s
	}, []string{"result"})

	// FetchErrors counts failed downloads by reason.
	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyreel_fetch_errors_total",
		Help: "Failed media downloads by reason",
	}, []string{"reason"})

	// SlotTransitions counts media slot state changes.
	SlotTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyreel_slot_transitions_total",
		Help: "Media slot state transitions",
	}, []string{"kind", "phase"})

	// VideoExports counts background video exports by result.
	VideoExports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyreel_video_exports_total",
		Help: "Background video exports into the cache",
	}, []string{"result"})
)
