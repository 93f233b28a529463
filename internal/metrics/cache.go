// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors of the engine. All
// collectors register with the default registry on package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheRequests counts cache lookups by class and result (hit|miss).
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyreel_cache_requests_total",
		Help: "Media cache lookups by class and result",
	}, []string{"class", "result"})

	// CacheWrites counts successful cache writes by class.
	CacheWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyreel_cache_writes_total",
		Help: "Media cache writes by class",
	}, []string{"class"})

	// CacheIOErrors counts absorbed backend errors by operation.
	CacheIOErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyreel_cache_io_errors_total",
		Help: "Media cache backend errors absorbed by the store",
	}, []string{"op", "backend"})

	// CacheSwept counts entries removed by expiry sweeps.
	CacheSwept = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyreel_cache_swept_total",
		Help: "Media cache entries removed by expiry sweeps",
	}, []string{"class"})

	// CacheBackendSwaps counts runtime backend replacements.
	CacheBackendSwaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyreel_cache_backend_swaps_total",
		Help: "Number of times the media cache backend was replaced",
	})
)

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(class string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequests.WithLabelValues(class, result).Inc()
}
