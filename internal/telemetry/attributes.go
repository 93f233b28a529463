// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by spans across the engine.
const (
	// Story attributes
	UserIDKey     = "story.user_id"
	StoryIDKey    = "story.id"
	StoryIndexKey = "story.index"
	MediaKindKey  = "story.media_kind"

	// Media attributes
	MediaURLKey    = "media.url"
	MediaBytesKey  = "media.bytes"
	MediaCachedKey = "media.cached"

	// Cache attributes
	CacheClassKey   = "cache.class"
	CacheBackendKey = "cache.backend"

	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPRouteKey      = "http.route"
	HTTPStatusCodeKey = "http.status_code"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// StoryAttributes describes the story a span works on. Empty values are
// omitted.
func StoryAttributes(userID, storyID string, index int, kind string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if userID != "" {
		attrs = append(attrs, attribute.String(UserIDKey, userID))
	}
	if storyID != "" {
		attrs = append(attrs, attribute.String(StoryIDKey, storyID))
	}
	if index >= 0 {
		attrs = append(attrs, attribute.Int(StoryIndexKey, index))
	}
	if kind != "" {
		attrs = append(attrs, attribute.String(MediaKindKey, kind))
	}
	return attrs
}

// MediaAttributes describes a media load.
func MediaAttributes(url, class string, cached bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(MediaURLKey, url),
		attribute.String(CacheClassKey, class),
		attribute.Bool(MediaCachedKey, cached),
	}
}

// HTTPAttributes describes a served API request.
func HTTPAttributes(method, route string, status int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
	}
	if status > 0 {
		attrs = append(attrs, attribute.Int(HTTPStatusCodeKey, status))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

// RecordError marks span as failed with err classified as errorType.
func RecordError(span trace.Span, err error, errorType string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(ErrorAttributes(err, errorType)...)
	span.SetStatus(codes.Error, errorType)
}
