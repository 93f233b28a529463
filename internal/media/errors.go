// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL is returned for empty or unparseable media URLs and for
	// schemes other than http and https.
	ErrInvalidURL = errors.New("media: invalid url")
	// ErrDecoding is returned when fetched bytes are not a supported image.
	ErrDecoding = errors.New("media: decoding failed")
	// ErrNetwork covers transport failures and non-2xx responses.
	ErrNetwork = errors.New("media: network error")

	// ErrNotExportable is returned when the source lacks a video or an audio track.
	ErrNotExportable = errors.New("media: source not exportable")
	// ErrIncompatibleFormat is returned when the source cannot be read at all.
	ErrIncompatibleFormat = errors.New("media: incompatible format")
	// ErrExportFailed matches every *ExportError.
	ErrExportFailed = errors.New("media: export failed")
)

// ExportError carries the transcoder's diagnostic output.
type ExportError struct {
	Detail string
	Err    error
}

func (e *ExportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("media: export failed: %v: %s", e.Err, e.Detail)
	}
	return "media: export failed: " + e.Detail
}

// Is reports ErrExportFailed as a match.
func (e *ExportError) Is(target error) bool {
	return target == ErrExportFailed
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Reason maps err to a short label for metrics and span attributes.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, ErrDecoding):
		return "decoding"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrNotExportable):
		return "not_exportable"
	case errors.Is(err, ErrIncompatibleFormat):
		return "incompatible_format"
	case errors.Is(err, ErrExportFailed):
		return "export_failed"
	default:
		return "other"
	}
}
