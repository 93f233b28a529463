// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ManuGH/storyreel/internal/media/ffmpeg/watchdog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	probeAV = `{"streams":[{"codec_type":"video","codec_name":"h264","duration":"12.480000"},{"codec_type":"audio","codec_name":"aac"}],"format":{"duration":"12.500000","format_name":"mov,mp4,m4a,3gp,3g2,mj2"}}`
	probeV  = `{"streams":[{"codec_type":"video","codec_name":"h264"}],"format":{"duration":"7.25","format_name":"mov,mp4"}}`
)

// fakeBinary writes an executable shell script and returns its path.
func fakeBinary(t *testing.T, name, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts required")
	}
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return p
}

func probeScript(t *testing.T, json string) string {
	return fakeBinary(t, "ffprobe", "cat <<'EOF'\n"+json+"\nEOF")
}

func TestFFmpegTranscoder_Probe(t *testing.T) {
	tr := NewFFmpegTranscoder("", probeScript(t, probeAV))
	info, err := tr.Probe(context.Background(), "https://cdn.example.com/v.mp4")
	require.NoError(t, err)
	assert.Equal(t, "mov", info.Container)
	assert.Equal(t, "h264", info.VideoCodec)
	assert.Equal(t, "aac", info.AudioCodec)
	assert.InDelta(t, 12.48, info.Duration, 1e-9)
}

func TestFFmpegTranscoder_DurationFallsBackToFormat(t *testing.T) {
	tr := NewFFmpegTranscoder("", probeScript(t, probeV))
	d, err := tr.Duration(context.Background(), "v.mp4")
	require.NoError(t, err)
	assert.InDelta(t, 7.25, d, 1e-9)
}

func TestFFmpegTranscoder_IsExportable(t *testing.T) {
	ctx := context.Background()
	assert.True(t, NewFFmpegTranscoder("", probeScript(t, probeAV)).IsExportable(ctx, "v.mp4"))
	assert.False(t, NewFFmpegTranscoder("", probeScript(t, probeV)).IsExportable(ctx, "v.mp4"))
	assert.False(t, NewFFmpegTranscoder("", fakeBinary(t, "ffprobe", "exit 1")).IsExportable(ctx, "v.mp4"))
}

func TestFFmpegTranscoder_ProbeFailure(t *testing.T) {
	tr := NewFFmpegTranscoder("", fakeBinary(t, "ffprobe", "echo 'Invalid data found' >&2; exit 1"))
	_, err := tr.Duration(context.Background(), "v.mp4")
	require.ErrorIs(t, err, ErrIncompatibleFormat)
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestFFmpegTranscoder_Export(t *testing.T) {
	// The fake ffmpeg writes its last argument, the output path.
	ffmpeg := fakeBinary(t, "ffmpeg", `for last; do :; done; printf 'mp4' > "$last"`)
	tr := NewFFmpegTranscoder(ffmpeg, probeScript(t, probeAV))

	out := filepath.Join(t.TempDir(), "out.mp4")
	require.NoError(t, tr.Export(context.Background(), "https://cdn.example.com/v.mov", out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4"), data)
}

func TestFFmpegTranscoder_ExportErrors(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "out.mp4")

	err := NewFFmpegTranscoder("", probeScript(t, probeV)).Export(ctx, "v.mp4", out)
	assert.ErrorIs(t, err, ErrNotExportable)

	err = NewFFmpegTranscoder("", fakeBinary(t, "ffprobe", "exit 1")).Export(ctx, "v.mp4", out)
	assert.ErrorIs(t, err, ErrIncompatibleFormat)

	failing := fakeBinary(t, "ffmpeg", `for last; do :; done; printf 'partial' > "$last"; echo 'moov atom not found' >&2; exit 1`)
	err = NewFFmpegTranscoder(failing, probeScript(t, probeAV)).Export(ctx, "v.mp4", out)
	require.ErrorIs(t, err, ErrExportFailed)
	var exportErr *ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Contains(t, exportErr.Detail, "moov atom not found")
	assert.NoFileExists(t, out)
}

func TestFFmpegTranscoder_ExportWatchdog(t *testing.T) {
	// Prints one progress line, then hangs.
	hung := fakeBinary(t, "ffmpeg", `echo "out_time_us=1000"; exec sleep 30`)
	tr := NewFFmpegTranscoder(hung, probeScript(t, probeAV))
	tr.StartTimeout = 200 * time.Millisecond
	tr.StallTimeout = 200 * time.Millisecond

	out := filepath.Join(t.TempDir(), "out.mp4")
	start := time.Now()
	err := tr.Export(context.Background(), "v.mp4", out)
	require.ErrorIs(t, err, ErrExportFailed)
	assert.ErrorIs(t, err, watchdog.ErrStalled)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.NoFileExists(t, out)
}
