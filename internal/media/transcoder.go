// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	xglog "github.com/ManuGH/storyreel/internal/log"
	"github.com/ManuGH/storyreel/internal/media/ffmpeg/watchdog"
	"github.com/rs/zerolog"
)

const maxStderr = 4096

// Default export watchdog limits.
const (
	DefaultExportStartTimeout = 30 * time.Second
	DefaultExportStallTimeout = 20 * time.Second
)

// Transcoder copies a remote or local video into a playable cached file and
// reports its true duration.
type Transcoder interface {
	IsExportable(ctx context.Context, source string) bool
	Export(ctx context.Context, source, outputPath string) error
	Duration(ctx context.Context, source string) (float64, error)
}

// ProbeInfo is the subset of ffprobe output the engine uses.
type ProbeInfo struct {
	Container  string
	Duration   float64
	VideoCodec string
	AudioCodec string
}

// HasVideo reports whether a decodable video stream was found.
func (p *ProbeInfo) HasVideo() bool { return p.VideoCodec != "" }

// HasAudio reports whether a decodable audio stream was found.
func (p *ProbeInfo) HasAudio() bool { return p.AudioCodec != "" }

// FFmpegTranscoder shells out to ffprobe and ffmpeg. Exports are stream
// copies into MP4; nothing is re-encoded. An export that reports no
// progress for StartTimeout, or stops progressing for StallTimeout, is
// killed.
type FFmpegTranscoder struct {
	FFmpegPath   string
	FFprobePath  string
	StartTimeout time.Duration
	StallTimeout time.Duration
	Logger       zerolog.Logger
}

// NewFFmpegTranscoder returns a transcoder using the given binaries; empty
// paths resolve through $PATH.
func NewFFmpegTranscoder(ffmpegPath, ffprobePath string) *FFmpegTranscoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegTranscoder{
		FFmpegPath:   ffmpegPath,
		FFprobePath:  ffprobePath,
		StartTimeout: DefaultExportStartTimeout,
		StallTimeout: DefaultExportStallTimeout,
		Logger:       xglog.WithComponent("transcoder"),
	}
}

// Probe runs ffprobe against source.
func (t *FFmpegTranscoder) Probe(ctx context.Context, source string) (*ProbeInfo, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		source,
	}
	// #nosec G204 -- binary comes from config; source is passed as a single argument
	cmd := exec.CommandContext(ctx, t.FFprobePath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, runErr := cmd.Output()

	var data probeData
	jsonErr := json.Unmarshal(out, &data)
	playable := false
	if jsonErr == nil {
		for _, s := range data.Streams {
			if (s.CodecType == "video" || s.CodecType == "audio") && s.CodecName != "" {
				playable = true
				break
			}
		}
	}

	switch {
	case jsonErr == nil && data.Format.FormatName != "" && playable:
		if runErr != nil {
			// Partial files make ffprobe exit non-zero while still printing usable JSON.
			t.Logger.Warn().
				Err(runErr).
				Str(xglog.FieldURL, source).
				Str("stderr", truncate(stderr.String())).
				Msg("ffprobe non-zero exit but JSON accepted")
		}
	case runErr != nil:
		return nil, fmt.Errorf("ffprobe failed: %w (stderr: %s)", runErr, truncate(stderr.String()))
	case jsonErr != nil:
		return nil, fmt.Errorf("ffprobe json decode: %w", jsonErr)
	default:
		return nil, fmt.Errorf("ffprobe returned no playable streams")
	}

	info := &ProbeInfo{}
	for _, s := range data.Streams {
		switch s.CodecType {
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = s.CodecName
				if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
					info.Duration = d
				}
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		}
	}
	if info.Duration == 0 && data.Format.Duration != "" {
		if d, err := strconv.ParseFloat(data.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}
	for _, p := range strings.Split(data.Format.FormatName, ",") {
		if p = strings.TrimSpace(p); p != "" {
			info.Container = p
			break
		}
	}
	return info, nil
}

// IsExportable reports whether source has both a video and an audio track.
func (t *FFmpegTranscoder) IsExportable(ctx context.Context, source string) bool {
	info, err := t.Probe(ctx, source)
	if err != nil {
		return false
	}
	return info.HasVideo() && info.HasAudio()
}

// Duration returns the media duration in seconds. A source without a
// known duration reports 0.
func (t *FFmpegTranscoder) Duration(ctx context.Context, source string) (float64, error) {
	info, err := t.Probe(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIncompatibleFormat, err)
	}
	return info.Duration, nil
}

// Export copies the first video and audio stream of source into an MP4 at
// outputPath. A failed export leaves no file behind.
func (t *FFmpegTranscoder) Export(ctx context.Context, source, outputPath string) error {
	info, err := t.Probe(ctx, source)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIncompatibleFormat, err)
	}
	if !info.HasVideo() || !info.HasAudio() {
		return ErrNotExportable
	}

	args := []string{
		"-y", "-nostdin", "-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:v:0",
		"-map", "0:a:0",
		"-c", "copy",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		"-f", "mp4",
		outputPath,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	wd := watchdog.New(t.StartTimeout, t.StallTimeout)

	// #nosec G204 -- binary comes from config; paths are passed as single arguments
	cmd := exec.CommandContext(runCtx, t.FFmpegPath, args...)
	cmd.WaitDelay = 2 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = wd.Writer()

	if err := cmd.Start(); err != nil {
		return &ExportError{Detail: err.Error(), Err: err}
	}
	wdErr := make(chan error, 1)
	go func() {
		err := wd.Run(runCtx)
		if err != nil {
			cancel()
		}
		wdErr <- err
	}()

	runErr := cmd.Wait()
	cancel()
	stallErr := <-wdErr
	if runErr == nil {
		return nil
	}

	_ = os.Remove(outputPath)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if stallErr != nil {
		t.Logger.Warn().
			Err(stallErr).
			Str(xglog.FieldURL, source).
			Str("state", wd.State().String()).
			Msg("ffmpeg export killed by watchdog")
		return &ExportError{Detail: wd.State().String(), Err: stallErr}
	}
	return &ExportError{Detail: truncate(stderr.String()), Err: runErr}
}

func truncate(s string) string {
	if len(s) > maxStderr {
		return s[:maxStderr] + "..."
	}
	return s
}

type probeData struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Duration  string `json:"duration,omitempty"`
	} `json:"streams"`
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}
