// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/storyreel/internal/config"
	xglog "github.com/ManuGH/storyreel/internal/log"
)

// PerformStartupChecks verifies the environment before the engine starts.
// Only an unwritable data directory is fatal.
func PerformStartupChecks(cfg config.AppConfig) error {
	logger := xglog.WithComponent("startup-check")

	if err := checkDataDir(cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}

	for _, bin := range []string{cfg.FFmpeg.Bin, cfg.FFmpeg.FFprobeBin} {
		if res := NewBinaryChecker(bin, bin).Check(context.Background()); res.Status != StatusHealthy {
			logger.Warn().Str("binary", bin).Msg("not found on PATH; video stories will be skipped")
		}
	}

	tempDir := filepath.Clean(os.TempDir())
	dataDir := filepath.Clean(cfg.DataDir)
	if tempDir != "." && (dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str(xglog.FieldPath, cfg.DataDir).
			Msg("data directory is under temp; cached media may be lost on reboot")
	}
	return nil
}

func checkDataDir(path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}
	probe := filepath.Join(path, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", path, err)
	}
	_ = os.Remove(probe)
	return nil
}
