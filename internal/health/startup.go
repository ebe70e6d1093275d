// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"fmt"
	"os/exec"

	"github.com/ManuGH/loopcast/internal/config"
	"github.com/ManuGH/loopcast/internal/log"
)

// PerformStartupChecks fails when a directory the daemon writes to is not
// usable. A missing ffmpeg binary is only logged.
func PerformStartupChecks(cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	for name, dir := range map[string]string{
		"dataDir":       cfg.DataDir,
		"uploadsDir":    cfg.UploadsDir,
		"thumbnailsDir": cfg.ThumbnailsDir,
	} {
		if err := writable(dir); err != nil {
			return fmt.Errorf("%s %s is not writable: %w", name, dir, err)
		}
	}
	if _, err := exec.LookPath(cfg.FFmpeg.Binary); err != nil {
		logger.Warn().Err(err).Str("binary", cfg.FFmpeg.Binary).Msg("ffmpeg not found, jobs will fail to start")
	}
	logger.Info().Msg("startup checks passed")
	return nil
}
