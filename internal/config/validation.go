// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/loopcast/internal/validate"
)

// Validate reports every problem in cfg at once. Directories that do not
// exist yet are created.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("listenAddr", cfg.ListenAddr)
	v.Directory("dataDir", cfg.DataDir, false)
	v.Directory("uploadsDir", cfg.UploadsDir, false)
	v.Directory("thumbnailsDir", cfg.ThumbnailsDir, false)
	v.Timezone("timezone", cfg.Timezone)
	v.OneOf("log.level", strings.ToLower(cfg.Log.Level), validate.LogLevels)

	v.OneOf("store.backend", cfg.Store.Backend, []string{"json", "sqlite", "redis", "badger"})
	if cfg.Store.Backend == "redis" {
		v.NotEmpty("store.redis.addr", cfg.Store.Redis.Addr)
		v.Range("store.redis.db", cfg.Store.Redis.DB, 0, 15)
	}

	v.NotEmpty("ffmpeg.binary", cfg.FFmpeg.Binary)
	v.PositiveDuration("supervisor.killTimeout", cfg.Supervisor.KillTimeout)
	v.PositiveDuration("supervisor.outputInterval", cfg.Supervisor.OutputInterval)
	v.Range("supervisor.maxRestarts", cfg.Supervisor.MaxRestarts, 0, 100)
	v.PositiveDuration("supervisor.restartBackoff", cfg.Supervisor.RestartBackoff)

	v.PositiveDuration("scheduler.tick", cfg.Scheduler.Tick)
	if cfg.Scheduler.Tick > time.Minute {
		// A coarser tick could skip a whole HH:MM minute.
		v.AddError("scheduler.tick", "must not exceed one minute", cfg.Scheduler.Tick)
	}
	v.PositiveDuration("watchdog.tick", cfg.Watchdog.Tick)
	v.PositiveDuration("watchdog.threshold", cfg.Watchdog.Threshold)

	if cfg.API.RateLimit < 0 {
		v.AddError("api.rateLimit", "cannot be negative", cfg.API.RateLimit)
	}
	if cfg.API.RateLimit > 0 {
		v.PositiveDuration("api.rateWindow", cfg.API.RateWindow)
	}
	if cfg.API.UploadMaxBytes <= 0 || cfg.API.ThumbnailMaxBytes <= 0 {
		v.AddError("api", "upload limits must be positive", fmt.Sprint(cfg.API.UploadMaxBytes, "/", cfg.API.ThumbnailMaxBytes))
	}

	if cfg.Tracing.Enabled {
		v.OneOf("tracing.exporter", cfg.Tracing.Exporter, []string{"grpc", "http"})
		v.NotEmpty("tracing.endpoint", cfg.Tracing.Endpoint)
		v.Fraction("tracing.samplingRate", cfg.Tracing.SamplingRate)
	}

	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
