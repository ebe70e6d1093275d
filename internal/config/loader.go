// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty configPath means
// defaults plus environment only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path, if any.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseString(EnvPrefix+key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseBool(EnvPrefix+key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseInt(EnvPrefix+key, def)
}

func (l *Loader) envInt64(key string, def int64) int64 {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseInt64(EnvPrefix+key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseDuration(EnvPrefix+key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseFloat(EnvPrefix+key, def)
}

// Load loads configuration with precedence: ENV > File > Defaults, then
// resolves derived paths and validates.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.UploadsDir == "" {
		cfg.UploadsDir = filepath.Join(cfg.DataDir, "uploads")
	}
	if cfg.ThumbnailsDir == "" {
		cfg.ThumbnailsDir = filepath.Join(cfg.DataDir, "thumbnails")
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the YAML file over cfg with STRICT parsing. Unknown
// fields are rejected to catch typos.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.ListenAddr = l.envString("LISTEN", cfg.ListenAddr)
	cfg.APIToken = l.envString("API_TOKEN", cfg.APIToken)
	cfg.DataDir = l.envString("DATA_DIR", cfg.DataDir)
	cfg.UploadsDir = l.envString("UPLOADS_DIR", cfg.UploadsDir)
	cfg.ThumbnailsDir = l.envString("THUMBNAILS_DIR", cfg.ThumbnailsDir)
	cfg.Timezone = l.envString("TIMEZONE", cfg.Timezone)

	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)

	cfg.Store.Backend = l.envString("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = l.envString("STORE_PATH", cfg.Store.Path)
	cfg.Store.Redis.Addr = l.envString("REDIS_ADDR", cfg.Store.Redis.Addr)
	cfg.Store.Redis.Password = l.envString("REDIS_PASSWORD", cfg.Store.Redis.Password)
	cfg.Store.Redis.DB = l.envInt("REDIS_DB", cfg.Store.Redis.DB)
	cfg.Store.Redis.Prefix = l.envString("REDIS_PREFIX", cfg.Store.Redis.Prefix)

	cfg.FFmpeg.Binary = l.envString("FFMPEG_BIN", cfg.FFmpeg.Binary)
	cfg.FFmpeg.LogLevel = l.envString("FFMPEG_LOGLEVEL", cfg.FFmpeg.LogLevel)
	cfg.FFmpeg.VideoBitrate = l.envString("FFMPEG_VIDEO_BITRATE", cfg.FFmpeg.VideoBitrate)
	cfg.FFmpeg.Preset = l.envString("FFMPEG_PRESET", cfg.FFmpeg.Preset)
	cfg.FFmpeg.Loop = l.envBool("FFMPEG_LOOP", cfg.FFmpeg.Loop)

	cfg.Supervisor.KillTimeout = l.envDuration("KILL_TIMEOUT", cfg.Supervisor.KillTimeout)
	cfg.Supervisor.OutputInterval = l.envDuration("OUTPUT_INTERVAL", cfg.Supervisor.OutputInterval)
	cfg.Supervisor.MaxRestarts = l.envInt("MAX_RESTARTS", cfg.Supervisor.MaxRestarts)
	cfg.Supervisor.RestartBackoff = l.envDuration("RESTART_BACKOFF", cfg.Supervisor.RestartBackoff)

	cfg.Scheduler.Tick = l.envDuration("SCHEDULER_TICK", cfg.Scheduler.Tick)
	cfg.Watchdog.Tick = l.envDuration("FREEZE_TICK", cfg.Watchdog.Tick)
	cfg.Watchdog.Threshold = l.envDuration("FREEZE_THRESHOLD", cfg.Watchdog.Threshold)

	cfg.API.MetricsEnabled = l.envBool("METRICS_ENABLED", cfg.API.MetricsEnabled)
	cfg.API.RateLimit = l.envInt("RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.RateWindow = l.envDuration("RATE_WINDOW", cfg.API.RateWindow)
	cfg.API.UploadMaxBytes = l.envInt64("UPLOAD_MAX_BYTES", cfg.API.UploadMaxBytes)
	cfg.API.ThumbnailMaxBytes = l.envInt64("THUMBNAIL_MAX_BYTES", cfg.API.ThumbnailMaxBytes)
	cfg.API.ShutdownTimeout = l.envDuration("SHUTDOWN_TIMEOUT", cfg.API.ShutdownTimeout)

	cfg.Tracing.Enabled = l.envBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString("TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString("TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = l.envFloat("TRACING_SAMPLING_RATE", cfg.Tracing.SamplingRate)
}
