// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads loopcast configuration from defaults, an optional
// YAML file and LOOPCAST_ environment variables, in increasing precedence.
package config

import (
	"time"

	"github.com/ManuGH/loopcast/internal/transcode"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "LOOPCAST_"

// AppConfig is the complete runtime configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	ListenAddr    string `yaml:"listenAddr"`
	APIToken      string `yaml:"apiToken"`
	DataDir       string `yaml:"dataDir"`
	UploadsDir    string `yaml:"uploadsDir"`
	ThumbnailsDir string `yaml:"thumbnailsDir"`
	// Timezone names the zone schedule times are written in. Empty means
	// the host's local zone.
	Timezone string `yaml:"timezone"`

	Log        LogConfig          `yaml:"log"`
	Store      StoreConfig        `yaml:"store"`
	FFmpeg     transcode.Settings `yaml:"ffmpeg"`
	Supervisor SupervisorConfig   `yaml:"supervisor"`
	Scheduler  SchedulerConfig    `yaml:"scheduler"`
	Watchdog   WatchdogConfig     `yaml:"watchdog"`
	API        APIConfig          `yaml:"api"`
	Tracing    TracingConfig      `yaml:"tracing"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig is used by the redis backend only.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// SupervisorConfig tunes process handling and restart policy.
type SupervisorConfig struct {
	KillTimeout    time.Duration `yaml:"killTimeout"`
	OutputInterval time.Duration `yaml:"outputInterval"`
	MaxRestarts    int           `yaml:"maxRestarts"`
	RestartBackoff time.Duration `yaml:"restartBackoff"`
}

// SchedulerConfig tunes the schedule evaluation loop.
type SchedulerConfig struct {
	Tick time.Duration `yaml:"tick"`
}

// WatchdogConfig tunes freeze detection.
type WatchdogConfig struct {
	Tick      time.Duration `yaml:"tick"`
	Threshold time.Duration `yaml:"threshold"`
}

// APIConfig tunes the HTTP surface.
type APIConfig struct {
	MetricsEnabled    bool          `yaml:"metricsEnabled"`
	RateLimit         int           `yaml:"rateLimit"`
	RateWindow        time.Duration `yaml:"rateWindow"`
	UploadMaxBytes    int64         `yaml:"uploadMaxBytes"`
	ThumbnailMaxBytes int64         `yaml:"thumbnailMaxBytes"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
}

// TracingConfig mirrors telemetry.Config.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr: ":3000",
		DataDir:    "data",
		Log:        LogConfig{Level: "info"},
		Store:      StoreConfig{Backend: "json", Redis: RedisConfig{Addr: "localhost:6379", Prefix: "loopcast:"}},
		FFmpeg:     transcode.DefaultSettings(),
		Supervisor: SupervisorConfig{
			KillTimeout:    5 * time.Second,
			OutputInterval: time.Second,
			MaxRestarts:    5,
			RestartBackoff: 5 * time.Second,
		},
		Scheduler: SchedulerConfig{Tick: time.Minute},
		Watchdog:  WatchdogConfig{Tick: 30 * time.Second, Threshold: 60 * time.Second},
		API: APIConfig{
			MetricsEnabled:    true,
			RateLimit:         120,
			RateWindow:        time.Minute,
			UploadMaxBytes:    4 << 30,
			ThumbnailMaxBytes: 5 << 20,
			ShutdownTimeout:   15 * time.Second,
		},
		Tracing: TracingConfig{Exporter: "grpc", Endpoint: "localhost:4317", SamplingRate: 1.0},
	}
}

// Location returns the zone for schedule evaluation.
func (c AppConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.Local
}
