// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"

	"github.com/ManuGH/loopcast/internal/api"
	"github.com/ManuGH/loopcast/internal/clock"
	"github.com/ManuGH/loopcast/internal/config"
	"github.com/ManuGH/loopcast/internal/health"
	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/registry"
	"github.com/ManuGH/loopcast/internal/scheduler"
	"github.com/ManuGH/loopcast/internal/store"
	"github.com/ManuGH/loopcast/internal/supervisor"
	"github.com/ManuGH/loopcast/internal/telemetry"
	"github.com/ManuGH/loopcast/internal/watchdog"
)

const serviceName = "loopcast"

// Options overrides collaborators, mostly for tests.
type Options struct {
	Clock   clock.Clock
	Spawner supervisor.Spawner
}

// Bootstrap assembles the service from the current configuration. Nothing
// runs until App.Run is called; on error every opened resource is released.
func Bootstrap(ctx context.Context, holder *config.ConfigHolder, opts Options) (*App, *registry.Registry, error) {
	cfg := holder.Get()
	logger := log.WithComponent("daemon")
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	if err := health.PerformStartupChecks(cfg); err != nil {
		return nil, nil, fmt.Errorf("startup checks: %w", err)
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: %w", err)
	}

	st, err := store.Open(store.Config{
		Backend:       cfg.Store.Backend,
		Path:          cfg.Store.Path,
		DataDir:       cfg.DataDir,
		RedisAddr:     cfg.Store.Redis.Addr,
		RedisPassword: cfg.Store.Redis.Password,
		RedisDB:       cfg.Store.Redis.DB,
		RedisPrefix:   cfg.Store.Redis.Prefix,
	})
	if err != nil {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	supOpts := []supervisor.Option{supervisor.WithClock(opts.Clock)}
	if opts.Spawner != nil {
		supOpts = append(supOpts, supervisor.WithSpawner(opts.Spawner))
	}
	sup := supervisor.New(supervisor.Config{
		Settings:       cfg.FFmpeg,
		KillTimeout:    cfg.Supervisor.KillTimeout,
		OutputInterval: cfg.Supervisor.OutputInterval,
	}, supOpts...)

	reg := registry.New(registry.Config{
		UploadsDir:     cfg.UploadsDir,
		MaxRestarts:    cfg.Supervisor.MaxRestarts,
		RestartBackoff: cfg.Supervisor.RestartBackoff,
	}, st, sup, registry.WithClock(opts.Clock))
	restored := reg.Restore(ctx)

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewStoreChecker(st))
	hm.RegisterChecker(health.NewBinaryChecker(cfg.FFmpeg.Binary))
	hm.RegisterChecker(health.NewDirChecker("uploads", cfg.UploadsDir))
	hm.RegisterChecker(health.NewDirChecker("thumbnails", cfg.ThumbnailsDir))

	tracingService := ""
	if cfg.Tracing.Enabled {
		tracingService = serviceName
	}
	srv := api.New(api.Config{
		APIToken:          cfg.APIToken,
		UploadsDir:        cfg.UploadsDir,
		ThumbnailsDir:     cfg.ThumbnailsDir,
		UploadMaxBytes:    cfg.API.UploadMaxBytes,
		ThumbnailMaxBytes: cfg.API.ThumbnailMaxBytes,
		MetricsEnabled:    cfg.API.MetricsEnabled,
		TracingService:    tracingService,
		RateLimit:         cfg.API.RateLimit,
		RateWindow:        cfg.API.RateWindow,
	}, reg, hm, api.WithClock(opts.Clock))

	mgr, err := NewManager(Deps{
		Logger:          logger,
		APIHandler:      srv.Handler(),
		ListenAddr:      cfg.ListenAddr,
		ShutdownTimeout: cfg.API.ShutdownTimeout,
	})
	if err != nil {
		_ = st.Close()
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return nil, nil, err
	}

	// LIFO: the registry drains first, the store closes last.
	mgr.RegisterShutdownHook("store.close", func(context.Context) error { return st.Close() })
	mgr.RegisterShutdownHook("telemetry.shutdown", tp.Shutdown)
	mgr.RegisterShutdownHook("registry.shutdown", reg.Shutdown)

	loops := map[string]Loop{
		"scheduler": scheduler.New(scheduler.Config{
			Tick:     cfg.Scheduler.Tick,
			Location: cfg.Location(),
		}, reg, opts.Clock),
		"watchdog": watchdog.New(watchdog.Config{
			Tick:      cfg.Watchdog.Tick,
			Threshold: cfg.Watchdog.Threshold,
		}, reg, opts.Clock),
	}

	logger.Info().
		Str(log.FieldEvent, "startup").
		Str("version", cfg.Version).
		Str("addr", cfg.ListenAddr).
		Str("store", cfg.Store.Backend).
		Int("jobs", restored).
		Bool("api_token", cfg.APIToken != "").
		Msg("loopcast assembled")
	if cfg.APIToken == "" {
		logger.Warn().Msg("no API token configured, mutating API requests are refused")
	}

	return NewApp(logger, mgr, holder, loops), reg, nil
}
