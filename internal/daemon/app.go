// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/loopcast/internal/config"
	"github.com/rs/zerolog"
)

// Loop is a background subsystem that runs until its context ends.
type Loop interface {
	Run(ctx context.Context) error
}

// App owns the long-lived runtime lifecycle (config watcher, scheduler,
// freeze detector) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.ConfigHolder
	loops        map[string]Loop
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder, loops map[string]Loop) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		loops:        loops,
		reloadSignal: syscall.SIGHUP,
	}
}

// Manager returns the server manager.
func (a *App) Manager() Manager { return a.manager }

// Run starts all owned background subsystems and blocks until ctx is
// cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, gctx := errgroup.WithContext(ctx)

	// The watcher is best-effort: a broken watcher must not stop the service.
	if a.cfgHolder != nil {
		g.Go(func() error {
			if err := a.cfgHolder.Watch(gctx); err != nil {
				a.logger.Warn().Err(err).Str("event", "config.watcher_failed").Msg("config watcher stopped")
			}
			return nil
		})
	}

	// SIGHUP trigger for manual reload.
	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-gctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")
					_ = a.cfgHolder.Reload(gctx)
				}
			}
		})
	}

	for name, loop := range a.loops {
		g.Go(func() error {
			a.logger.Info().Str("loop", name).Msg("background loop started")
			err := loop.Run(gctx)
			a.logger.Info().Str("loop", name).Msg("background loop stopped")
			return err
		})
	}

	// Main server lifecycle. Shutdown hooks (registry drain, store close)
	// run inside Start once gctx ends.
	g.Go(func() error {
		return a.manager.Start(gctx)
	})

	return g.Wait()
}
