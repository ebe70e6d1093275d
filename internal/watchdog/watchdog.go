// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package watchdog kills transcoders that stopped producing output.
package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/loopcast/internal/clock"
	"github.com/ManuGH/loopcast/internal/job"
	"github.com/ManuGH/loopcast/internal/log"
	"github.com/rs/zerolog"
)

const (
	DefaultTick      = 30 * time.Second
	DefaultThreshold = 60 * time.Second
)

// Jobs is the part of the registry the watchdog needs.
type Jobs interface {
	Statuses() []job.StatusView
	RecoverFrozen(ctx context.Context, id string, generation uint64, cutoff time.Time) (bool, error)
}

// Config tunes freeze detection.
type Config struct {
	Tick time.Duration
	// Threshold is the longest silence tolerated from a running process.
	Threshold time.Duration
}

// Watchdog periodically looks for silent transcoders.
type Watchdog struct {
	cfg    Config
	jobs   Jobs
	clock  clock.Clock
	logger zerolog.Logger
}

// New creates a Watchdog.
func New(cfg Config, jobs Jobs, clk clock.Clock) *Watchdog {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Watchdog{cfg: cfg, jobs: jobs, clock: clk, logger: log.WithComponent("watchdog")}
}

// Run checks on every tick until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := w.clock.NewTicker(w.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C():
			w.Tick(ctx, now)
		}
	}
}

// Tick recovers every job silent for longer than the threshold and returns
// how many were killed. Launch counts as output, so a job silent since it
// started is judged from its start time.
func (w *Watchdog) Tick(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-w.cfg.Threshold)
	killed := 0
	for _, v := range w.jobs.Statuses() {
		if !v.Running || !v.LastOutput.Before(cutoff) {
			continue
		}
		if w.recover(ctx, v, cutoff) {
			killed++
		}
	}
	return killed
}

func (w *Watchdog) recover(ctx context.Context, v job.StatusView, cutoff time.Time) (killed bool) {
	defer func() {
		if p := recover(); p != nil {
			w.logger.Error().Str(log.FieldJobID, v.ID).Str("panic", fmt.Sprint(p)).Msg("freeze recovery panicked")
			killed = false
		}
	}()
	ok, err := w.jobs.RecoverFrozen(ctx, v.ID, v.Generation, cutoff)
	if err != nil {
		w.logger.Error().Err(err).Str(log.FieldJobID, v.ID).Msg("freeze recovery failed")
		return false
	}
	return ok
}
