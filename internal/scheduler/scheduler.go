// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package scheduler starts and stops jobs at their configured wall-clock
// times.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ManuGH/loopcast/internal/clock"
	"github.com/ManuGH/loopcast/internal/job"
	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultTick is how often schedules are evaluated.
const DefaultTick = time.Minute

// Jobs is the part of the registry the scheduler drives.
type Jobs interface {
	All() []job.Record
	StartScheduled(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	SetSchedule(ctx context.Context, id string, patch job.SchedulePatch) (job.Record, error)
}

// Config tunes the scheduler.
type Config struct {
	Tick time.Duration
	// Location is the zone schedule times are written in. Nil means local.
	Location *time.Location
}

// Scheduler evaluates every job's schedule once per tick.
type Scheduler struct {
	cfg    Config
	jobs   Jobs
	clock  clock.Clock
	logger zerolog.Logger
	busy   atomic.Bool
}

// New creates a Scheduler.
func New(cfg Config, jobs Jobs, clk clock.Clock) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Scheduler{
		cfg:    cfg,
		jobs:   jobs,
		clock:  clk,
		logger: log.WithComponent("scheduler"),
	}
}

// Run evaluates schedules immediately and then on every tick until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	s.logger.Info().Dur("tick", s.cfg.Tick).Str("location", s.cfg.Location.String()).Msg("scheduler started")
	s.tryTick(ctx, s.clock.Now())
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C():
			s.tryTick(ctx, now)
		}
	}
}

func (s *Scheduler) tryTick(ctx context.Context, now time.Time) {
	if !s.busy.CompareAndSwap(false, true) {
		return
	}
	defer s.busy.Store(false)
	s.Tick(ctx, now)
}

// moment is the wall-clock view of one tick.
type moment struct {
	day   string
	clock string
	date  string
}

func (s *Scheduler) momentOf(now time.Time) moment {
	local := now.In(s.cfg.Location)
	return moment{
		day:   job.DayTag(local),
		clock: local.Format(job.ClockLayout),
		date:  local.Format(job.DateLayout),
	}
}

// Tick evaluates every schedule against now and returns the number of
// actions taken.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) int {
	m := s.momentOf(now)
	actions := 0
	for _, rec := range s.jobs.All() {
		if s.evaluate(ctx, rec, m) {
			actions++
		}
	}
	return actions
}

// evaluate applies one job's schedule. A panic is contained to that job.
func (s *Scheduler) evaluate(ctx context.Context, rec job.Record, m moment) (acted bool) {
	defer func() {
		if p := recover(); p != nil {
			metrics.SchedulerTriggerTotal.WithLabelValues("evaluate", "panic").Inc()
			s.logger.Error().
				Str(log.FieldJobID, rec.ID).
				Str("panic", fmt.Sprint(p)).
				Str(log.FieldEvent, "scheduler.panic").
				Msg("schedule evaluation panicked")
			acted = false
		}
	}()

	sch := rec.Schedule
	if !sch.Enabled || !sch.OnDay(m.day) {
		return false
	}
	running := rec.Runtime.Running
	switch {
	case !running && sch.Time == m.clock && sch.LastRun != m.date:
		s.trigger(ctx, rec.ID, "start", m.date, s.jobs.StartScheduled, job.SchedulePatch{LastRun: &m.date})
		return true
	case running && sch.StopTime != "" && sch.StopTime == m.clock && sch.LastStop != m.date:
		s.trigger(ctx, rec.ID, "stop", m.date, s.jobs.Stop, job.SchedulePatch{LastStop: &m.date})
		return true
	}
	return false
}

// trigger runs action and records today's date whether or not it succeeded,
// so a failing job is attempted once per day.
func (s *Scheduler) trigger(ctx context.Context, id, action, date string, fn func(context.Context, string) error, mark job.SchedulePatch) {
	logger := s.logger.With().Str(log.FieldJobID, id).Str("action", action).Str("date", date).Logger()

	result := "ok"
	if err := fn(ctx, id); err != nil {
		result = "error"
		logger.Error().Err(err).Str(log.FieldEvent, "scheduler.trigger").Msg("scheduled action failed")
	} else {
		logger.Info().Str(log.FieldEvent, "scheduler.trigger").Msg("scheduled action ran")
	}
	metrics.SchedulerTriggerTotal.WithLabelValues(action, result).Inc()

	if _, err := s.jobs.SetSchedule(ctx, id, mark); err != nil {
		logger.Error().Err(err).Msg("failed to record schedule run")
	}
}
