// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/loopcast/internal/fsutil"
	"github.com/ManuGH/loopcast/internal/job"
	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/metrics"
	"github.com/ManuGH/loopcast/internal/supervisor"
	"github.com/ManuGH/loopcast/internal/telemetry"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrShuttingDown is returned by Start once Shutdown has begun.
var ErrShuttingDown = errors.New("registry shutting down")

type startReason string

const (
	reasonUser     startReason = "user"
	reasonSchedule startReason = "schedule"
	reasonRestart  startReason = "restart"
	reasonFreeze   startReason = "freeze"
)

// resets reports whether the start counts as a fresh run.
func (s startReason) resets() bool {
	return s == reasonUser || s == reasonSchedule
}

// Start launches the job's transcoder. Starting a running job is a no-op.
func (r *Registry) Start(ctx context.Context, id string) error {
	return r.start(ctx, id, reasonUser)
}

// StartScheduled is Start on behalf of the scheduler.
func (r *Registry) StartScheduled(ctx context.Context, id string) error {
	return r.start(ctx, id, reasonSchedule)
}

func (r *Registry) start(ctx context.Context, id string, reason startReason) error {
	ctx, span := r.tracer.Start(ctx, "registry.start", trace.WithAttributes(telemetry.JobAttributes(id, string(reason))...))
	defer span.End()

	e, err := r.get(id)
	if err != nil {
		span.SetStatus(codes.Error, "not found")
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	err = r.startLocked(ctx, e, reason)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if e.handle != nil {
		span.SetAttributes(telemetry.ProcessAttributes(e.handle.PID, e.handle.Generation)...)
	}
	return err
}

// startLocked validates and launches. The caller holds e.mu.
func (r *Registry) startLocked(ctx context.Context, e *entry, reason startReason) error {
	logger := log.WithContext(ctx, r.logger).With().
		Str(log.FieldJobID, e.rec.ID).
		Str("reason", string(reason)).
		Logger()

	if e.handle != nil {
		logger.Debug().Err(job.ErrAlreadyRunning).Str(log.FieldEvent, "job.start_noop").Msg("start ignored")
		return nil
	}
	if r.closing.Load() {
		return ErrShuttingDown
	}
	if !e.rec.Ready() {
		return fmt.Errorf("%w: job %s", job.ErrMissingConfig, e.rec.ID)
	}
	input, err := fsutil.ResolveFile(r.cfg.UploadsDir, e.rec.Video)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", job.ErrSourceMissing, e.rec.Video, err)
	}

	if reason.resets() {
		r.cancelRestartLocked(e)
		e.rec.Runtime.RestartCount = 0
		e.rec.Runtime.StoppedByUser = false
		e.rec.Runtime.AutoRestart = true
	}
	ev := job.EvStart
	if reason == reasonRestart || reason == reasonFreeze {
		ev = job.EvRestart
	}
	r.fireLocked(e, ev)

	gen := r.generation.Add(1)
	h, err := r.launcher.Launch(ctx, supervisor.LaunchSpec{
		JobID:      e.rec.ID,
		Generation: gen,
		Input:      input,
		Output:     e.rec.StreamURL,
	}, r)
	if err != nil {
		if !reason.resets() && r.restartAllowedLocked(e) {
			// A failed relaunch counts as one more failed attempt.
			r.scheduleRestartLocked(e, job.EvExitedRestart)
		} else {
			r.fireLocked(e, job.EvSpawnFailed)
		}
		r.persistLocked(ctx, e.rec)
		r.checkInvariantLocked(e)
		logger.Error().Err(err).Str(log.FieldEvent, "job.start_failed").Msg("failed to start job")
		return err
	}

	e.handle = h
	rt := &e.rec.Runtime
	rt.Running = true
	rt.PID = h.PID
	rt.Generation = h.Generation
	rt.StartedAt = h.StartedAt
	rt.LastOutput = h.StartedAt
	r.fireLocked(e, job.EvSpawned)
	metrics.JobsRunning.Inc()

	r.persistLocked(ctx, e.rec)
	r.checkInvariantLocked(e)
	logger.Info().
		Int(log.FieldPID, h.PID).
		Uint64(log.FieldGeneration, h.Generation).
		Int(log.FieldRestartCount, rt.RestartCount).
		Str(log.FieldEvent, "job.start").
		Msg("job started")
	return nil
}

// Stop ends the job's process gracefully and disables automatic restarts
// until the next start. Stopping an idle job is a no-op.
func (r *Registry) Stop(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "registry.stop", trace.WithAttributes(telemetry.JobAttributes(id, "")...))
	defer span.End()

	e, err := r.get(id)
	if err != nil {
		span.SetStatus(codes.Error, "not found")
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle == nil && e.restart == nil {
		return nil
	}
	rt := &e.rec.Runtime
	rt.StoppedByUser = true
	rt.AutoRestart = false

	if e.restart != nil {
		r.cancelRestartLocked(e)
		r.fireLocked(e, job.EvStop)
		metrics.RestartTotal.WithLabelValues("aborted").Inc()
	}
	if e.handle != nil {
		r.fireLocked(e, job.EvStop)
		if err := r.launcher.Terminate(e.handle, false); err != nil {
			logger := log.WithContext(ctx, r.logger)
			logger.Warn().Err(err).Str(log.FieldJobID, id).Msg("failed to signal transcoder")
		}
		r.releaseLocked(e)
		r.fireLocked(e, job.EvStopped)
	}

	r.persistLocked(ctx, e.rec)
	r.checkInvariantLocked(e)
	logger := log.WithContext(ctx, r.logger)
	logger.Info().
		Str(log.FieldJobID, id).
		Str(log.FieldEvent, "job.stop").
		Msg("job stopped")
	return nil
}

// releaseLocked forgets the live handle. Its exit will arrive later and be
// treated as stale.
func (r *Registry) releaseLocked(e *entry) {
	if e.handle == nil {
		return
	}
	e.handle = nil
	e.rec.Runtime.Running = false
	e.rec.Runtime.PID = 0
	metrics.JobsRunning.Dec()
}

func (r *Registry) fireLocked(e *entry, ev job.Event) {
	from := e.rec.Runtime.Phase
	if _, err := e.rec.Runtime.Fire(ev); err != nil {
		r.logger.Error().Err(err).Str(log.FieldJobID, e.rec.ID).Msg("phase transition rejected")
		return
	}
	r.logger.Debug().
		Str(log.FieldJobID, e.rec.ID).
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(e.rec.Runtime.Phase)).
		Str(log.FieldEvent, "job.phase").
		Msg(string(ev))
}

// Output implements supervisor.Sink.
func (r *Registry) Output(id string, generation uint64, at time.Time) {
	e, err := r.get(id)
	if err != nil {
		return
	}
	e.mu.Lock()
	if e.handle != nil && e.handle.Generation == generation {
		e.rec.Runtime.LastOutput = at
	}
	e.mu.Unlock()
}

// Exited implements supervisor.Sink. It is the single place where an
// unexpected exit turns into a restart decision.
func (r *Registry) Exited(id string, generation uint64, st supervisor.ExitStatus) {
	e, err := r.get(id)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	rt := &e.rec.Runtime
	if st.Code != nil {
		code := *st.Code
		rt.LastExitCode = &code
	} else {
		rt.LastExitCode = nil
	}
	rt.LastExitSignal = st.Signal
	rt.LastEndedAt = st.EndedAt

	logger := r.logger.With().Str(log.FieldJobID, id).Uint64(log.FieldGeneration, generation).Logger()
	if e.handle == nil || e.handle.Generation != generation {
		// Stopped, killed for freezing, or superseded by a newer run.
		logger.Debug().Str(log.FieldEvent, "job.exit_stale").Msg("exit of released process")
		return
	}

	r.releaseLocked(e)
	ctx := context.Background()
	switch {
	case r.restartAllowedLocked(e):
		r.scheduleRestartLocked(e, job.EvExitedRestart)
	default:
		r.fireLocked(e, job.EvExited)
		if rt.AutoRestart && !rt.StoppedByUser && !r.closing.Load() {
			metrics.RestartTotal.WithLabelValues("exhausted").Inc()
			logger.Error().
				Int(log.FieldRestartCount, rt.RestartCount).
				Str(log.FieldEvent, "job.restart_exhausted").
				Msg("restart limit reached, giving up")
		}
	}
	r.persistLocked(ctx, e.rec)
	r.checkInvariantLocked(e)
}

func (r *Registry) restartAllowedLocked(e *entry) bool {
	rt := e.rec.Runtime
	return rt.AutoRestart && !rt.StoppedByUser && !r.closing.Load() && rt.RestartCount < r.cfg.MaxRestarts
}

// scheduleRestartLocked bumps the restart counter and arms the backoff
// timer. The timer callback re-reads the job state before acting.
func (r *Registry) scheduleRestartLocked(e *entry, ev job.Event) {
	r.cancelRestartLocked(e)
	r.fireLocked(e, ev)
	e.rec.Runtime.RestartCount++
	e.restartSeq++
	seq := e.restartSeq
	id := e.rec.ID
	e.restart = r.clock.AfterFunc(r.cfg.RestartBackoff, func() { r.fireRestart(id, seq) })

	metrics.RestartTotal.WithLabelValues("scheduled").Inc()
	r.logger.Warn().
		Str(log.FieldJobID, id).
		Int(log.FieldRestartCount, e.rec.Runtime.RestartCount).
		Dur(log.FieldBackoff, r.cfg.RestartBackoff).
		Str(log.FieldEvent, "job.restart_scheduled").
		Msg("transcoder exited, restart scheduled")
}

func (r *Registry) cancelRestartLocked(e *entry) {
	if e.restart == nil {
		return
	}
	e.restart.Stop()
	e.restart = nil
	e.restartSeq++
}

func (r *Registry) fireRestart(id string, seq uint64) {
	e, err := r.get(id)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.restartSeq != seq || e.restart == nil {
		return
	}
	e.restart = nil

	rt := e.rec.Runtime
	if rt.StoppedByUser || !rt.AutoRestart || e.handle != nil || r.closing.Load() {
		if rt.Phase == job.PhaseRestarting {
			r.fireLocked(e, job.EvAbort)
		}
		metrics.RestartTotal.WithLabelValues("aborted").Inc()
		return
	}
	metrics.RestartTotal.WithLabelValues("fired").Inc()
	r.relaunchLocked(context.Background(), e, reasonRestart)
}

// relaunchLocked starts an automatic run. Validation failures (video
// deleted, destination cleared) abandon the restart.
func (r *Registry) relaunchLocked(ctx context.Context, e *entry, reason startReason) {
	err := r.startLocked(ctx, e, reason)
	if err == nil || errors.Is(err, job.ErrSpawnFailure) {
		return
	}
	if e.rec.Runtime.Phase == job.PhaseRestarting {
		r.fireLocked(e, job.EvAbort)
	}
	r.persistLocked(ctx, e.rec)
	r.logger.Error().Err(err).
		Str(log.FieldJobID, e.rec.ID).
		Str(log.FieldEvent, "job.restart_abandoned").
		Msg("automatic restart abandoned")
}

// RecoverFrozen force-kills the job's process if it is still the run
// identified by generation and has been silent since before cutoff. With
// auto-restart on, the job is relaunched immediately. It reports whether a
// process was killed.
func (r *Registry) RecoverFrozen(ctx context.Context, id string, generation uint64, cutoff time.Time) (bool, error) {
	e, err := r.get(id)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	rt := &e.rec.Runtime
	if e.handle == nil || e.handle.Generation != generation || !rt.LastOutput.Before(cutoff) {
		return false, nil
	}

	silent := r.clock.Now().Sub(rt.LastOutput)
	if err := r.launcher.Terminate(e.handle, true); err != nil {
		r.logger.Warn().Err(err).Str(log.FieldJobID, id).Msg("failed to kill frozen transcoder")
	}
	r.releaseLocked(e)
	metrics.FreezeTotal.Inc()
	r.logger.Warn().
		Str(log.FieldJobID, id).
		Uint64(log.FieldGeneration, generation).
		Dur("silent_for", silent).
		Str(log.FieldEvent, "watchdog.freeze").
		Msg("transcoder frozen, killed")

	if rt.AutoRestart && !rt.StoppedByUser && !r.closing.Load() {
		r.fireLocked(e, job.EvFrozenRestart)
		r.relaunchLocked(ctx, e, reasonFreeze)
	} else {
		r.fireLocked(e, job.EvFrozen)
		r.persistLocked(ctx, e.rec)
	}
	r.checkInvariantLocked(e)
	return true, nil
}

// Shutdown stops every running job and waits for the processes to exit.
// When ctx expires first the remaining processes are killed.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.closing.Store(true)

	var handles []*supervisor.Handle
	for _, e := range r.entries() {
		e.mu.Lock()
		if e.restart != nil {
			r.cancelRestartLocked(e)
			r.fireLocked(e, job.EvAbort)
		}
		if e.handle != nil {
			handles = append(handles, e.handle)
			if err := r.launcher.Terminate(e.handle, false); err != nil {
				r.logger.Warn().Err(err).Str(log.FieldJobID, e.rec.ID).Msg("failed to signal transcoder")
			}
		}
		e.mu.Unlock()
	}
	r.logger.Info().Int("running", len(handles)).Str(log.FieldEvent, "registry.drain").Msg("stopping running jobs")

	for i, h := range handles {
		select {
		case <-h.Done():
		case <-ctx.Done():
			for _, rest := range handles[i:] {
				_ = r.launcher.Terminate(rest, true)
			}
			return fmt.Errorf("drain interrupted: %w", ctx.Err())
		}
	}
	return nil
}
