// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package supervisor launches one transcoder process per job, streams its
// stderr into liveness events and reports its exit exactly once.
package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/loopcast/internal/clock"
	"github.com/ManuGH/loopcast/internal/job"
	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/metrics"
	"github.com/ManuGH/loopcast/internal/transcode"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	tailLines     = 64
	maxLineLength = 64 * 1024
)

// ExitStatus describes how a process ended. Code is nil when the process
// was terminated by a signal.
type ExitStatus struct {
	Code    *int
	Signal  string
	EndedAt time.Time
	Err     error
	Tail    []string
}

// Reason classifies the exit for metrics and logs.
func (s ExitStatus) Reason() string {
	switch {
	case s.Signal != "":
		return "signal"
	case s.Code != nil && *s.Code == 0:
		return "clean"
	default:
		return "error"
	}
}

// Sink receives events for a launched process. Calls for one process never
// overlap; Exited is the last call.
type Sink interface {
	Output(jobID string, generation uint64, at time.Time)
	Exited(jobID string, generation uint64, status ExitStatus)
}

// LaunchSpec identifies what to run and on whose behalf.
type LaunchSpec struct {
	JobID      string
	Generation uint64
	Input      string
	Output     string
}

// Config tunes the supervisor.
type Config struct {
	Settings transcode.Settings
	// KillTimeout is how long a graceful stop may take before SIGKILL.
	KillTimeout time.Duration
	// OutputInterval throttles liveness events per process.
	OutputInterval time.Duration
}

// Supervisor starts and signals transcoder processes.
type Supervisor struct {
	cfg     Config
	spawner Spawner
	clock   clock.Clock
	logger  zerolog.Logger
}

// Option customises a Supervisor.
type Option func(*Supervisor)

// WithSpawner replaces the exec spawner.
func WithSpawner(sp Spawner) Option { return func(s *Supervisor) { s.spawner = sp } }

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option { return func(s *Supervisor) { s.clock = c } }

// New creates a Supervisor.
func New(cfg Config, opts ...Option) *Supervisor {
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = 5 * time.Second
	}
	if cfg.OutputInterval <= 0 {
		cfg.OutputInterval = time.Second
	}
	if cfg.Settings.Binary == "" {
		cfg.Settings.Binary = "ffmpeg"
	}
	s := &Supervisor{
		cfg:     cfg,
		spawner: ExecSpawner{},
		clock:   clock.Real(),
		logger:  log.WithComponent("supervisor"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handle is a live process owned by one job generation.
type Handle struct {
	JobID      string
	Generation uint64
	PID        int
	StartedAt  time.Time

	proc Process
	ring *transcode.LineRing
	done chan struct{}

	mu       sync.Mutex
	progress transcode.Progress
	killer   clock.Timer
	reaped   bool
}

// Done is closed once the process has been reaped and its exit delivered
// to the sink.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Tail returns the last n stderr lines.
func (h *Handle) Tail(n int) []string { return h.ring.LastN(n) }

// Progress returns the latest -progress report.
func (h *Handle) Progress() transcode.Progress {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.progress
}

// Launch spawns the transcoder for spec. Failures to start are returned
// synchronously; everything after that is reported through sink.
func (s *Supervisor) Launch(ctx context.Context, spec LaunchSpec, sink Sink) (*Handle, error) {
	logger := log.WithContext(ctx, s.logger).With().
		Str(log.FieldJobID, spec.JobID).
		Uint64(log.FieldGeneration, spec.Generation).
		Logger()

	args, err := transcode.BuildArgs(s.cfg.Settings, spec.Input, spec.Output)
	if err != nil {
		metrics.FFmpegStartTotal.WithLabelValues("spawn_error").Inc()
		return nil, fmt.Errorf("%w: %v", job.ErrSpawnFailure, err)
	}

	proc, err := s.spawner.Spawn(s.cfg.Settings.Binary, args)
	if err != nil {
		metrics.FFmpegStartTotal.WithLabelValues("spawn_error").Inc()
		logger.Error().Err(err).Str(log.FieldEvent, "ffmpeg.spawn_failed").Msg("failed to start transcoder")
		return nil, fmt.Errorf("%w: %s: %v", job.ErrSpawnFailure, s.cfg.Settings.Binary, err)
	}
	metrics.FFmpegStartTotal.WithLabelValues("ok").Inc()

	h := &Handle{
		JobID:      spec.JobID,
		Generation: spec.Generation,
		PID:        proc.Pid(),
		StartedAt:  s.clock.Now(),
		proc:       proc,
		ring:       transcode.NewLineRing(tailLines),
		done:       make(chan struct{}),
	}
	logger = logger.With().Int(log.FieldPID, h.PID).Logger()
	logger.Info().
		Str(log.FieldEvent, "ffmpeg.start").
		Str(log.FieldPath, spec.Input).
		Msg("transcoder started")

	go s.watch(h, sink, logger)
	return h, nil
}

// watch drains stderr, then reaps the process and reports the exit.
func (s *Supervisor) watch(h *Handle, sink Sink, logger zerolog.Logger) {
	debugLimiter := rate.NewLimiter(rate.Every(time.Second), 5)
	var lastSent time.Time

	scanner := bufio.NewScanner(h.proc.Stderr())
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)
	scanner.Split(scanLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		now := s.clock.Now()
		h.ring.Add(line)
		h.mu.Lock()
		isProgress := h.progress.ParseLine(line)
		h.mu.Unlock()

		if lastSent.IsZero() || now.Sub(lastSent) >= s.cfg.OutputInterval {
			lastSent = now
			sink.Output(h.JobID, h.Generation, now)
		}
		if !isProgress && !transcode.IsStatsLine(line) && debugLimiter.Allow() {
			logger.Debug().Str("line", line).Msg("ffmpeg")
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Debug().Err(err).Msg("stderr scan ended")
	}

	status := h.proc.Wait()
	status.EndedAt = s.clock.Now()
	status.Tail = h.ring.LastN(20)

	h.mu.Lock()
	h.reaped = true
	if h.killer != nil {
		h.killer.Stop()
	}
	h.mu.Unlock()

	metrics.FFmpegExitTotal.WithLabelValues(status.Reason()).Inc()
	var ev *zerolog.Event
	if status.Reason() == "error" {
		ev = logger.Warn().Strs("stderr", status.Tail)
	} else {
		ev = logger.Info()
	}
	if status.Code != nil {
		ev = ev.Int(log.FieldExitCode, *status.Code)
	}
	ev.Str(log.FieldSignal, status.Signal).
		Str(log.FieldEvent, "ffmpeg.exit").
		Dur("uptime", status.EndedAt.Sub(h.StartedAt)).
		Msg("transcoder exited")

	sink.Exited(h.JobID, h.Generation, status)
	close(h.done)
}

// Terminate signals the process and returns without waiting. A graceful stop
// sends SIGINT and escalates to SIGKILL after KillTimeout; a forceful one
// sends SIGKILL right away.
func (s *Supervisor) Terminate(h *Handle, forceful bool) error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	if h.reaped {
		h.mu.Unlock()
		return nil
	}
	if !forceful && h.killer == nil {
		h.killer = s.clock.AfterFunc(s.cfg.KillTimeout, func() {
			select {
			case <-h.done:
			default:
				s.logger.Warn().
					Str(log.FieldJobID, h.JobID).
					Int(log.FieldPID, h.PID).
					Str(log.FieldEvent, "ffmpeg.kill_escalation").
					Msg("graceful stop timed out, sending SIGKILL")
				_ = h.proc.Kill()
			}
		})
	}
	h.mu.Unlock()

	if forceful {
		return h.proc.Kill()
	}
	if err := h.proc.Interrupt(); err != nil {
		return h.proc.Kill()
	}
	return nil
}

// scanLines splits on \n or \r so ffmpeg's carriage-return stats updates
// count as separate lines.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
