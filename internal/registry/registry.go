// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package registry owns every job record and serialises all changes to it.
//
// Each job has its own lock, so operations on independent jobs proceed in
// parallel. Persistence goes through a single save lock; the lock order is
// always job lock, then save lock.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/loopcast/internal/clock"
	"github.com/ManuGH/loopcast/internal/job"
	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/metrics"
	"github.com/ManuGH/loopcast/internal/store"
	"github.com/ManuGH/loopcast/internal/supervisor"
	"github.com/ManuGH/loopcast/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Launcher starts and signals transcoder processes.
type Launcher interface {
	Launch(ctx context.Context, spec supervisor.LaunchSpec, sink supervisor.Sink) (*supervisor.Handle, error)
	Terminate(h *supervisor.Handle, forceful bool) error
}

// Config tunes restart policy and asset lookup.
type Config struct {
	// UploadsDir is the root video names resolve against.
	UploadsDir     string
	MaxRestarts    int
	RestartBackoff time.Duration
}

type entry struct {
	mu      sync.Mutex
	rec     job.Record
	handle  *supervisor.Handle
	restart clock.Timer
	// restartSeq identifies the pending restart timer; a callback whose
	// sequence no longer matches was superseded.
	restartSeq uint64
}

// Registry is the single owner of job state.
type Registry struct {
	cfg      Config
	store    store.Store
	launcher Launcher
	clock    clock.Clock
	ids      *job.IDGenerator
	tracer   trace.Tracer
	logger   zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]*entry

	saveMu   sync.Mutex
	snapshot map[string]job.Persisted

	generation atomic.Uint64
	closing    atomic.Bool
}

// Option customises a Registry.
type Option func(*Registry)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option { return func(r *Registry) { r.clock = c } }

// New creates an empty registry. Call Restore to load persisted jobs.
func New(cfg Config, st store.Store, launcher Launcher, opts ...Option) *Registry {
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = job.MaxRestarts
	}
	if cfg.RestartBackoff <= 0 {
		cfg.RestartBackoff = job.RestartBackoff
	}
	r := &Registry{
		cfg:      cfg,
		store:    st,
		launcher: launcher,
		clock:    clock.Real(),
		tracer:   telemetry.Tracer("loopcast/registry"),
		logger:   log.WithComponent("registry"),
		jobs:     map[string]*entry{},
		snapshot: map[string]job.Persisted{},
	}
	for _, o := range opts {
		o(r)
	}
	r.ids = job.NewIDGenerator(r.clock.Now)
	return r
}

// Restore loads persisted jobs. A store failure is logged and leaves the
// registry empty; it is never fatal.
func (r *Registry) Restore(ctx context.Context) int {
	loaded, err := r.store.Load(ctx)
	if err != nil {
		r.logger.Error().Err(err).Str(log.FieldEvent, "store.load_failed").Msg("failed to load jobs, starting empty")
		loaded = map[string]job.Persisted{}
	}

	r.mu.Lock()
	r.saveMu.Lock()
	for id, p := range loaded {
		if p.ID == "" {
			p.ID = id
		}
		r.jobs[p.ID] = &entry{rec: job.FromPersisted(p)}
		r.snapshot[p.ID] = p
		r.ids.Observe(p.ID)
	}
	n := len(r.jobs)
	r.saveMu.Unlock()
	r.mu.Unlock()

	metrics.JobsTotal.Set(float64(n))
	r.logger.Info().Int("jobs", n).Str(log.FieldEvent, "registry.restored").Msg("jobs restored")
	return n
}

func (r *Registry) get(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", job.ErrNotFound, id)
	}
	return e, nil
}

func (r *Registry) entries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.jobs))
	for _, e := range r.jobs {
		out = append(out, e)
	}
	return out
}

// persistLocked writes the snapshot with rec updated. The caller holds the
// job lock. Failures are logged; the in-memory change stands.
func (r *Registry) persistLocked(ctx context.Context, rec job.Record) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	r.snapshot[rec.ID] = rec.Persisted()
	if err := r.store.Save(ctx, r.snapshot); err != nil {
		metrics.StoreSaveTotal.WithLabelValues("error").Inc()
		logger := log.WithContext(ctx, r.logger)
		logger.Error().Err(err).
			Str(log.FieldJobID, rec.ID).
			Str(log.FieldEvent, "store.save_failed").
			Msg("failed to persist jobs")
		return
	}
	metrics.StoreSaveTotal.WithLabelValues("ok").Inc()
}

// Create registers a job with default settings.
func (r *Registry) Create(ctx context.Context) job.Record {
	rec := job.New(r.ids.Next(), r.clock.Now())
	e := &entry{rec: rec}

	e.mu.Lock()
	defer e.mu.Unlock()
	r.mu.Lock()
	r.jobs[rec.ID] = e
	n := len(r.jobs)
	r.mu.Unlock()
	metrics.JobsTotal.Set(float64(n))

	r.persistLocked(ctx, e.rec)
	logger := log.WithContext(ctx, r.logger)
	logger.Info().
		Str(log.FieldJobID, rec.ID).
		Str(log.FieldEvent, "job.created").
		Msg("job created")
	return e.rec.Clone()
}

// update runs fn on the job under its lock and persists the result.
func (r *Registry) update(ctx context.Context, id, event string, fn func(rec *job.Record) error) (job.Record, error) {
	e, err := r.get(id)
	if err != nil {
		return job.Record{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.rec.Clone()
	if err := fn(&next); err != nil {
		return e.rec.Clone(), err
	}
	e.rec = next
	r.persistLocked(ctx, e.rec)
	logger := log.WithContext(ctx, r.logger)
	logger.Info().
		Str(log.FieldJobID, id).
		Str(log.FieldEvent, event).
		Msg("job updated")
	return e.rec.Clone(), nil
}

// SetVideo records the uploaded video name.
func (r *Registry) SetVideo(ctx context.Context, id, name string) (job.Record, error) {
	return r.update(ctx, id, "job.video_set", func(rec *job.Record) error {
		rec.Video = name
		return nil
	})
}

// SetThumbnail records the uploaded thumbnail name.
func (r *Registry) SetThumbnail(ctx context.Context, id, name string) (job.Record, error) {
	return r.update(ctx, id, "job.thumbnail_set", func(rec *job.Record) error {
		rec.Thumbnail = name
		return nil
	})
}

// SetStreamURL records the destination. A running process keeps streaming to
// the old destination until it is restarted.
func (r *Registry) SetStreamURL(ctx context.Context, id, url string) (job.Record, error) {
	return r.update(ctx, id, "job.stream_set", func(rec *job.Record) error {
		rec.StreamURL = url
		return nil
	})
}

// SetMetadata deep-merges patch into the job metadata.
func (r *Registry) SetMetadata(ctx context.Context, id string, patch job.MetadataPatch) (job.Record, error) {
	return r.update(ctx, id, "job.metadata_set", func(rec *job.Record) error {
		m, err := patch.Apply(rec.Metadata)
		if err != nil {
			return err
		}
		rec.Metadata = m
		return nil
	})
}

// SetSchedule merges patch into the job schedule.
func (r *Registry) SetSchedule(ctx context.Context, id string, patch job.SchedulePatch) (job.Record, error) {
	return r.update(ctx, id, "job.schedule_set", func(rec *job.Record) error {
		s, err := patch.Apply(rec.Schedule)
		if err != nil {
			return err
		}
		rec.Schedule = s
		return nil
	})
}

// SetAutoRestart toggles automatic restarts for the current run.
func (r *Registry) SetAutoRestart(ctx context.Context, id string, enabled bool) (job.Record, error) {
	return r.update(ctx, id, "job.autorestart_set", func(rec *job.Record) error {
		rec.Runtime.AutoRestart = enabled
		return nil
	})
}

// Status returns the view of one job.
func (r *Registry) Status(id string) (job.StatusView, error) {
	e, err := r.get(id)
	if err != nil {
		return job.StatusView{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return viewLocked(e), nil
}

// Statuses returns the view of every job ordered by id.
func (r *Registry) Statuses() []job.StatusView {
	all := r.entries()
	out := make([]job.StatusView, 0, len(all))
	for _, e := range all {
		e.mu.Lock()
		out = append(out, viewLocked(e))
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return job.Less(out[i].ID, out[j].ID) })
	return out
}

// All returns a copy of every record ordered by id.
func (r *Registry) All() []job.Record {
	all := r.entries()
	out := make([]job.Record, 0, len(all))
	for _, e := range all {
		e.mu.Lock()
		out = append(out, e.rec.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return job.Less(out[i].ID, out[j].ID) })
	return out
}

func viewLocked(e *entry) job.StatusView {
	v := e.rec.View()
	if e.handle != nil {
		p := e.handle.Progress()
		v.Frame = p.Frame
		v.Speed = p.Speed
	}
	return v
}

// checkInvariantLocked verifies that a live handle, the running flag and the
// running phase always agree.
func (r *Registry) checkInvariantLocked(e *entry) {
	hasHandle := e.handle != nil
	rt := e.rec.Runtime
	if hasHandle == rt.Running && rt.Running == (rt.Phase == job.PhaseRunning) {
		return
	}
	metrics.InvariantViolationTotal.Inc()
	r.logger.Error().
		Str(log.FieldJobID, e.rec.ID).
		Bool("has_handle", hasHandle).
		Bool("running", rt.Running).
		Str("phase", string(rt.Phase)).
		Str(log.FieldEvent, "job.invariant_violation").
		Msg("running flag and process handle disagree")
}
