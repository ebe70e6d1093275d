// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/loopcast/internal/clock/clocktest"
	"github.com/ManuGH/loopcast/internal/job"
	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/store"
	"github.com/ManuGH/loopcast/internal/supervisor"
	"github.com/ManuGH/loopcast/internal/supervisor/supervisortest"
	"github.com/ManuGH/loopcast/internal/transcode"
	"github.com/ManuGH/loopcast/internal/watchdog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC)

type harness struct {
	reg     *Registry
	spawner *supervisortest.Spawner
	clock   *clocktest.Fake
	uploads string
	path    string
}

func newHarness(t *testing.T, opts ...func(*Config)) *harness {
	t.Helper()
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	require.NoError(t, os.MkdirAll(uploads, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(uploads, "loop.mp4"), []byte("mp4"), 0o600))

	h := &harness{
		spawner: supervisortest.NewSpawner(),
		clock:   clocktest.New(epoch),
		uploads: uploads,
		path:    filepath.Join(dir, "jobs.json"),
	}
	cfg := Config{UploadsDir: uploads, MaxRestarts: 5, RestartBackoff: 5 * time.Second}
	for _, o := range opts {
		o(&cfg)
	}
	h.reg = h.newRegistry(cfg, store.NewFileStore(h.path))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.reg.Shutdown(ctx)
	})
	return h
}

func (h *harness) newRegistry(cfg Config, st store.Store) *Registry {
	sup := supervisor.New(supervisor.Config{
		Settings:       transcode.DefaultSettings(),
		KillTimeout:    5 * time.Second,
		OutputInterval: time.Second,
	}, supervisor.WithSpawner(h.spawner), supervisor.WithClock(h.clock))
	return New(cfg, st, sup, WithClock(h.clock))
}

// ready creates a job with a video and destination.
func (h *harness) ready(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	rec := h.reg.Create(ctx)
	_, err := h.reg.SetVideo(ctx, rec.ID, "loop.mp4")
	require.NoError(t, err)
	_, err = h.reg.SetStreamURL(ctx, rec.ID, "rtmp://a.rtmp.youtube.com/live2/key")
	require.NoError(t, err)
	return rec.ID
}

func (h *harness) status(t *testing.T, id string) job.StatusView {
	t.Helper()
	v, err := h.reg.Status(id)
	require.NoError(t, err)
	return v
}

func (h *harness) waitPhase(t *testing.T, id string, phase job.Phase) job.StatusView {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.status(t, id).Phase == phase
	}, 2*time.Second, 5*time.Millisecond, "job %s never reached %s", id, phase)
	return h.status(t, id)
}

func (h *harness) generation(t *testing.T, id string) uint64 {
	t.Helper()
	e, err := h.reg.get(id)
	require.NoError(t, err)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Runtime.Generation
}

func assertConsistent(t *testing.T, v job.StatusView) {
	t.Helper()
	assert.Equal(t, v.Running, v.Phase == job.PhaseRunning, "running flag disagrees with phase %s", v.Phase)
	if !v.Running {
		assert.Zero(t, v.PID)
	}
}

func TestCreate_Defaults(t *testing.T) {
	h := newHarness(t)
	rec := h.reg.Create(context.Background())

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "public", rec.Metadata.Visibility)
	assert.Equal(t, "normal", rec.Metadata.Latency)
	assert.False(t, rec.Schedule.Enabled)
	assert.True(t, rec.Runtime.AutoRestart)
	assert.Equal(t, job.PhaseIdle, rec.Runtime.Phase)

	second := h.reg.Create(context.Background())
	assert.True(t, job.Less(rec.ID, second.ID))
	assert.Len(t, h.reg.Statuses(), 2)
}

func TestStart_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.ErrorIs(t, h.reg.Start(ctx, "404"), job.ErrNotFound)
	require.ErrorIs(t, h.reg.Stop(ctx, "404"), job.ErrNotFound)
	_, err := h.reg.Status("404")
	require.ErrorIs(t, err, job.ErrNotFound)

	rec := h.reg.Create(ctx)
	require.ErrorIs(t, h.reg.Start(ctx, rec.ID), job.ErrMissingConfig)

	_, err = h.reg.SetVideo(ctx, rec.ID, "gone.mp4")
	require.NoError(t, err)
	_, err = h.reg.SetStreamURL(ctx, rec.ID, "rtmp://x/y")
	require.NoError(t, err)
	require.ErrorIs(t, h.reg.Start(ctx, rec.ID), job.ErrSourceMissing)

	_, err = h.reg.SetVideo(ctx, rec.ID, "../../etc/passwd")
	require.NoError(t, err)
	require.ErrorIs(t, h.reg.Start(ctx, rec.ID), job.ErrSourceMissing)

	assert.Empty(t, h.spawner.Calls())
	assert.Equal(t, job.PhaseIdle, h.status(t, rec.ID).Phase)
}

func TestStart_RunsAndIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.ready(t)

	require.NoError(t, h.reg.Start(ctx, id))
	v := h.status(t, id)
	assert.True(t, v.Running)
	assert.Equal(t, job.PhaseRunning, v.Phase)
	assert.Equal(t, h.spawner.Last().Pid(), v.PID)
	assert.Equal(t, epoch, v.StartedAt)
	assertConsistent(t, v)

	require.NoError(t, h.reg.Start(ctx, id))
	assert.Len(t, h.spawner.Procs(), 1)

	argv := h.spawner.Calls()[0]
	assert.Equal(t, filepath.Join(h.uploads, "loop.mp4"), argv[indexOf(argv, "-i")+1])
	assert.Equal(t, "rtmp://a.rtmp.youtube.com/live2/key", argv[len(argv)-1])
}

func indexOf(s []string, v string) int {
	for i := range s {
		if s[i] == v {
			return i
		}
	}
	return -1
}

func TestStart_SpawnFailure(t *testing.T) {
	h := newHarness(t)
	id := h.ready(t)
	h.spawner.SetFail(errors.New("exec: not found"))

	err := h.reg.Start(context.Background(), id)
	require.ErrorIs(t, err, job.ErrSpawnFailure)
	v := h.status(t, id)
	assert.Equal(t, job.PhaseIdle, v.Phase)
	assert.Equal(t, 0, h.clock.PendingTimers())
	assertConsistent(t, v)
}

func TestOutput_UpdatesLastOutput(t *testing.T) {
	h := newHarness(t)
	id := h.ready(t)
	require.NoError(t, h.reg.Start(context.Background(), id))
	assert.Equal(t, epoch, h.status(t, id).LastOutput)

	h.clock.Advance(3 * time.Second)
	require.NoError(t, h.spawner.Last().Emit("frame=  120 fps= 30 q=28.0 size=1024kB time=00:00:04.00 bitrate=2097.2kbits/s speed=1.0x"))
	require.Eventually(t, func() bool {
		return h.status(t, id).LastOutput.Equal(epoch.Add(3 * time.Second))
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStop_SuppressesRestart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.ready(t)
	require.NoError(t, h.reg.Start(ctx, id))
	p := h.spawner.Last()

	require.NoError(t, h.reg.Stop(ctx, id))
	v := h.status(t, id)
	assert.Equal(t, job.PhaseIdle, v.Phase)
	assert.False(t, v.Running)
	assert.True(t, v.StoppedByUser)
	assert.False(t, v.AutoRestart)
	assert.Equal(t, []string{"SIGINT"}, p.Signals())

	// The exit arrives after the stop and only fills in the exit details.
	require.Eventually(t, func() bool { return h.status(t, id).LastExitSignal == "SIGINT" }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.clock.PendingTimers() == 0 }, 2*time.Second, 5*time.Millisecond)
	h.clock.Advance(time.Minute)
	assert.Len(t, h.spawner.Procs(), 1)
	assertConsistent(t, h.status(t, id))

	// Stopping an idle job is a no-op.
	require.NoError(t, h.reg.Stop(ctx, id))
}

func TestExit_SchedulesRestart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.ready(t)
	require.NoError(t, h.reg.Start(ctx, id))
	first := h.status(t, id)

	h.spawner.Last().Exit(1)
	v := h.waitPhase(t, id, job.PhaseRestarting)
	assert.False(t, v.Running)
	assert.Equal(t, 1, v.RestartCount)
	require.NotNil(t, v.LastExitCode)
	assert.Equal(t, 1, *v.LastExitCode)
	assert.Equal(t, 1, h.clock.PendingTimers())

	h.clock.Advance(4 * time.Second)
	assert.Len(t, h.spawner.Procs(), 1)
	h.clock.Advance(time.Second)
	require.Len(t, h.spawner.Procs(), 2)

	v = h.status(t, id)
	assert.Equal(t, job.PhaseRunning, v.Phase)
	assert.Equal(t, 1, v.RestartCount)
	assert.NotEqual(t, first.PID, v.PID)
	assertConsistent(t, v)
}

func TestExit_CleanExitAlsoRestarts(t *testing.T) {
	h := newHarness(t)
	id := h.ready(t)
	require.NoError(t, h.reg.Start(context.Background(), id))

	h.spawner.Last().Exit(0)
	v := h.waitPhase(t, id, job.PhaseRestarting)
	assert.Equal(t, 1, v.RestartCount)
}

func TestExit_RestartsAreBounded(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxRestarts = 2 })
	id := h.ready(t)
	require.NoError(t, h.reg.Start(context.Background(), id))

	for i := 1; i <= 2; i++ {
		h.spawner.Last().Exit(1)
		h.waitPhase(t, id, job.PhaseRestarting)
		h.clock.Advance(5 * time.Second)
		require.Len(t, h.spawner.Procs(), i+1)
	}
	h.spawner.Last().Exit(1)
	v := h.waitPhase(t, id, job.PhaseIdle)
	assert.Equal(t, 2, v.RestartCount)
	assert.Equal(t, 0, h.clock.PendingTimers())

	// A manual start resets the budget.
	require.NoError(t, h.reg.Start(context.Background(), id))
	assert.Equal(t, 0, h.status(t, id).RestartCount)
}

func TestExit_AutoRestartDisabled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.ready(t)
	require.NoError(t, h.reg.Start(ctx, id))
	_, err := h.reg.SetAutoRestart(ctx, id, false)
	require.NoError(t, err)

	h.spawner.Last().Exit(1)
	v := h.waitPhase(t, id, job.PhaseIdle)
	assert.Equal(t, 0, v.RestartCount)
	assert.Equal(t, 0, h.clock.PendingTimers())
}

func TestStop_CancelsPendingRestart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.ready(t)
	require.NoError(t, h.reg.Start(ctx, id))
	h.spawner.Last().Exit(1)
	h.waitPhase(t, id, job.PhaseRestarting)

	require.NoError(t, h.reg.Stop(ctx, id))
	v := h.status(t, id)
	assert.Equal(t, job.PhaseIdle, v.Phase)
	assert.Equal(t, 0, h.clock.PendingTimers())

	h.clock.Advance(time.Minute)
	assert.Len(t, h.spawner.Procs(), 1)
}

func TestRestart_AbandonedWhenVideoRemoved(t *testing.T) {
	h := newHarness(t)
	id := h.ready(t)
	require.NoError(t, h.reg.Start(context.Background(), id))
	h.spawner.Last().Exit(1)
	h.waitPhase(t, id, job.PhaseRestarting)

	require.NoError(t, os.Remove(filepath.Join(h.uploads, "loop.mp4")))
	h.clock.Advance(5 * time.Second)

	v := h.status(t, id)
	assert.Equal(t, job.PhaseIdle, v.Phase)
	assert.Len(t, h.spawner.Procs(), 1)
	assertConsistent(t, v)
}

func TestRestart_SpawnFailureCountsAsAttempt(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxRestarts = 2 })
	id := h.ready(t)
	require.NoError(t, h.reg.Start(context.Background(), id))
	h.spawner.Last().Exit(1)
	h.waitPhase(t, id, job.PhaseRestarting)

	h.spawner.SetFail(errors.New("exec: not found"))
	h.clock.Advance(5 * time.Second)
	v := h.status(t, id)
	assert.Equal(t, job.PhaseRestarting, v.Phase)
	assert.Equal(t, 2, v.RestartCount)

	h.clock.Advance(5 * time.Second)
	v = h.status(t, id)
	assert.Equal(t, job.PhaseIdle, v.Phase)
	assert.Equal(t, 0, h.clock.PendingTimers())
}

func TestExit_StaleGenerationIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.spawner.ExitOnInterrupt = false
	id := h.ready(t)

	require.NoError(t, h.reg.Start(ctx, id))
	old := h.spawner.Last()
	require.NoError(t, h.reg.Stop(ctx, id))
	require.NoError(t, h.reg.Start(ctx, id))
	current := h.status(t, id)

	old.Exit(1)
	require.Eventually(t, func() bool { return h.status(t, id).LastExitCode != nil }, 2*time.Second, 5*time.Millisecond)
	v := h.status(t, id)
	assert.Equal(t, job.PhaseRunning, v.Phase)
	assert.Equal(t, current.PID, v.PID)
	assert.Equal(t, 0, v.RestartCount)
	assertConsistent(t, v)
}

func TestRecoverFrozen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.ready(t)
	require.NoError(t, h.reg.Start(ctx, id))
	frozen := h.spawner.Last()
	gen := h.generation(t, id)

	// Just launched: the start time counts as output.
	killed, err := h.reg.RecoverFrozen(ctx, id, gen, h.clock.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, killed)

	h.clock.Advance(10 * time.Second)
	require.NoError(t, frozen.Emit("frame=1"))
	require.Eventually(t, func() bool {
		return h.status(t, id).LastOutput.Equal(epoch.Add(10 * time.Second))
	}, 2*time.Second, 5*time.Millisecond)
	h.clock.Advance(61 * time.Second)

	// Wrong generation is ignored.
	killed, err = h.reg.RecoverFrozen(ctx, id, gen+100, h.clock.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, killed)

	killed, err = h.reg.RecoverFrozen(ctx, id, gen, h.clock.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, killed)
	assert.Equal(t, []string{"SIGKILL"}, frozen.Signals())

	require.Len(t, h.spawner.Procs(), 2)
	v := h.status(t, id)
	assert.Equal(t, job.PhaseRunning, v.Phase)
	assert.Equal(t, h.clock.Now(), v.LastOutput)
	assert.Equal(t, 0, v.RestartCount)
	assertConsistent(t, v)

	// The killed process's exit is stale.
	require.Eventually(t, func() bool { return h.status(t, id).LastExitSignal == "SIGKILL" }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, job.PhaseRunning, h.status(t, id).Phase)
}

func TestWatchdog_KillsJobSilentSinceLaunch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.ready(t)
	require.NoError(t, h.reg.Start(ctx, id))
	silent := h.spawner.Last()
	wd := watchdog.New(watchdog.Config{}, h.reg, h.clock)

	h.clock.Advance(30 * time.Second)
	assert.Zero(t, wd.Tick(ctx, h.clock.Now()))
	assert.Empty(t, silent.Signals())

	h.clock.Advance(60 * time.Second)
	assert.Equal(t, 1, wd.Tick(ctx, h.clock.Now()))
	assert.Equal(t, []string{"SIGKILL"}, silent.Signals())

	require.Len(t, h.spawner.Procs(), 2)
	v := h.status(t, id)
	assert.Equal(t, job.PhaseRunning, v.Phase)
	assert.Equal(t, h.clock.Now(), v.LastOutput)
	assertConsistent(t, v)
}

func TestRecoverFrozen_WithoutAutoRestart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.ready(t)
	require.NoError(t, h.reg.Start(ctx, id))
	_, err := h.reg.SetAutoRestart(ctx, id, false)
	require.NoError(t, err)
	h.clock.Advance(5 * time.Second)
	require.NoError(t, h.spawner.Last().Emit("frame=1"))
	require.Eventually(t, func() bool {
		return h.status(t, id).LastOutput.Equal(epoch.Add(5 * time.Second))
	}, 2*time.Second, 5*time.Millisecond)
	h.clock.Advance(2 * time.Minute)

	killed, err := h.reg.RecoverFrozen(ctx, id, h.generation(t, id), h.clock.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, killed)
	v := h.status(t, id)
	assert.Equal(t, job.PhaseIdle, v.Phase)
	assert.Len(t, h.spawner.Procs(), 1)
}

func TestRestore_RoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.ready(t)
	title := "Lo-fi loop"
	_, err := h.reg.SetMetadata(ctx, id, job.MetadataPatch{Title: &title})
	require.NoError(t, err)
	require.NoError(t, h.reg.Start(ctx, id))

	restored := h.newRegistry(Config{UploadsDir: h.uploads}, store.NewFileStore(h.path))
	assert.Equal(t, 1, restored.Restore(ctx))

	v, err := restored.Status(id)
	require.NoError(t, err)
	assert.False(t, v.Running)
	assert.Equal(t, job.PhaseIdle, v.Phase)
	assert.Equal(t, "loop.mp4", v.Video)
	assert.Equal(t, title, v.Metadata.Title)

	// New ids never collide with restored ones.
	next := restored.Create(ctx)
	assert.True(t, job.Less(id, next.ID))
}

func TestRestore_CorruptFileStartsEmpty(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.path, []byte("{not json"), 0o600))

	reg := h.newRegistry(Config{}, store.NewFileStore(h.path))
	assert.Equal(t, 0, reg.Restore(context.Background()))
	assert.Empty(t, reg.Statuses())
}

type failingStore struct {
	mu    sync.Mutex
	saves int
}

func (s *failingStore) Load(context.Context) (map[string]job.Persisted, error) {
	return nil, errors.New("disk on fire")
}

func (s *failingStore) Save(context.Context, map[string]job.Persisted) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return errors.New("disk full")
}

func (s *failingStore) Close() error { return nil }

func TestPersistFailureKeepsInMemoryState(t *testing.T) {
	h := newHarness(t)
	st := &failingStore{}
	reg := h.newRegistry(Config{UploadsDir: h.uploads}, st)
	ctx := context.Background()

	rec := reg.Create(ctx)
	got, err := reg.SetVideo(ctx, rec.ID, "loop.mp4")
	require.NoError(t, err)
	assert.Equal(t, "loop.mp4", got.Video)
	assert.Equal(t, 2, st.saves)
}

func TestSetMetadata_InvalidPatchLeavesRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rec := h.reg.Create(ctx)

	vis := "secret"
	_, err := h.reg.SetMetadata(ctx, rec.ID, job.MetadataPatch{Visibility: &vis})
	require.ErrorIs(t, err, job.ErrInvalidPatch)
	assert.Equal(t, "public", h.status(t, rec.ID).Metadata.Visibility)
}

func TestShutdown_StopsEverything(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, b := h.ready(t), h.ready(t)
	require.NoError(t, h.reg.Start(ctx, a))
	require.NoError(t, h.reg.Start(ctx, b))

	require.NoError(t, h.reg.Shutdown(ctx))
	for _, id := range []string{a, b} {
		v := h.status(t, id)
		assert.Equal(t, job.PhaseIdle, v.Phase)
		assert.Equal(t, 0, v.RestartCount, "no restart during shutdown")
		assertConsistent(t, v)
	}
	for _, p := range h.spawner.Procs() {
		assert.Equal(t, []string{"SIGINT"}, p.Signals())
	}
	require.ErrorIs(t, h.reg.Start(ctx, a), ErrShuttingDown)
}

func TestShutdown_KillsOnDeadline(t *testing.T) {
	h := newHarness(t)
	h.spawner.ExitOnInterrupt = false
	id := h.ready(t)
	require.NoError(t, h.reg.Start(context.Background(), id))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.reg.Shutdown(ctx)
	require.ErrorIs(t, err, context.Canceled)

	p := h.spawner.Last()
	assert.Equal(t, []string{"SIGINT", "SIGKILL"}, p.Signals())
	h.waitPhase(t, id, job.PhaseIdle)
}

func TestConcurrentJobsAreIndependent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ids := make([]string, 8)
	for i := range ids {
		ids[i] = h.ready(t)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, h.reg.Start(ctx, id))
			assert.NoError(t, h.reg.Stop(ctx, id))
			assert.NoError(t, h.reg.Start(ctx, id))
		}(id)
	}
	wg.Wait()

	for _, v := range h.reg.Statuses() {
		assert.True(t, v.Running)
		assertConsistent(t, v)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(b.buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestLogging_CarriesRequestID(t *testing.T) {
	h := newHarness(t)
	var buf syncBuffer
	h.reg.logger = zerolog.New(&buf)
	ctx := log.ContextWithRequestID(context.Background(), "req-42")

	rec := h.reg.Create(ctx)
	_, err := h.reg.SetVideo(ctx, rec.ID, "loop.mp4")
	require.NoError(t, err)
	_, err = h.reg.SetStreamURL(ctx, rec.ID, "rtmp://a.rtmp.youtube.com/live2/key")
	require.NoError(t, err)
	require.NoError(t, h.reg.Start(ctx, rec.ID))
	require.NoError(t, h.reg.Stop(ctx, rec.ID))

	seen := map[string]bool{}
	for _, e := range buf.entries(t) {
		ev, _ := e[log.FieldEvent].(string)
		switch ev {
		case "job.created", "job.video_set", "job.stop":
			assert.Equal(t, "req-42", e[log.FieldRequestID], "event %s", ev)
			assert.Equal(t, rec.ID, e[log.FieldJobID], "event %s", ev)
			seen[ev] = true
		}
	}
	assert.Equal(t, map[string]bool{"job.created": true, "job.video_set": true, "job.stop": true}, seen)
}
