// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package watchdog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/loopcast/internal/clock/clocktest"
	"github.com/ManuGH/loopcast/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recoverCall struct {
	id         string
	generation uint64
	cutoff     time.Time
}

type fakeJobs struct {
	mu    sync.Mutex
	views []job.StatusView
	calls []recoverCall
	fail  map[string]error
}

func (f *fakeJobs) Statuses() []job.StatusView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]job.StatusView(nil), f.views...)
}

func (f *fakeJobs) RecoverFrozen(_ context.Context, id string, gen uint64, cutoff time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recoverCall{id, gen, cutoff})
	if err := f.fail[id]; err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakeJobs) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var now = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func running(id string, gen uint64, silent time.Duration) job.StatusView {
	return job.StatusView{ID: id, Running: true, Phase: job.PhaseRunning, Generation: gen, LastOutput: now.Add(-silent)}
}

func TestTick_KillsOnlySilentJobs(t *testing.T) {
	jobs := &fakeJobs{views: []job.StatusView{
		running("quiet", 3, 61*time.Second),
		running("chatty", 4, 10*time.Second),
		running("edge", 5, 60*time.Second),
		running("fresh", 6, 0),
		{ID: "idle", LastOutput: now.Add(-time.Hour)},
	}}
	w := New(Config{}, jobs, clocktest.New(now))

	assert.Equal(t, 1, w.Tick(context.Background(), now))
	require.Len(t, jobs.calls, 1)
	assert.Equal(t, recoverCall{"quiet", 3, now.Add(-DefaultThreshold)}, jobs.calls[0])
}

func TestTick_FailureIsIsolated(t *testing.T) {
	jobs := &fakeJobs{
		views: []job.StatusView{running("a", 1, 2*time.Minute), running("b", 2, 2*time.Minute)},
		fail:  map[string]error{"a": errors.New("boom")},
	}
	w := New(Config{}, jobs, clocktest.New(now))

	assert.Equal(t, 1, w.Tick(context.Background(), now))
	assert.Equal(t, 2, jobs.callCount())
}

func TestRun_TicksEveryThirtySeconds(t *testing.T) {
	defer goleak.VerifyNone(t)
	jobs := &fakeJobs{views: []job.StatusView{running("a", 1, 2*time.Minute)}}
	clk := clocktest.New(now)
	w := New(Config{}, jobs, clk)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return clk.Tickers() == 1 }, time.Second, time.Millisecond)
	clk.Advance(29 * time.Second)
	assert.Never(t, func() bool { return jobs.callCount() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	clk.Advance(time.Second)
	require.Eventually(t, func() bool { return jobs.callCount() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
}
