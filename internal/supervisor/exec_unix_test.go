// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package supervisor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/loopcast/internal/clock"
	"github.com/ManuGH/loopcast/internal/supervisor"
	"github.com/ManuGH/loopcast/internal/transcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFFmpeg writes a script that ignores its argv, prints a progress line
// and then runs body.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\necho 'frame=1' >&2\necho 'progress=continue' >&2\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755)) // #nosec G306 -- test executable
	return path
}

func realSupervisor(bin string) *supervisor.Supervisor {
	s := transcode.DefaultSettings()
	s.Binary = bin
	return supervisor.New(supervisor.Config{
		Settings:       s,
		KillTimeout:    200 * time.Millisecond,
		OutputInterval: time.Millisecond,
	}, supervisor.WithClock(clock.Real()))
}

func TestExec_ExitCodeAndOutput(t *testing.T) {
	sink := newSink()
	h, err := realSupervisor(fakeFFmpeg(t, "exit 3")).Launch(context.Background(), spec(), sink)
	require.NoError(t, err)

	st := sink.waitExit(t)
	require.NotNil(t, st.Code)
	assert.Equal(t, 3, *st.Code)
	assert.GreaterOrEqual(t, sink.outputCount(), 1)
	assert.Contains(t, h.Tail(5), "frame=1")
}

func TestExec_GracefulStopDeliversSIGINT(t *testing.T) {
	sink := newSink()
	sup := realSupervisor(fakeFFmpeg(t, "exec sleep 30"))
	h, err := sup.Launch(context.Background(), spec(), sink)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sink.outputCount() > 0 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, sup.Terminate(h, false))

	st := sink.waitExit(t)
	assert.Equal(t, "signal", st.Reason())
	assert.Equal(t, "SIGINT", st.Signal)
}

func TestExec_EscalatesWhenInterruptIgnored(t *testing.T) {
	sink := newSink()
	sup := realSupervisor(fakeFFmpeg(t, "trap '' INT\nwhile true; do sleep 1; done"))
	h, err := sup.Launch(context.Background(), spec(), sink)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sink.outputCount() > 0 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, sup.Terminate(h, false))

	st := sink.waitExit(t)
	assert.Equal(t, "SIGKILL", st.Signal)
}

func TestExec_MissingBinary(t *testing.T) {
	_, err := realSupervisor(filepath.Join(t.TempDir(), "nope")).Launch(context.Background(), spec(), newSink())
	require.Error(t, err)
}
