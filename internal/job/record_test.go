// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package job

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := New("1", now)

	assert.Equal(t, "public", r.Metadata.Visibility)
	assert.Equal(t, "22", r.Metadata.CategoryID)
	assert.True(t, r.Metadata.Chat.Enabled)
	assert.True(t, r.Metadata.DVR)
	assert.Equal(t, "normal", r.Metadata.Latency)
	assert.False(t, r.Schedule.Enabled)
	assert.True(t, r.Schedule.EveryDay)
	assert.True(t, r.Runtime.AutoRestart)
	assert.Equal(t, PhaseIdle, r.Runtime.Phase)
	assert.Equal(t, now, r.CreatedAt)
	assert.False(t, r.Ready())
}

func TestPersisted_DropsRuntime(t *testing.T) {
	r := New("1", time.Now())
	r.Video = "clip.mp4"
	r.StreamURL = "rtmp://example/live/key"
	r.Runtime.Running = true
	r.Runtime.PID = 42
	r.Runtime.RestartCount = 3

	back := FromPersisted(r.Persisted())
	assert.Equal(t, r.Video, back.Video)
	assert.Equal(t, r.StreamURL, back.StreamURL)
	assert.False(t, back.Runtime.Running)
	assert.Zero(t, back.Runtime.PID)
	assert.Zero(t, back.Runtime.RestartCount)
	assert.True(t, back.Runtime.AutoRestart)
}

func TestClone_IsDeep(t *testing.T) {
	r := New("1", time.Now())
	r.Metadata.Tags = []string{"a"}
	code := 1
	r.Runtime.LastExitCode = &code

	c := r.Clone()
	c.Metadata.Tags[0] = "b"
	*c.Runtime.LastExitCode = 2
	assert.Equal(t, "a", r.Metadata.Tags[0])
	assert.Equal(t, 1, *r.Runtime.LastExitCode)
}

func TestIDGenerator_MonotonicWithinMillisecond(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	g := NewIDGenerator(func() time.Time { return fixed })

	var mu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.Next()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, 50)
}

func TestIDGenerator_ObserveSkipsAhead(t *testing.T) {
	g := NewIDGenerator(func() time.Time { return time.UnixMilli(100) })
	g.Observe("500")
	g.Observe("not-a-number")
	assert.Equal(t, "501", g.Next())
	assert.True(t, Less("501", "1000"))
}
