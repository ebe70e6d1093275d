// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clocktest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AfterFuncFiresInOrder(t *testing.T) {
	c := New(epoch)
	var order []string
	c.AfterFunc(3*time.Second, func() { order = append(order, "b") })
	c.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	late := c.AfterFunc(10*time.Second, func() { order = append(order, "late") })

	c.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, epoch.Add(5*time.Second), c.Now())
	assert.True(t, late.Stop())
	assert.Equal(t, 0, c.PendingTimers())
}

func TestFake_CallbackSeesDeadlineAndCanReschedule(t *testing.T) {
	c := New(epoch)
	var seen []time.Time
	var fire func()
	fire = func() {
		seen = append(seen, c.Now())
		if len(seen) < 3 {
			c.AfterFunc(time.Second, fire)
		}
	}
	c.AfterFunc(time.Second, fire)
	c.Advance(10 * time.Second)

	require.Len(t, seen, 3)
	assert.Equal(t, epoch.Add(3*time.Second), seen[2])
}

func TestFake_TickerCoalesces(t *testing.T) {
	c := New(epoch)
	tk := c.NewTicker(time.Minute)
	assert.Equal(t, 1, c.Tickers())

	c.Advance(3 * time.Minute)
	select {
	case got := <-tk.C():
		assert.Equal(t, epoch.Add(time.Minute), got)
	default:
		t.Fatal("expected a tick")
	}
	select {
	case <-tk.C():
		t.Fatal("ticks should coalesce like time.Ticker")
	default:
	}

	tk.Stop()
	assert.Equal(t, 0, c.Tickers())
}

func TestFake_StoppedTimerDoesNotFire(t *testing.T) {
	c := New(epoch)
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	c.Advance(time.Minute)
	assert.False(t, fired)
}
