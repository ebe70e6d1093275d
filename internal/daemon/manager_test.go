// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/loopcast/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(Deps{Logger: log.WithComponent("test"), ListenAddr: ":0"})
	assert.ErrorIs(t, err, ErrMissingAPIHandler)

	_, err = NewManager(Deps{Logger: log.WithComponent("test"), APIHandler: okHandler()})
	assert.ErrorIs(t, err, ErrMissingListenAddr)
}

func TestManager_ShutdownBeforeStart(t *testing.T) {
	mgr, err := NewManager(Deps{Logger: log.WithComponent("test"), APIHandler: okHandler(), ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	assert.ErrorIs(t, mgr.Shutdown(context.Background()), ErrManagerNotStarted)
}

func TestManager_ServesThenRunsHooksLIFO(t *testing.T) {
	defer goleak.VerifyNone(t)

	mgr, err := NewManager(Deps{
		Logger:          log.WithComponent("test"),
		APIHandler:      okHandler(),
		ListenAddr:      "127.0.0.1:0",
		ShutdownTimeout: 2 * time.Second,
	})
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	hook := func(name string) ShutdownHook {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}
	mgr.RegisterShutdownHook("store.close", hook("store.close"))
	mgr.RegisterShutdownHook("registry.shutdown", hook("registry.shutdown"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()

	addrCtx, addrCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer addrCancel()
	addr, err := mgr.Addr(addrCtx)
	require.NoError(t, err)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop")
	}
	assert.Equal(t, []string{"registry.shutdown", "store.close"}, order)

	// A second shutdown is a no-op.
	assert.NoError(t, mgr.Shutdown(context.Background()))
}

func TestManager_HookErrorsAreJoined(t *testing.T) {
	mgr, err := NewManager(Deps{Logger: log.WithComponent("test"), APIHandler: okHandler(), ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	boom := errors.New("boom")
	mgr.RegisterShutdownHook("failing", func(context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = mgr.Start(ctx)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "hook failing")
}

func TestManager_ListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	mgr, err := NewManager(Deps{Logger: log.WithComponent("test"), APIHandler: okHandler(), ListenAddr: ln.Addr().String()})
	require.NoError(t, err)
	err = mgr.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start API server")
}
