// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Deps contains the dependencies of the daemon manager.
type Deps struct {
	Logger     zerolog.Logger
	APIHandler http.Handler

	ListenAddr string
	// ShutdownTimeout bounds HTTP draining plus every shutdown hook.
	ShutdownTimeout time.Duration
}

// Validate checks that all required dependencies are provided.
func (d Deps) Validate() error {
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	if d.ListenAddr == "" {
		return ErrMissingListenAddr
	}
	return nil
}
