// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package job

import "errors"

var (
	// ErrNotFound is returned when no job carries the requested id.
	ErrNotFound = errors.New("job not found")
	// ErrAlreadyRunning marks a start request for a running job. Start treats
	// it as success; it only surfaces in logs and metrics.
	ErrAlreadyRunning = errors.New("job already running")
	// ErrMissingConfig is returned when a job lacks a video or stream URL.
	ErrMissingConfig = errors.New("job missing video or stream url")
	// ErrSourceMissing is returned when the video file does not exist.
	ErrSourceMissing = errors.New("job source file missing")
	// ErrSpawnFailure is returned when the transcoder could not be launched.
	ErrSpawnFailure = errors.New("transcoder spawn failed")
	// ErrPersistence wraps every store failure.
	ErrPersistence = errors.New("persistence failure")
	// ErrInvalidPatch is returned when a metadata or schedule patch is rejected.
	ErrInvalidPatch = errors.New("invalid patch")
	// ErrIllegalTransition is returned for a phase/event pair outside the table.
	ErrIllegalTransition = errors.New("illegal phase transition")
)
