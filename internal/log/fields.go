// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldTraceID   = "trace_id"

	// Process fields
	FieldEvent      = "event"
	FieldComponent  = "component"
	FieldPID        = "pid"
	FieldGeneration = "generation"
	FieldExitCode   = "exit_code"
	FieldSignal     = "signal"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Restart fields
	FieldRestartCount = "restart_count"
	FieldBackoff      = "backoff"

	// Path / URL fields
	FieldPath      = "path"
	FieldStreamURL = "stream_url"
)
