// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing.
const (
	JobIDKey          = "job.id"
	JobGenerationKey  = "job.generation"
	JobStartReasonKey = "job.start_reason"
	JobPhaseKey       = "job.phase"
	ProcessPIDKey     = "process.pid"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// JobAttributes creates job-related span attributes.
func JobAttributes(id, reason string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(JobIDKey, id)}
	if reason != "" {
		attrs = append(attrs, attribute.String(JobStartReasonKey, reason))
	}
	return attrs
}

// ProcessAttributes describes a launched transcoder.
func ProcessAttributes(pid int, generation uint64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ProcessPIDKey, pid),
		attribute.Int64(JobGenerationKey, int64(generation)), // #nosec G115 -- generation counter stays far below MaxInt64
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
