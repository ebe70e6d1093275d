// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors of the supervision core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FFmpegStartTotal counts launch attempts by result (ok, spawn_error).
	FFmpegStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_ffmpeg_start_total",
		Help: "Total number of ffmpeg process starts",
	}, []string{"result"})

	// FFmpegExitTotal counts process exits by reason (clean, error, signal).
	FFmpegExitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_ffmpeg_exit_total",
		Help: "Total number of ffmpeg process exits",
	}, []string{"reason"})

	// JobsRunning is the number of jobs with a live process.
	JobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "loopcast_jobs_running",
		Help: "Number of jobs with a live transcoder process",
	})

	// JobsTotal is the number of known jobs.
	JobsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "loopcast_jobs",
		Help: "Number of jobs in the registry",
	})

	// RestartTotal counts automatic restart decisions by outcome
	// (scheduled, exhausted, aborted, fired).
	RestartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_restart_total",
		Help: "Automatic restart decisions by outcome",
	}, []string{"outcome"})

	// FreezeTotal counts processes killed for silence.
	FreezeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loopcast_freeze_total",
		Help: "Transcoder processes killed after producing no output",
	})

	// SchedulerTriggerTotal counts schedule firings by action and result.
	SchedulerTriggerTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_scheduler_trigger_total",
		Help: "Scheduled start/stop triggers",
	}, []string{"action", "result"})

	// StoreSaveTotal counts snapshot writes by result.
	StoreSaveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_store_save_total",
		Help: "Persistence snapshot writes",
	}, []string{"result"})

	// InvariantViolationTotal counts detected running/handle mismatches.
	InvariantViolationTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loopcast_invariant_violation_total",
		Help: "Detected running flag / process handle mismatches",
	})
)
