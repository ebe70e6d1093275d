// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package job

import "fmt"

// Phase is the supervision state of a job.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseStarting   Phase = "starting"
	PhaseRunning    Phase = "running"
	PhaseStopping   Phase = "stopping"
	PhaseRestarting Phase = "restarting"
)

// Event drives a phase transition.
type Event string

const (
	EvStart         Event = "start"
	EvSpawned       Event = "spawned"
	EvSpawnFailed   Event = "spawn_failed"
	EvStop          Event = "stop"
	EvStopped       Event = "stopped"
	EvExited        Event = "exited"
	EvExitedRestart Event = "exited_restart"
	EvFrozen        Event = "frozen"
	EvFrozenRestart Event = "frozen_restart"
	EvRestart       Event = "restart"
	EvAbort         Event = "abort"
)

// Transition is a single allowed edge in the job state machine.
type Transition struct {
	From  Phase
	Event Event
	To    Phase
}

var transitionsTable = []Transition{
	// Start path
	{From: PhaseIdle, Event: EvStart, To: PhaseStarting},
	{From: PhaseRestarting, Event: EvStart, To: PhaseStarting},
	{From: PhaseRestarting, Event: EvRestart, To: PhaseStarting},
	{From: PhaseStarting, Event: EvSpawned, To: PhaseRunning},
	{From: PhaseStarting, Event: EvSpawnFailed, To: PhaseIdle},
	{From: PhaseStarting, Event: EvExitedRestart, To: PhaseRestarting},

	// Stop path
	{From: PhaseRunning, Event: EvStop, To: PhaseStopping},
	{From: PhaseRestarting, Event: EvStop, To: PhaseIdle},
	{From: PhaseRestarting, Event: EvAbort, To: PhaseIdle},
	{From: PhaseStopping, Event: EvStopped, To: PhaseIdle},

	// Process ended on its own
	{From: PhaseRunning, Event: EvExited, To: PhaseIdle},
	{From: PhaseRunning, Event: EvExitedRestart, To: PhaseRestarting},

	// Freeze recovery
	{From: PhaseRunning, Event: EvFrozen, To: PhaseIdle},
	{From: PhaseRunning, Event: EvFrozenRestart, To: PhaseRestarting},
}

// TransitionFor returns the allowed transition for a given phase+event.
func TransitionFor(from Phase, ev Event) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// Transitions returns a copy of the table.
func Transitions() []Transition {
	out := make([]Transition, len(transitionsTable))
	copy(out, transitionsTable)
	return out
}

// Fire applies ev to the runtime phase. The phase is left untouched when the
// edge is not in the table.
func (rt *Runtime) Fire(ev Event) (Transition, error) {
	from := rt.Phase
	if from == "" {
		from = PhaseIdle
	}
	tr, ok := TransitionFor(from, ev)
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s --%s-->", ErrIllegalTransition, from, ev)
	}
	rt.Phase = tr.To
	return tr, nil
}

// Live reports whether the phase owns a live process.
func (p Phase) Live() bool {
	return p == PhaseRunning || p == PhaseStopping
}
