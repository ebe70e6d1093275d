// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup signals a child process together with everything it
// spawned. ffmpeg may fork helpers (protocol handlers, hw probes); signalling
// only the leader would orphan them.
package procgroup

import (
	"errors"
	"os/exec"
)

var ErrSignalFailed = errors.New("signal delivery failed")

// Set configures the command to start in a new process group.
// Mandatory for Interrupt/Kill to reach the whole tree.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Interrupt asks the group led by pid to finish (SIGINT). ffmpeg treats it as
// "finalise output and exit". A group that is already gone is not an error.
func Interrupt(pid int) error {
	if pid <= 0 {
		return nil
	}
	return interrupt(pid)
}

// Kill terminates the group led by pid immediately (SIGKILL).
func Kill(pid int) error {
	if pid <= 0 {
		return nil
	}
	return kill(pid)
}
