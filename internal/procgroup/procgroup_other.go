// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !unix

package procgroup

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/ManuGH/loopcast/internal/log"
)

func set(cmd *exec.Cmd) {
	// No process groups; only the root process is signalled.
}

func interrupt(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	log.L().Debug().Int(log.FieldPID, pid).Msg("interrupt not supported, killing root process")
	return killProc(proc)
}

func kill(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	return killProc(proc)
}

func killProc(proc *os.Process) error {
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("%w: pid %d: %v", ErrSignalFailed, proc.Pid, err)
	}
	return nil
}
