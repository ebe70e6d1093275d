// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package procgroup

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"github.com/ManuGH/loopcast/internal/log"
)

func set(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func interrupt(pid int) error { return signalGroup(pid, syscall.SIGINT) }

func kill(pid int) error { return signalGroup(pid, syscall.SIGKILL) }

func signalGroup(pid int, sig syscall.Signal) error {
	// -pid targets the group leader and all children (Setpgid at spawn).
	log.L().Debug().Int(log.FieldPID, pid).Str(log.FieldSignal, sig.String()).Msg("signalling process group")
	err := syscall.Kill(-pid, sig)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	// Fall back to the leader alone if the group is out of reach.
	if err2 := syscall.Kill(pid, sig); err2 != nil && !errors.Is(err2, syscall.ESRCH) {
		return fmt.Errorf("%w: %s pid %d: %v", ErrSignalFailed, sig, pid, err2)
	}
	return nil
}
