// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package supervisor

import (
	"errors"
	"io"
	"os/exec"
	"syscall"

	"github.com/ManuGH/loopcast/internal/procgroup"
)

// Process is a spawned child as seen by the supervisor.
type Process interface {
	Pid() int
	// Stderr is read until EOF before Wait is called.
	Stderr() io.Reader
	// Wait blocks until the process has exited and reports how.
	Wait() ExitStatus
	// Interrupt asks the process to finish its output and exit.
	Interrupt() error
	// Kill terminates the process immediately.
	Kill() error
}

// Spawner starts processes. The exec implementation is the default; tests
// substitute a fake.
type Spawner interface {
	Spawn(name string, args []string) (Process, error)
}

// ExecSpawner launches real processes in their own process group.
type ExecSpawner struct{}

func (ExecSpawner) Spawn(name string, args []string) (Process, error) {
	// Not CommandContext: a job outlives the request that started it.
	cmd := exec.Command(name, args...) // #nosec G204 -- argv is built without a shell
	procgroup.Set(cmd)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd, stderr: stderr}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stderr io.ReadCloser
}

func (p *execProcess) Pid() int          { return p.cmd.Process.Pid }
func (p *execProcess) Stderr() io.Reader { return p.stderr }
func (p *execProcess) Interrupt() error  { return procgroup.Interrupt(p.Pid()) }
func (p *execProcess) Kill() error       { return procgroup.Kill(p.Pid()) }

func (p *execProcess) Wait() ExitStatus {
	err := p.cmd.Wait()
	if err == nil {
		return ExitStatus{Code: intPtr(0)}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return ExitStatus{Signal: signalName(ws.Signal())}
		}
		return ExitStatus{Code: intPtr(exitErr.ExitCode())}
	}
	return ExitStatus{Code: intPtr(-1), Err: err}
}

func intPtr(v int) *int { return &v }
