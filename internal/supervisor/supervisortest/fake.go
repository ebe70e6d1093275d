// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package supervisortest provides scriptable processes for supervisor and
// registry tests.
package supervisortest

import (
	"errors"
	"io"
	"sync"

	"github.com/ManuGH/loopcast/internal/supervisor"
)

// Spawner records every spawn and hands out fake processes.
type Spawner struct {
	mu      sync.Mutex
	nextPID int
	procs   []*Process
	calls   [][]string
	// Fail, when set, makes the next spawns fail with this error.
	Fail error
	// ExitOnInterrupt makes processes exit as soon as they are interrupted.
	ExitOnInterrupt bool
}

// NewSpawner returns a spawner whose processes exit on SIGINT.
func NewSpawner() *Spawner {
	return &Spawner{nextPID: 1000, ExitOnInterrupt: true}
}

func (s *Spawner) Spawn(name string, args []string) (supervisor.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]string{name}, args...))
	if s.Fail != nil {
		return nil, s.Fail
	}
	s.nextPID++
	r, w := io.Pipe()
	p := &Process{
		pid:             s.nextPID,
		stderrR:         r,
		stderrW:         w,
		exit:            make(chan supervisor.ExitStatus, 1),
		exitOnInterrupt: s.ExitOnInterrupt,
	}
	s.procs = append(s.procs, p)
	return p, nil
}

// SetFail changes the spawn failure under the lock.
func (s *Spawner) SetFail(err error) {
	s.mu.Lock()
	s.Fail = err
	s.mu.Unlock()
}

// Procs returns every process spawned so far.
func (s *Spawner) Procs() []*Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Process(nil), s.procs...)
}

// Last returns the most recent process or nil.
func (s *Spawner) Last() *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.procs) == 0 {
		return nil
	}
	return s.procs[len(s.procs)-1]
}

// Calls returns the argv of every spawn attempt, failed ones included.
func (s *Spawner) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.calls...)
}

// Process is a fake child. Its stderr is fed with Emit and it ends with
// Exit, Kill or (optionally) Interrupt.
type Process struct {
	pid             int
	stderrR         *io.PipeReader
	stderrW         *io.PipeWriter
	exit            chan supervisor.ExitStatus
	once            sync.Once
	exitOnInterrupt bool

	mu      sync.Mutex
	signals []string
	ended   bool
}

var errExited = errors.New("process exited")

func (p *Process) Pid() int          { return p.pid }
func (p *Process) Stderr() io.Reader { return p.stderrR }

func (p *Process) Wait() supervisor.ExitStatus { return <-p.exit }

func (p *Process) Interrupt() error {
	p.record("SIGINT")
	if p.exitOnInterrupt {
		p.end(supervisor.ExitStatus{Signal: "SIGINT"})
	}
	return nil
}

func (p *Process) Kill() error {
	p.record("SIGKILL")
	p.end(supervisor.ExitStatus{Signal: "SIGKILL"})
	return nil
}

// Emit writes one stderr line. It blocks until the supervisor reads it and
// fails once the process has exited.
func (p *Process) Emit(line string) error {
	_, err := p.stderrW.Write([]byte(line + "\n"))
	if errors.Is(err, io.ErrClosedPipe) {
		return errExited
	}
	return err
}

// Exit ends the process with code.
func (p *Process) Exit(code int) {
	p.end(supervisor.ExitStatus{Code: &code})
}

// Signals returns the signals delivered so far.
func (p *Process) Signals() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.signals...)
}

// Exited reports whether the process has ended.
func (p *Process) Exited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ended
}

func (p *Process) record(sig string) {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()
}

func (p *Process) end(st supervisor.ExitStatus) {
	p.once.Do(func() {
		p.mu.Lock()
		p.ended = true
		p.mu.Unlock()
		_ = p.stderrW.Close()
		p.exit <- st
	})
}
