// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ManuGH/loopcast/internal/store"
)

// StoreChecker pings stores that hold a connection. Stores without one are
// always healthy.
type StoreChecker struct {
	store store.Store
}

func NewStoreChecker(st store.Store) *StoreChecker { return &StoreChecker{store: st} }

func (c *StoreChecker) Name() string { return "store" }

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	p, ok := c.store.(store.Pinger)
	if !ok {
		return CheckResult{Status: StatusHealthy, Message: "file backed"}
	}
	if err := p.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// BinaryChecker verifies that the transcoder binary can be found. A missing
// binary only degrades the service: jobs fail to start but the API works.
type BinaryChecker struct {
	binary string
}

func NewBinaryChecker(binary string) *BinaryChecker { return &BinaryChecker{binary: binary} }

func (c *BinaryChecker) Name() string { return "ffmpeg" }

func (c *BinaryChecker) Check(context.Context) CheckResult {
	path, err := exec.LookPath(c.binary)
	if err != nil {
		return CheckResult{Status: StatusDegraded, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: path}
}

// DirChecker verifies a directory is writable.
type DirChecker struct {
	name string
	path string
}

func NewDirChecker(name, path string) *DirChecker { return &DirChecker{name: name, path: path} }

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(context.Context) CheckResult {
	if err := writable(c.path); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.path}
	}
	return CheckResult{Status: StatusHealthy}
}

func writable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &os.PathError{Op: "stat", Path: dir, Err: os.ErrInvalid}
	}
	f, err := os.CreateTemp(dir, ".write_test")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
