// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store persists the durable part of every job as one snapshot.
package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ManuGH/loopcast/internal/job"
)

// Store loads and overwrites the full job snapshot. Save is never called
// concurrently; implementations need no locking of their own.
type Store interface {
	Load(ctx context.Context) (map[string]job.Persisted, error)
	Save(ctx context.Context, jobs map[string]job.Persisted) error
	Close() error
}

// Pinger is implemented by backends that hold a connection worth probing.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Config selects and parameterises a backend.
type Config struct {
	Backend string
	// Path is the jobs.json file, sqlite database or badger directory.
	// Relative paths resolve against DataDir.
	Path    string
	DataDir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open returns the backend named by cfg.Backend.
func Open(cfg Config) (Store, error) {
	path := cfg.Path
	if path != "" && !filepath.IsAbs(path) && cfg.DataDir != "" {
		path = filepath.Join(cfg.DataDir, path)
	}
	switch cfg.Backend {
	case "", BackendJSON:
		if path == "" {
			path = filepath.Join(cfg.DataDir, "jobs.json")
		}
		return NewFileStore(path), nil
	case BackendSQLite:
		if path == "" {
			path = filepath.Join(cfg.DataDir, "jobs.db")
		}
		return OpenSQLite(path, DefaultSQLiteConfig())
	case BackendRedis:
		return OpenRedis(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case BackendBadger:
		if path == "" {
			path = filepath.Join(cfg.DataDir, "jobs.badger")
		}
		return OpenBadger(path)
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", job.ErrPersistence, cfg.Backend)
	}
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", job.ErrPersistence, op, err)
}
