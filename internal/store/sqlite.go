// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/loopcast/internal/job"
	_ "modernc.org/sqlite" // Pure Go driver
)

// SQLiteConfig defines SQLite operational parameters.
type SQLiteConfig struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultSQLiteConfig returns the recommended configuration.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
	}
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps one row per job with the persisted record as JSON.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the database at path. WAL mode and
// busy_timeout are set through the DSN so they apply to every pooled
// connection.
func OpenSQLite(path string, cfg SQLiteConfig) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, persistErr("mkdir", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, persistErr("sqlite open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, persistErr("sqlite ping", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, persistErr("sqlite migrate", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (map[string]job.Persisted, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM jobs`)
	if err != nil {
		return nil, persistErr("sqlite query", err)
	}
	defer func() { _ = rows.Close() }()

	out := map[string]job.Persisted{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, persistErr("sqlite scan", err)
		}
		var p job.Persisted
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, persistErr("decode job "+id, err)
		}
		p.ID = id
		out[id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("sqlite rows", err)
	}
	return out, nil
}

// Save replaces the table contents in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, jobs map[string]job.Persisted) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("sqlite begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs`); err != nil {
		return persistErr("sqlite delete", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO jobs (id, data, updated_at) VALUES (?, ?, ?)`)
	if err != nil {
		return persistErr("sqlite prepare", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UnixMilli()
	for id, p := range jobs {
		data, err := json.Marshal(p)
		if err != nil {
			return persistErr("encode job "+id, err)
		}
		if _, err := stmt.ExecContext(ctx, id, string(data), now); err != nil {
			return persistErr("sqlite insert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return persistErr("sqlite commit", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
