// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ManuGH/loopcast/internal/fsutil"
	"github.com/ManuGH/loopcast/internal/job"
)

// FileStore keeps the snapshot in one pretty-printed JSON object keyed by id.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Load returns an empty map when the file does not exist yet.
func (s *FileStore) Load(_ context.Context) (map[string]job.Persisted, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]job.Persisted{}, nil
	}
	if err != nil {
		return nil, persistErr("read "+s.path, err)
	}
	out := map[string]job.Persisted{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, persistErr("decode "+s.path, err)
	}
	for id, p := range out {
		if p.ID == "" {
			p.ID = id
			out[id] = p
		}
	}
	return out, nil
}

func (s *FileStore) Save(ctx context.Context, jobs map[string]job.Persisted) error {
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return persistErr("encode", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return persistErr("mkdir", err)
	}
	if _, err := fsutil.WriteAtomic(ctx, s.path, bytes.NewReader(data), 0o640); err != nil {
		return persistErr("write "+s.path, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
