// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ManuGH/loopcast/internal/job"
	"github.com/dgraph-io/badger/v4"
)

const badgerPrefix = "job:"

// BadgerStore keeps one key per job ("job:<id>", JSON value).
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the database directory.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, persistErr("badger open", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Load(_ context.Context) (map[string]job.Persisted, error) {
	out := map[string]job.Persisted{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(badgerPrefix), PrefetchValues: true, PrefetchSize: 64})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := strings.TrimPrefix(string(item.Key()), badgerPrefix)
			var p job.Persisted
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return err
			}
			p.ID = id
			out[id] = p
		}
		return nil
	})
	if err != nil {
		return nil, persistErr("badger load", err)
	}
	return out, nil
}

// Save deletes keys no longer in the snapshot and writes the rest in one
// transaction.
func (s *BadgerStore) Save(_ context.Context, jobs map[string]job.Persisted) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(badgerPrefix)})
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, keep := jobs[strings.TrimPrefix(string(key), badgerPrefix)]; !keep {
				stale = append(stale, key)
			}
		}
		it.Close()
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for id, p := range jobs {
			buf, err := json.Marshal(p)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(badgerPrefix+id), buf); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return persistErr("badger save", err)
	}
	return nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }
