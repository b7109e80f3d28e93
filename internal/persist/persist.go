// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

// Package persist stores snapshots of the normalized cache in BadgerDB so
// the dashboard renders immediately after a restart instead of waiting for
// a full bootstrap.
package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/Oxedos/devops-dashboard-sub000/internal/logging"
	"github.com/Oxedos/devops-dashboard-sub000/internal/store"
)

// defaultKey is the key the snapshot lives under when none is configured.
// Each save replaces the previous snapshot wholesale.
const defaultKey = "snapshot:store"

// Store is a BadgerDB-backed snapshot store.
type Store struct {
	db  *badger.DB
	key []byte
}

// Open opens (or creates) the snapshot database at path. An empty path
// opens an in-memory database, useful in tests. An empty key selects the
// default snapshot key.
func Open(path, key string) (*Store, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	if key == "" {
		key = defaultKey
	}
	return &Store{db: db, key: []byte(key)}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the persisted snapshot.
func (s *Store) Save(ctx context.Context, snap store.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key, data)
	})
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	logging.Debug().Int("bytes", len(data)).Msg("Snapshot persisted")
	return nil
}

// Load returns the persisted snapshot. ok is false when none exists yet.
// A snapshot that no longer unmarshals is discarded rather than returned;
// the bootstrap rebuilds the cache either way.
func (s *Store) Load(ctx context.Context) (snap store.Snapshot, ok bool, err error) {
	var data []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, gerr := txn.Get(s.key)
		if gerr != nil {
			return gerr
		}
		data, gerr = item.ValueCopy(nil)
		return gerr
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.Snapshot{}, false, nil
	}
	if err != nil {
		return store.Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	if uerr := json.Unmarshal(data, &snap); uerr != nil {
		logging.Warn().Err(uerr).Msg("Discarding unreadable snapshot")
		return store.Snapshot{}, false, nil
	}
	return snap, true, nil
}
