// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package boundary persists the install boundary: the timestamp of the first
// launch on this install. Remote history older than the boundary is never
// imported, which keeps pre-install listening out of the ledger.
package boundary

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/soundtally/soundtally/internal/logging"
)

const boundaryKey = "install:boundary"

// Store is a small BadgerDB-backed key-value store holding install-scoped
// metadata. It lives outside the ledger database so a ledger reset does not
// move the boundary.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the boundary store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Badger's own logger is too chatty for a tiny metadata store

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open boundary store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral store. Used by tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory boundary store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetOrInit returns the install boundary, recording now as the boundary if
// none exists yet. The boundary is set exactly once per install.
func (s *Store) GetOrInit(now time.Time) (time.Time, error) {
	existing, err := s.get()
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return time.Time{}, fmt.Errorf("read install boundary: %w", err)
	}

	boundary := now.UTC()
	err = s.db.Update(func(txn *badger.Txn) error {
		// Another writer may have won the race between our read and this
		// transaction; keep the stored value in that case.
		if _, err := txn.Get([]byte(boundaryKey)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set([]byte(boundaryKey), []byte(boundary.Format(time.RFC3339Nano)))
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("write install boundary: %w", err)
	}

	stored, err := s.get()
	if err != nil {
		return time.Time{}, fmt.Errorf("read install boundary after init: %w", err)
	}
	if stored.Equal(boundary) {
		logging.Info().Time("boundary", stored).Msg("install boundary recorded")
	}
	return stored, nil
}

func (s *Store) get() (time.Time, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(boundaryKey))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return time.Time{}, err
	}

	boundary, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored boundary %q: %w", raw, err)
	}
	return boundary, nil
}
