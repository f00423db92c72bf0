// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/eolblocker/services/eol"
)

// keyPrefix namespaces verdict keys; the value is a single byte.
const keyPrefix = "verdict/v1/"

const (
	valueClean byte = '0'
	valueCRLF  byte = '1'
)

// VerdictStore is a BadgerDB-backed eol.VerdictCache.
//
// Thread Safety: Safe for concurrent use.
type VerdictStore struct {
	db  *badger.DB
	ttl time.Duration
	gc  *gcRunner

	closeOnce sync.Once
	closeErr  error
}

var _ eol.VerdictCache = (*VerdictStore)(nil)

// Open opens the verdict store described by cfg.
//
// Description:
//
//	Opens (or creates) the BadgerDB at cfg.Dir, or an in-memory database
//	when cfg.InMemory is set, and starts value log GC for on-disk stores.
//
// Inputs:
//
//	cfg - Store configuration. Dir is required unless InMemory is true.
//
// Outputs:
//
//	*VerdictStore - Caller must Close it
//	error - ErrInvalidConfig or an open failure
func Open(cfg Config) (*VerdictStore, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	s := &VerdictStore{db: db, ttl: cfg.TTL}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = startGC(db, cfg.GCInterval, cfg.Logger)
	}
	return s, nil
}

func verdictKey(sha string) []byte {
	return []byte(keyPrefix + sha)
}

// Lookup returns the stored verdict for the blob sha.
func (s *VerdictStore) Lookup(ctx context.Context, sha string) (crlf bool, found bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, false, err
	}
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(verdictKey(sha))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 1 || (val[0] != valueClean && val[0] != valueCRLF) {
				return fmt.Errorf("corrupt verdict for %s", sha)
			}
			crlf = val[0] == valueCRLF
			found = true
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("lookup verdict: %w", err)
	}
	return crlf, found, nil
}

// Store records the verdict for the blob sha.
func (s *VerdictStore) Store(ctx context.Context, sha string, crlf bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val := valueClean
	if crlf {
		val = valueCRLF
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(verdictKey(sha), []byte{val})
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("store verdict: %w", err)
	}
	return nil
}

// Close stops GC and closes the database. Safe to call more than once.
func (s *VerdictStore) Close() error {
	s.closeOnce.Do(func() {
		if s.gc != nil {
			s.gc.stop()
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
