// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianUML/pkg/storage/badger"
)

// BadgerStore keeps records in an embedded BadgerDB.
//
// Records live under rec/<user>/<20-digit unix nanos>/<id> so a reverse
// prefix scan yields newest first; idx/<id> points back at that key.
type BadgerStore struct {
	db *badger.DB
}

var _ DocumentStore = (*BadgerStore)(nil)

func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func userPrefix(userID string) []byte {
	return []byte("rec/" + url.PathEscape(userID) + "/")
}

func recordKey(rec Record) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", userPrefix(rec.UserID), rec.CreatedAt.UnixNano(), rec.ID))
}

func indexKey(id string) []byte {
	return []byte("idx/" + id)
}

func (s *BadgerStore) Create(ctx context.Context, rec Record) error {
	return s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		if _, err := badger.Get(txn, indexKey(rec.ID)); err == nil {
			return fmt.Errorf("record %s: %w", rec.ID, ErrDuplicate)
		}
		key := recordKey(rec)
		if err := badger.PutJSON(txn, key, rec); err != nil {
			return err
		}
		return txn.Set(indexKey(rec.ID), key)
	})
}

func (s *BadgerStore) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		key, err := badger.Get(txn, indexKey(id))
		if err != nil {
			return err
		}
		return badger.GetJSON(txn, key, &rec)
	})
	if errors.Is(err, badger.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *BadgerStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	recs := []Record{}
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		return badger.ScanPrefix(txn, userPrefix(userID), true, func(_, value []byte) error {
			var rec Record
			if err := json.Unmarshal(value, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list records for %s: %w", userID, err)
	}
	return recs, nil
}

func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	err := s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		key, err := badger.Get(txn, indexKey(id))
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(indexKey(id))
	})
	if errors.Is(err, badger.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
