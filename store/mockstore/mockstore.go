// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mockstore provides a scripted store.Client for unit tests. It
// records every call so tests can assert that rejected queries never touch
// the store, and its scan iterator counts pulls so tests can assert that
// results stream lazily.
package mockstore

import (
	"context"
	"sync"

	"github.com/ebay/treeline/store"
)

// A Call records one Client method invocation.
type Call struct {
	// Method is "Scan", "Count", "Get" or "Delete".
	Method string
	// Query is the String form of the scan or count query.
	Query string
	Keys  []*store.Key
	Opts  *store.FetchOptions
	// TxnID is the transaction the call ran under, "" for none.
	TxnID string
}

// Store is a scripted store.Client. Configure the exported fields before use;
// safe for concurrent use afterwards.
type Store struct {
	// ScanRecords are handed out by scan iterators, one per pull.
	ScanRecords []*store.Record
	// ScanErr, when set, fails the Scan call itself.
	ScanErr error
	// PullErr, when set, fails the iterator pull whose zero-based index is
	// PullErrAt.
	PullErr   error
	PullErrAt int

	CountResult int
	CountErr    error

	// GetRecords is the Get result, keyed by encoded key.
	GetRecords map[string]*store.Record
	GetErr     error

	DeleteErr error

	mu    sync.Mutex
	calls []Call
	pulls int
}

var _ store.Client = (*Store)(nil)

// Calls returns a copy of the recorded calls, in order.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns how many Client calls the store has seen.
func (s *Store) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Pulls returns how many iterator pulls have reached the store.
func (s *Store) Pulls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulls
}

func (s *Store) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

func txnID(txn store.Txn) string {
	if txn == nil {
		return ""
	}
	return txn.TxnID()
}

// Scan implements store.Client.
func (s *Store) Scan(_ context.Context, q *store.Query, opts *store.FetchOptions, txn store.Txn) (store.Iterator, error) {
	s.record(Call{Method: "Scan", Query: q.String(), Opts: opts, TxnID: txnID(txn)})
	if s.ScanErr != nil {
		return nil, s.ScanErr
	}
	return &scriptedIterator{store: s, recs: s.ScanRecords}, nil
}

// Count implements store.Client.
func (s *Store) Count(_ context.Context, q *store.Query, txn store.Txn) (int, error) {
	s.record(Call{Method: "Count", Query: q.String(), TxnID: txnID(txn)})
	if s.CountErr != nil {
		return 0, s.CountErr
	}
	return s.CountResult, nil
}

// Get implements store.Client.
func (s *Store) Get(_ context.Context, keys []*store.Key, txn store.Txn) (map[string]*store.Record, error) {
	s.record(Call{Method: "Get", Keys: keys, TxnID: txnID(txn)})
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	found := make(map[string]*store.Record, len(keys))
	for _, key := range keys {
		if rec, ok := s.GetRecords[key.Encode()]; ok {
			found[key.Encode()] = rec
		}
	}
	return found, nil
}

// Delete implements store.Client.
func (s *Store) Delete(_ context.Context, keys []*store.Key, txn store.Txn) error {
	s.record(Call{Method: "Delete", Keys: keys, TxnID: txnID(txn)})
	return s.DeleteErr
}

// Txn returns a transaction handle with the given id.
func Txn(id string) store.Txn {
	return fakeTxn(id)
}

type fakeTxn string

func (t fakeTxn) TxnID() string { return string(t) }

// scriptedIterator hands out the store's scripted records one pull at a time,
// counting each pull.
type scriptedIterator struct {
	store  *Store
	recs   []*store.Record
	offset int
	closed bool
}

func (it *scriptedIterator) Next() (*store.Record, error) {
	it.store.mu.Lock()
	it.store.pulls++
	pull := it.store.pulls - 1
	it.store.mu.Unlock()
	if it.store.PullErr != nil && pull >= it.store.PullErrAt {
		return nil, it.store.PullErr
	}
	if it.offset >= len(it.recs) {
		return nil, nil
	}
	rec := it.recs[it.offset]
	it.offset++
	return rec, nil
}

func (it *scriptedIterator) Close() error {
	it.closed = true
	return nil
}
