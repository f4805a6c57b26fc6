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

// Package memstore is an in-memory store.Client. Records live in a btree
// ordered by encoded key, which keeps each entity group contiguous and makes
// ancestor scans a range walk. It exists for the CLI, the HTTP API's demo
// mode and tests; it tracks transactions but does not isolate them.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/btree"
	log "github.com/sirupsen/logrus"

	"github.com/ebay/treeline/store"
)

// Store is an in-memory store.Client. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	table  *btree.BTree
	txnSeq int64
}

// item is one btree entry, ordered by encoded key.
type item struct {
	key string
	rec *store.Record
}

func (it item) Less(other btree.Item) bool {
	return it.key < other.(item).key
}

// New returns an empty Store.
func New() *Store {
	return &Store{table: btree.New(16)}
}

// Put inserts or replaces one record.
func (s *Store) Put(rec *store.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table.ReplaceOrInsert(item{key: rec.Key.Encode(), rec: rec.Clone()})
}

// PutMulti inserts or replaces records.
func (s *Store) PutMulti(recs []*store.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.table.ReplaceOrInsert(item{key: rec.Key.Encode(), rec: rec.Clone()})
	}
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Len()
}

// txn is the Store's transaction handle. It exists so that transactional call
// paths can be exercised; there is no isolation behind it.
type txn struct {
	id string
}

func (t *txn) TxnID() string { return t.id }

// Begin returns a new transaction handle.
func (s *Store) Begin() store.Txn {
	s.mu.Lock()
	s.txnSeq++
	id := s.txnSeq
	s.mu.Unlock()
	return &txn{id: "mem-" + strconv.FormatInt(id, 10)}
}

// Scan implements store.Client.
func (s *Store) Scan(ctx context.Context, q *store.Query, opts *store.FetchOptions, _ store.Txn) (store.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matched := s.match(q)
	sortRecords(matched, q.Sorts)
	matched = window(matched, opts)
	if q.KeysOnly {
		for i, rec := range matched {
			matched[i] = &store.Record{Key: rec.Key}
		}
	}
	log.WithFields(log.Fields{
		"query":   q.String(),
		"matched": len(matched),
	}).Debug("memstore scan")
	return &sliceIterator{recs: matched}, nil
}

// Count implements store.Client.
func (s *Store) Count(ctx context.Context, q *store.Query, _ store.Txn) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(s.match(q)), nil
}

// Get implements store.Client.
func (s *Store) Get(ctx context.Context, keys []*store.Key, _ store.Txn) (map[string]*store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := make(map[string]*store.Record, len(keys))
	for _, key := range keys {
		if got := s.table.Get(item{key: key.Encode()}); got != nil {
			rec := got.(item).rec
			found[key.Encode()] = rec.Clone()
		}
	}
	return found, nil
}

// Delete implements store.Client.
func (s *Store) Delete(ctx context.Context, keys []*store.Key, _ store.Txn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.table.Delete(item{key: key.Encode()})
	}
	return nil
}

// match collects clones of the records the query's kind, ancestor and filters
// select, in key order.
func (s *Store) match(q *store.Query) []*store.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*store.Record
	s.table.Ascend(func(i btree.Item) bool {
		rec := i.(item).rec
		if rec.Key.Kind() != q.Kind {
			return true
		}
		if q.Ancestor != nil && !rec.Key.HasAncestor(q.Ancestor) {
			return true
		}
		for _, f := range q.Filters {
			if !matches(rec, f) {
				return true
			}
		}
		matched = append(matched, rec.Clone())
		return true
	})
	return matched
}

// matches applies one filter. A record lacking the filtered property never
// matches, mirroring an index-backed store: unindexed records are invisible
// to the filter.
func matches(rec *store.Record, f store.Filter) bool {
	var value interface{}
	if f.Property == store.KeyProperty {
		value = rec.Key
	} else {
		var ok bool
		value, ok = rec.Properties[f.Property]
		if !ok {
			return false
		}
	}
	cmp := compareValues(value, f.Value)
	switch f.Op {
	case store.Equal:
		return cmp == 0
	case store.GreaterThan:
		return cmp > 0
	case store.GreaterOrEqual:
		return cmp >= 0
	case store.LessThan:
		return cmp < 0
	case store.LessOrEqual:
		return cmp <= 0
	}
	panic(fmt.Sprintf("memstore: unknown operator %v", f.Op))
}

// sortRecords applies the composite sort, falling back to key order so scans
// stay deterministic.
func sortRecords(recs []*store.Record, sorts []store.Sort) {
	if len(sorts) == 0 {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		for _, s := range sorts {
			cmp := compareValues(sortValue(a, s.Property), sortValue(b, s.Property))
			if cmp == 0 {
				continue
			}
			if s.Direction == store.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return a.Key.Encode() < b.Key.Encode()
	})
}

func sortValue(rec *store.Record, property string) interface{} {
	if property == store.KeyProperty {
		return rec.Key
	}
	return rec.Properties[property]
}

// window applies the offset/limit window.
func window(recs []*store.Record, opts *store.FetchOptions) []*store.Record {
	if opts == nil {
		return recs
	}
	if opts.Offset != nil && *opts.Offset > 0 {
		if *opts.Offset >= len(recs) {
			return nil
		}
		recs = recs[*opts.Offset:]
	}
	if opts.Limit != nil && *opts.Limit >= 0 && *opts.Limit < len(recs) {
		recs = recs[:*opts.Limit]
	}
	return recs
}

type sliceIterator struct {
	recs []*store.Record
}

func (it *sliceIterator) Next() (*store.Record, error) {
	if len(it.recs) == 0 {
		return nil, nil
	}
	rec := it.recs[0]
	it.recs = it.recs[1:]
	return rec, nil
}

func (it *sliceIterator) Close() error { return nil }
