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

// Package exec dispatches compiled queries against a store client and streams
// the results back lazily. It owns the batch-versus-scan split, transaction
// participation rules and delete fulfillment; all query validation happened
// before a Spec reaches this package.
package exec

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/ebay/treeline/query/ast"
	"github.com/ebay/treeline/query/compiler"
	"github.com/ebay/treeline/query/queryerror"
	"github.com/ebay/treeline/store"
)

// Extensions are per-query execution switches.
type Extensions struct {
	// ExcludeFromTxn opts an ancestor scan out of the caller's transaction.
	ExcludeFromTxn bool
	// AccurateDelete makes a batch delete fetch first and submit only keys
	// that still exist.
	AccurateDelete bool
}

// A Spec is everything Execute needs: the compiled query, the store to run it
// against and the execution surroundings.
type Spec struct {
	Store     store.Client
	Compiled  *compiler.CompiledQuery
	QueryType ast.QueryType
	// Text is the original query text, carried into errors.
	Text string
	// Opts is the offset/limit window, nil for none.
	Opts       *store.FetchOptions
	Txn        store.Txn
	Extensions Extensions
	Scope      *Scope
	// Materializer converts records to result values; nil means
	// RecordMaterializer.
	Materializer Materializer
}

// ResultKind says which Result field carries the answer.
type ResultKind int

// Result kinds.
const (
	// Records means Stream carries the materialized matches.
	Records ResultKind = iota + 1
	// Counted means Count carries a match count.
	Counted
	// Deleted means Count carries the number of keys submitted for deletion.
	Deleted
)

// A Result is the outcome of one dispatch.
type Result struct {
	Kind   ResultKind
	Stream *StreamingResult
	Count  int
}

// Execute runs a compiled query. Batch lookups fetch their keys directly;
// scans go through the store's query path. Ancestor scans run inside the
// caller's transaction unless the query opts out; batch operations always
// use the caller's transaction.
func Execute(ctx context.Context, spec Spec) (*Result, error) {
	if spec.Materializer == nil {
		spec.Materializer = RecordMaterializer{}
	}
	if spec.Compiled.Batch {
		return executeBatch(ctx, spec)
	}
	return executeScan(ctx, spec)
}

func executeBatch(ctx context.Context, spec Spec) (*Result, error) {
	keys := spec.Compiled.BatchKeys
	log.WithFields(log.Fields{
		"kind": spec.Compiled.Kind,
		"keys": len(keys),
		"type": spec.QueryType,
	}).Debug("dispatching batch lookup")

	if spec.QueryType == ast.BulkDelete {
		return batchDelete(ctx, spec, keys)
	}
	if len(keys) == 0 {
		if spec.Compiled.Shape == compiler.Count {
			return &Result{Kind: Counted, Count: 0}, nil
		}
		return emptyResult(ctx, spec), nil
	}
	found, err := spec.Store.Get(ctx, keys, spec.Txn)
	if err != nil {
		return nil, &queryerror.StoreError{Err: err}
	}
	if spec.Compiled.Shape == compiler.Count {
		return &Result{Kind: Counted, Count: len(found)}, nil
	}
	// Results stream in the order the keys were given; missing keys are
	// skipped.
	recs := make([]*store.Record, 0, len(found))
	for _, key := range keys {
		if rec, ok := found[key.Encode()]; ok {
			recs = append(recs, rec)
		}
	}
	return streamResult(ctx, spec, &fetchedIterator{recs: recs}), nil
}

func batchDelete(ctx context.Context, spec Spec, keys []*store.Key) (*Result, error) {
	if spec.Extensions.AccurateDelete && len(keys) > 0 {
		found, err := spec.Store.Get(ctx, keys, spec.Txn)
		if err != nil {
			return nil, &queryerror.StoreError{Err: err}
		}
		present := make([]*store.Key, 0, len(found))
		for _, key := range keys {
			if _, ok := found[key.Encode()]; ok {
				present = append(present, key)
			}
		}
		keys = present
	}
	if len(keys) > 0 {
		if err := spec.Store.Delete(ctx, keys, spec.Txn); err != nil {
			return nil, &queryerror.StoreError{Err: err}
		}
	}
	return &Result{Kind: Deleted, Count: len(keys)}, nil
}

func executeScan(ctx context.Context, spec Spec) (*Result, error) {
	q := *spec.Compiled.Scan
	if spec.Compiled.Shape == compiler.KeysOnly || spec.QueryType == ast.BulkDelete {
		q.KeysOnly = true
	}
	txn := scanTxn(spec, &q)
	log.WithFields(log.Fields{
		"query": q.String(),
		"inTxn": txn != nil,
		"type":  spec.QueryType,
	}).Debug("dispatching scan")

	if spec.Compiled.Shape == compiler.Count {
		if spec.Opts != nil {
			return nil, queryerror.Validationf(spec.Text,
				"the store cannot count a windowed scan; drop the range or the count")
		}
		n, err := spec.Store.Count(ctx, &q, txn)
		if err != nil {
			return nil, &queryerror.StoreError{Err: err}
		}
		return &Result{Kind: Counted, Count: n}, nil
	}
	iter, err := spec.Store.Scan(ctx, &q, spec.Opts, txn)
	if err != nil {
		return nil, &queryerror.StoreError{Err: err}
	}
	if spec.QueryType == ast.BulkDelete {
		return scanDelete(ctx, spec, iter, txn)
	}
	return streamResult(ctx, spec, iter), nil
}

// scanTxn decides transaction participation for a scan. Only ancestor scans
// can run transactionally.
func scanTxn(spec Spec, q *store.Query) store.Txn {
	if q.Ancestor != nil && !spec.Extensions.ExcludeFromTxn {
		return spec.Txn
	}
	return nil
}

func scanDelete(ctx context.Context, spec Spec, iter store.Iterator, txn store.Txn) (*Result, error) {
	defer iter.Close()
	var keys []*store.Key
	for {
		rec, err := iter.Next()
		if err != nil {
			return nil, &queryerror.StoreError{Err: err}
		}
		if rec == nil {
			break
		}
		keys = append(keys, rec.Key)
	}
	if len(keys) > 0 {
		if err := spec.Store.Delete(ctx, keys, spec.Txn); err != nil {
			return nil, &queryerror.StoreError{Err: err}
		}
	}
	return &Result{Kind: Deleted, Count: len(keys)}, nil
}

// streamResult wraps an iterator as a Records result bound to the caller's
// materializer and scope.
func streamResult(ctx context.Context, spec Spec, iter store.Iterator) *Result {
	return &Result{
		Kind:   Records,
		Stream: newStreamingResult(ctx, iter, transformFor(spec.Materializer, spec.Compiled.Shape, spec.Compiled.Projection), spec.Scope),
	}
}

// emptyResult builds a Records result with nothing in it and no store
// attachment, used when there is provably nothing to fetch.
func emptyResult(ctx context.Context, spec Spec) *Result {
	return streamResult(ctx, spec, &fetchedIterator{})
}
