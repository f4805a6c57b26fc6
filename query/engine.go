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

// Package query is the engine's entry point. It takes the compilation an
// external query-language compiler produced, validates its shape, compiles
// the predicate tree to the store's native form, applies the result window
// and dispatches. Every rejection happens before the store is touched.
package query

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
	opentracing "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"

	"github.com/ebay/treeline/meta"
	"github.com/ebay/treeline/query/ast"
	"github.com/ebay/treeline/query/compiler"
	"github.com/ebay/treeline/query/exec"
	"github.com/ebay/treeline/query/queryerror"
	"github.com/ebay/treeline/store"
	"github.com/ebay/treeline/util/clocks"
	"github.com/ebay/treeline/util/tracing"
)

// Config carries the engine's collaborators.
type Config struct {
	Meta  meta.Provider
	Store store.Client
	// Clock evaluates CURRENT_TIMESTAMP / CURRENT_DATE operands. Nil means
	// the wall clock; tests substitute a mock.
	Clock clocks.Source
}

// An Engine executes compiled object queries against one store. Safe for
// concurrent use.
type Engine struct {
	meta  meta.Provider
	store store.Client
	clock clocks.Source

	lock struct {
		sync.Mutex
		// lastQuery is the most recently compiled native scan, kept for
		// diagnostics.
		lastQuery *store.Query
	}
}

// New returns an Engine.
func New(cfg Config) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = clocks.Wall
	}
	return &Engine{meta: cfg.Meta, store: cfg.Store, clock: clock}
}

// A Request is one query to execute: the external compiler's product plus
// parameter bindings and execution surroundings.
type Request struct {
	Compilation *ast.Compilation
	Params      compiler.Params
	// FromInclusive / ToExclusive bound the result window. NewRequest leaves
	// them unset; a ToExclusive of zero means an empty window.
	FromInclusive int64
	ToExclusive   int64
	Txn           store.Txn
	Extensions    exec.Extensions
	Scope         *exec.Scope
	// Materializer converts records to result values; nil uses the
	// record-level default.
	Materializer exec.Materializer
}

// NewRequest returns a Request with an unbounded result window.
func NewRequest(comp *ast.Compilation) *Request {
	return &Request{
		Compilation: comp,
		ToExclusive: compiler.NoBound,
	}
}

// Execute runs one query: validate, compile, window, dispatch. The returned
// result either carries a count, a deleted-key count or a lazy stream;
// streams hold the store connection until exhausted or disconnected.
func (e *Engine) Execute(ctx context.Context, req *Request) (*exec.Result, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "query: execute")
	defer span.Finish()
	tracing.UpdateMetric(span, metrics.executeDurationSeconds)

	comp := req.Compilation
	if comp == nil {
		return nil, queryerror.Validationf("", "no compiled query supplied")
	}
	result, err := e.execute(ctx, req, comp)
	if err != nil {
		switch err.(type) {
		case *queryerror.StoreError:
			metrics.storeErrorsTotal.Inc()
		default:
			metrics.rejectedTotal.Inc()
		}
		return nil, err
	}
	return result, nil
}

func (e *Engine) execute(ctx context.Context, req *Request, comp *ast.Compilation) (*exec.Result, error) {
	if comp.Type == ast.BulkUpdate {
		return nil, queryerror.Validationf(comp.Text,
			"only select and delete statements are supported")
	}
	class := e.meta.ClassFor(comp.Class)
	if class == nil {
		return nil, queryerror.Validationf(comp.Text,
			"no meta-data for class %s; is the class registered?", comp.Class)
	}
	shape, projection, err := compiler.ValidateShape(comp, class)
	if err != nil {
		return nil, err
	}
	from, to := req.FromInclusive, req.ToExclusive
	if from < 0 || to < 0 {
		return nil, queryerror.Validationf(comp.Text,
			"result range bounds cannot be negative (%d, %d)", from, to)
	}
	if shape == compiler.Count && (from != 0 || to != compiler.NoBound) {
		return nil, queryerror.Validationf(comp.Text,
			"count cannot be combined with a result range")
	}
	if compiler.EmptyRange(from, to) {
		// Provably nothing to return; the store is never consulted.
		log.WithFields(log.Fields{
			"query": fingerprint(comp.Text),
			"from":  from,
			"to":    to,
		}).Debug("empty result window, short-circuiting")
		if comp.Type == ast.BulkDelete {
			return &exec.Result{Kind: exec.Deleted, Count: 0}, nil
		}
		return &exec.Result{Kind: exec.Records, Stream: exec.EmptyStream()}, nil
	}

	compiled, err := e.compile(ctx, comp, class, shape, projection, req.Params)
	if err != nil {
		return nil, err
	}
	e.setLastQuery(compiled)
	log.WithFields(log.Fields{
		"query": fingerprint(comp.Text),
		"shape": compiled.Shape,
		"batch": compiled.Batch,
		"plan":  compiled.Scan.String(),
	}).Debug("query compiled")

	return exec.Execute(ctx, exec.Spec{
		Store:        e.store,
		Compiled:     compiled,
		QueryType:    comp.Type,
		Text:         comp.Text,
		Opts:         compiler.BuildFetchOptions(from, to),
		Txn:          req.Txn,
		Extensions:   req.Extensions,
		Scope:        req.Scope,
		Materializer: req.Materializer,
	})
}

func (e *Engine) compile(ctx context.Context, comp *ast.Compilation, class *meta.Class,
	shape compiler.Shape, projection []compiler.FieldPath, params compiler.Params) (*compiler.CompiledQuery, error) {

	span, _ := opentracing.StartSpanFromContext(ctx, "query: compile")
	defer span.Finish()
	tracing.UpdateMetric(span, metrics.compileDurationSeconds)

	c := compiler.Compiler{Provider: e.meta, Clock: e.clock}
	return c.Compile(comp, class, shape, projection, params)
}

// LastQuery returns the native scan compiled by the most recent Execute, or
// nil if the last query was a batch lookup. Diagnostic only.
func (e *Engine) LastQuery() *store.Query {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.lock.lastQuery
}

func (e *Engine) setLastQuery(compiled *compiler.CompiledQuery) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if compiled.Batch {
		e.lock.lastQuery = nil
		return
	}
	e.lock.lastQuery = compiled.Scan
}

// fingerprint hashes query text so that repeated shapes correlate in logs
// without logging whole queries at high volume.
func fingerprint(text string) uint64 {
	return xxhash.Sum64String(text)
}
