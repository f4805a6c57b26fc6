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

package exec

import (
	"context"
	"errors"

	"github.com/ebay/treeline/query/queryerror"
	"github.com/ebay/treeline/store"
)

// ErrDisconnected is returned by stream reads that would need the store after
// the stream has been disconnected. Elements materialized before the
// disconnect remain readable.
var ErrDisconnected = errors.New("query result has been disconnected from the store")

// A StreamingResult is a lazy, forward-only view over a scan's results.
// Records are pulled from the store one at a time as the caller advances;
// nothing is fetched ahead. Before every pull the stream checks its
// disconnect flag and its context, so a flushed scope or a cancelled context
// stops store traffic at the next element boundary.
//
// Not safe for concurrent use.
type StreamingResult struct {
	ctx          context.Context
	iter         store.Iterator
	transform    func(*store.Record) (interface{}, error)
	loaded       []interface{}
	cursor       int
	exhausted    bool
	disconnected bool
}

func newStreamingResult(ctx context.Context, iter store.Iterator,
	transform func(*store.Record) (interface{}, error), scope *Scope) *StreamingResult {

	r := &StreamingResult{ctx: ctx, iter: iter, transform: transform}
	if scope != nil {
		scope.OnFlush(r.Disconnect)
	}
	return r
}

// EmptyStream returns an exhausted stream with no store attachment, used when
// a query provably has no results.
func EmptyStream() *StreamingResult {
	return &StreamingResult{ctx: context.Background(), exhausted: true}
}

// Next returns the next element, pulling from the store when the loaded
// prefix is spent. ok is false once the stream is exhausted.
func (r *StreamingResult) Next() (value interface{}, ok bool, err error) {
	if r.cursor < len(r.loaded) {
		v := r.loaded[r.cursor]
		r.cursor++
		return v, true, nil
	}
	if err := r.pull(); err != nil {
		return nil, false, err
	}
	if r.cursor >= len(r.loaded) {
		return nil, false, nil
	}
	v := r.loaded[r.cursor]
	r.cursor++
	return v, true, nil
}

// Get returns the i'th element, pulling from the store until it is loaded.
// ok is false when the stream ends before reaching i.
func (r *StreamingResult) Get(i int) (value interface{}, ok bool, err error) {
	for i >= len(r.loaded) {
		if r.exhausted {
			return nil, false, nil
		}
		if err := r.pull(); err != nil {
			return nil, false, err
		}
		if r.exhausted && i >= len(r.loaded) {
			return nil, false, nil
		}
	}
	return r.loaded[i], true, nil
}

// Size forces consumption of the remaining elements and returns the total.
func (r *StreamingResult) Size() (int, error) {
	for !r.exhausted {
		if err := r.pull(); err != nil {
			return 0, err
		}
	}
	return len(r.loaded), nil
}

// Loaded returns the elements materialized so far. It never touches the
// store, so it stays usable after a disconnect.
func (r *StreamingResult) Loaded() []interface{} {
	return r.loaded
}

// Disconnect permanently cuts the stream off from the store. Reads that can
// be served from already-loaded elements keep working; anything needing a
// pull returns ErrDisconnected.
func (r *StreamingResult) Disconnect() {
	if r.disconnected {
		return
	}
	r.disconnected = true
	if r.iter != nil {
		r.iter.Close()
	}
}

// pull materializes one more element, or marks the stream exhausted.
func (r *StreamingResult) pull() error {
	if r.exhausted {
		return nil
	}
	if r.disconnected {
		return ErrDisconnected
	}
	if err := r.ctx.Err(); err != nil {
		r.Disconnect()
		return ErrDisconnected
	}
	rec, err := r.iter.Next()
	if err != nil {
		return &queryerror.StoreError{Err: err}
	}
	if rec == nil {
		r.exhausted = true
		r.iter.Close()
		return nil
	}
	value, err := r.transform(rec)
	if err != nil {
		return err
	}
	r.loaded = append(r.loaded, value)
	return nil
}

// fetchedIterator adapts an already-fetched record list (a batch lookup
// result) to the store.Iterator shape so that batch and scan results stream
// the same way.
type fetchedIterator struct {
	recs []*store.Record
}

func (it *fetchedIterator) Next() (*store.Record, error) {
	if len(it.recs) == 0 {
		return nil, nil
	}
	rec := it.recs[0]
	it.recs = it.recs[1:]
	return rec, nil
}

func (it *fetchedIterator) Close() error { return nil }
