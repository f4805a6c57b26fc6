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

package store

import (
	"context"
	"fmt"
	"strings"
)

// A Blob wraps a short byte payload stored as a property value. Raw byte
// slices are wrapped in a Blob before being handed to the store so that
// []byte never appears as a bare property value.
type Blob []byte

// A Record is one stored object instance: a key plus a flat bag of
// properties. Embedded values are flattened into properties of the owning
// record.
type Record struct {
	Key        *Key
	Properties map[string]interface{}
}

// Clone returns a deep-enough copy of the record: the property map is copied,
// property values are shared.
func (r *Record) Clone() *Record {
	props := make(map[string]interface{}, len(r.Properties))
	for k, v := range r.Properties {
		props[k] = v
	}
	return &Record{Key: r.Key, Properties: props}
}

// Operator is a native filter operator. The store executes exactly these
// five; everything else is the compiler's problem.
type Operator int

// The operators the store can execute.
const (
	Equal Operator = iota + 1
	GreaterThan
	GreaterOrEqual
	LessThan
	LessOrEqual
)

func (op Operator) String() string {
	switch op {
	case Equal:
		return "="
	case GreaterThan:
		return ">"
	case GreaterOrEqual:
		return ">="
	case LessThan:
		return "<"
	case LessOrEqual:
		return "<="
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// A Filter is a (property, operator, value) triple executable directly by the
// store. Multiple filters on a query are implicitly ANDed.
type Filter struct {
	Property string
	Op       Operator
	Value    interface{}
}

func (f Filter) String() string {
	return fmt.Sprintf("%s %s %v", f.Property, f.Op, f.Value)
}

// Direction orders a sort clause.
type Direction int

// Sort directions.
const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// A Sort is one clause of a query's composite sort order.
type Sort struct {
	Property  string
	Direction Direction
}

func (s Sort) String() string {
	return s.Property + " " + s.Direction.String()
}

// A Query is the native query form: a kind scan narrowed by filters, an
// optional ancestor constraint and an ordered list of sort clauses. There is
// no disjunction, no join and no grouping; the compiler guarantees it never
// hands the store anything of the sort.
type Query struct {
	Kind     string
	Ancestor *Key
	Filters  []Filter
	Sorts    []Sort
	KeysOnly bool
}

func (q *Query) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SCAN %s", q.Kind)
	if q.Ancestor != nil {
		fmt.Fprintf(&b, " ANCESTOR %s", q.Ancestor)
	}
	for i, f := range q.Filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(f.String())
	}
	for i, s := range q.Sorts {
		if i == 0 {
			b.WriteString(" ORDER ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(s.String())
	}
	if q.KeysOnly {
		b.WriteString(" KEYSONLY")
	}
	return b.String()
}

// FetchOptions carries the offset/limit window of a scan. A nil *FetchOptions
// means no window at all; a nil field means that half is unset.
type FetchOptions struct {
	Offset *int
	Limit  *int
}

// WithOffset returns FetchOptions carrying only an offset.
func WithOffset(offset int) *FetchOptions {
	return &FetchOptions{Offset: &offset}
}

// WithLimit returns FetchOptions carrying only a limit.
func WithLimit(limit int) *FetchOptions {
	return &FetchOptions{Limit: &limit}
}

// SetLimit sets the limit on an existing FetchOptions and returns it.
func (o *FetchOptions) SetLimit(limit int) *FetchOptions {
	o.Limit = &limit
	return o
}

// Keyed is implemented by domain objects that know their own record key.
// The query compiler accepts such objects anywhere a key-valued parameter is
// expected.
type Keyed interface {
	RecordKey() *Key
}

// A Txn is an opaque handle to a store transaction. Transaction demarcation
// happens outside this module; a Txn obtained from a store client is only
// ever passed back through that client.
type Txn interface {
	TxnID() string
}

// An Iterator is a lazy, forward-only sequence of records produced by a scan.
// Each Next call may block on the store; nothing is prefetched beyond the
// client's own buffering.
type Iterator interface {
	// Next returns the next record, or (nil, nil) once the scan is
	// exhausted.
	Next() (*Record, error)
	// Close releases any resources held by the iterator. It is safe to call
	// more than once.
	Close() error
}

// Client is the interface store implementations expose to the query engine.
// All calls are synchronous and potentially blocking.
type Client interface {
	// Scan runs the query and returns a lazy record sequence. The window in
	// opts is applied after filters and sorts. A nil txn scans outside any
	// transaction.
	Scan(ctx context.Context, q *Query, opts *FetchOptions, txn Txn) (Iterator, error)
	// Count returns the number of records the query matches. The store
	// cannot count a windowed scan; callers must not combine Count with
	// fetch options.
	Count(ctx context.Context, q *Query, txn Txn) (int, error)
	// Get fetches the given keys, returning found records keyed by their
	// encoded key. Missing keys are simply absent from the result.
	Get(ctx context.Context, keys []*Key, txn Txn) (map[string]*Record, error)
	// Delete removes the given keys. Keys that don't exist are ignored.
	Delete(ctx context.Context, keys []*Key, txn Txn) error
}
