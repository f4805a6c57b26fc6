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
	"github.com/ebay/treeline/query/compiler"
	"github.com/ebay/treeline/store"
)

// A Materializer turns fetched records into result values. Callers with a
// domain object model supply their own; RecordMaterializer is the default and
// hands back records, keys and property maps directly.
type Materializer interface {
	Whole(rec *store.Record) (interface{}, error)
	KeyOnly(key *store.Key) (interface{}, error)
	Projected(rec *store.Record, fields []compiler.FieldPath) (interface{}, error)
}

// RecordMaterializer materializes store-level values without any object
// mapping.
type RecordMaterializer struct{}

// Whole returns the record itself.
func (RecordMaterializer) Whole(rec *store.Record) (interface{}, error) {
	return rec, nil
}

// KeyOnly returns the record's key.
func (RecordMaterializer) KeyOnly(key *store.Key) (interface{}, error) {
	return key, nil
}

// Projected returns a map of field path to property value. The primary-key
// field materializes as the record's key.
func (RecordMaterializer) Projected(rec *store.Record, fields []compiler.FieldPath) (interface{}, error) {
	row := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if f.Property == store.KeyProperty {
			row[f.String()] = rec.Key
			continue
		}
		row[f.String()] = rec.Properties[f.Property]
	}
	return row, nil
}

// transformFor binds a materializer to the query's result shape.
func transformFor(m Materializer, shape compiler.Shape,
	fields []compiler.FieldPath) func(*store.Record) (interface{}, error) {

	switch shape {
	case compiler.KeysOnly:
		return func(rec *store.Record) (interface{}, error) {
			return m.KeyOnly(rec.Key)
		}
	case compiler.FieldProjection:
		return func(rec *store.Record) (interface{}, error) {
			return m.Projected(rec, fields)
		}
	}
	return m.Whole
}
