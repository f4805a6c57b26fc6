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

package api

import (
	"github.com/ebay/treeline/query/compiler"
	"github.com/ebay/treeline/store"
)

// jsonMaterializer shapes results for JSON encoding: keys render in their
// portable string form instead of as opaque structs.
type jsonMaterializer struct{}

func (jsonMaterializer) Whole(rec *store.Record) (interface{}, error) {
	out := make(map[string]interface{}, len(rec.Properties)+1)
	out["__key__"] = rec.Key.Encode()
	for name, value := range rec.Properties {
		out[name] = jsonValue(value)
	}
	return out, nil
}

func (jsonMaterializer) KeyOnly(key *store.Key) (interface{}, error) {
	return key.Encode(), nil
}

func (jsonMaterializer) Projected(rec *store.Record, fields []compiler.FieldPath) (interface{}, error) {
	row := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if f.Property == store.KeyProperty {
			row[f.String()] = rec.Key.Encode()
			continue
		}
		row[f.String()] = jsonValue(rec.Properties[f.Property])
	}
	return row, nil
}

func jsonValue(v interface{}) interface{} {
	if key, ok := v.(*store.Key); ok {
		return key.Encode()
	}
	return v
}
