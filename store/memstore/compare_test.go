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

package memstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ebay/treeline/store"
)

func Test_CompareValues(t *testing.T) {
	earlier := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)
	type tc struct {
		a, b   interface{}
		expect int
	}
	for _, c := range []tc{
		{nil, nil, 0},
		{int64(1), int64(2), -1},
		{int64(2), int64(2), 0},
		{int64(3), int64(2), 1},
		// Numbers compare across representations.
		{int64(2), float64(2.0), 0},
		{int(1), float64(1.5), -1},
		{float32(3), int64(2), 1},
		{"a", "b", -1},
		{"b", "b", 0},
		{false, true, -1},
		{true, true, 0},
		{earlier, later, -1},
		{later, later, 0},
		{store.Blob{1}, store.Blob{2}, -1},
		{store.Blob{1}, []byte{1}, 0},
		{
			store.NewKey("C", "a", nil),
			store.NewKey("C", "b", nil),
			-1,
		},
		{
			store.NewKey("C", "a", nil),
			store.NewKey("C", "a", nil),
			0,
		},
		// Mixed ranks never compare equal; lower ranks sort first.
		{nil, false, -1},
		{true, int64(0), -1},
		{int64(5), "5", -1},
		{"z", store.Blob{0}, -1},
		{store.Blob{0xff}, store.NewKey("C", "a", nil), -1},
	} {
		assert.Equal(t, c.expect, compareValues(c.a, c.b), "compare %v %v", c.a, c.b)
	}
}

func Test_CompareValuesIsAntisymmetric(t *testing.T) {
	values := []interface{}{
		nil, false, int64(1), float64(2.5), "a",
		store.Blob{1}, store.NewKey("C", "a", nil),
	}
	for _, a := range values {
		for _, b := range values {
			assert.Equal(t, compareValues(a, b), -compareValues(b, a),
				"compare %v %v", a, b)
		}
	}
}
