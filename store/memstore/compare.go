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
	"bytes"
	"time"

	"github.com/ebay/treeline/store"
)

// Value type ranks. Values of different ranks never compare equal; a lower
// rank sorts first, matching how the store's indexes order mixed-type
// properties.
const (
	rankNil = iota
	rankBool
	rankNumber
	rankTime
	rankString
	rankBlob
	rankKey
	rankOther
)

func rankOf(v interface{}) int {
	switch v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	case int, int8, int16, int32, int64, float32, float64:
		return rankNumber
	case time.Time:
		return rankTime
	case string:
		return rankString
	case store.Blob, []byte:
		return rankBlob
	case *store.Key:
		return rankKey
	}
	return rankOther
}

// compareValues orders two property values: -1, 0 or 1. Numbers compare
// across integer and float representations; everything else compares within
// its own rank.
func compareValues(a, b interface{}) int {
	ra, rb := rankOf(a), rankOf(b)
	if ra != rb {
		return compareInt(int64(ra), int64(rb))
	}
	switch ra {
	case rankNil:
		return 0
	case rankBool:
		av, bv := a.(bool), b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case rankNumber:
		return compareFloat(toFloat(a), toFloat(b))
	case rankTime:
		av, bv := a.(time.Time), b.(time.Time)
		if av.Equal(bv) {
			return 0
		}
		if av.Before(bv) {
			return -1
		}
		return 1
	case rankString:
		return compareString(a.(string), b.(string))
	case rankBlob:
		return bytes.Compare(toBytes(a), toBytes(b))
	case rankKey:
		return compareString(a.(*store.Key).Encode(), b.(*store.Key).Encode())
	}
	// Unrankable values only ever compare equal to themselves.
	if a == b {
		return 0
	}
	return -1
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func toBytes(v interface{}) []byte {
	switch b := v.(type) {
	case store.Blob:
		return []byte(b)
	case []byte:
		return b
	}
	return nil
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
