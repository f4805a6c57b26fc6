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

package compiler

import (
	"math"

	"github.com/ebay/treeline/store"
)

// NoBound marks an unset range bound in an execute request's
// (fromInclusive, toExclusive) window.
const NoBound int64 = math.MaxInt64

func boundSet(v int64) bool {
	return v != NoBound
}

// EmptyRange reports whether the requested window can't contain any results,
// in which case the query short-circuits to an empty result with no store
// call at all.
func EmptyRange(fromInclusive, toExclusive int64) bool {
	return toExclusive == 0 ||
		(boundSet(toExclusive) && boundSet(fromInclusive) && toExclusive-fromInclusive <= 0)
}

// BuildFetchOptions converts the caller's (fromInclusive, toExclusive) window
// into the store's offset+limit form, or nil when neither bound is set.
func BuildFetchOptions(fromInclusive, toExclusive int64) *store.FetchOptions {
	var opts *store.FetchOptions
	var offset int
	if fromInclusive != 0 && boundSet(fromInclusive) {
		offset = clampToInt(fromInclusive)
		opts = store.WithOffset(offset)
	}
	if boundSet(toExclusive) {
		exclusive := clampToInt(toExclusive)
		if opts == nil {
			// With no offset, the index of the last result and the limit are
			// the same thing.
			opts = store.WithLimit(exclusive)
		} else {
			// toExclusive is the index of the last result, not a result
			// count: for (10, 25) the limit is 15, fifteen results starting
			// after the first ten.
			opts.SetLimit(exclusive - offset)
		}
	}
	return opts
}

func clampToInt(v int64) int {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}
