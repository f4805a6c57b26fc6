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
	"github.com/ebay/treeline/query/ast"
	"github.com/ebay/treeline/store"
)

// nativeOps maps tree operators onto the five operators the store executes.
// OpNotEqual is present only because "!= null" is expressible as "> null";
// every other use of not-equal is rejected in the comparison compiler.
var nativeOps = map[ast.Op]store.Operator{
	ast.OpEqual:          store.Equal,
	ast.OpGreater:        store.GreaterThan,
	ast.OpGreaterOrEqual: store.GreaterOrEqual,
	ast.OpLess:           store.LessThan,
	ast.OpLessOrEqual:    store.LessOrEqual,
	ast.OpNotEqual:       store.GreaterThan,
}

// unsupportedOps are statically rejected wherever they appear, before any
// surrounding structure is interpreted.
var unsupportedOps = map[ast.Op]bool{
	ast.OpAdd:        true,
	ast.OpSubtract:   true,
	ast.OpMultiply:   true,
	ast.OpDivide:     true,
	ast.OpModulo:     true,
	ast.OpConcat:     true,
	ast.OpNegate:     true,
	ast.OpNot:        true,
	ast.OpComplement: true,
	ast.OpIs:         true,
	ast.OpIsNot:      true,
	ast.OpLike:       true,
	ast.OpBetween:    true,
}

// NativeOperatorFor returns the store operator for a tree operator, or false
// when the store has no equivalent.
func NativeOperatorFor(op ast.Op) (store.Operator, bool) {
	native, ok := nativeOps[op]
	return native, ok
}
