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
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ebay/treeline/meta"
	"github.com/ebay/treeline/query/ast"
	"github.com/ebay/treeline/query/queryerror"
	"github.com/ebay/treeline/store"
)

// Params carries the values bound to a query's parameters. Named and
// positional parameters may both be present; a parameter that was never bound
// resolves to nil, exactly as if null had been bound.
type Params struct {
	Named      map[string]interface{}
	Positional []interface{}
}

// Value resolves one parameter reference.
func (p Params) Value(ref *ast.Param) interface{} {
	if ref.Pos >= 0 {
		if ref.Pos < len(p.Positional) {
			return p.Positional[ref.Pos]
		}
		return nil
	}
	return p.Named[ref.Name]
}

// byName resolves an implicit parameter, a bare identifier appearing on the
// value side of a comparison.
func (p Params) byName(path []string) interface{} {
	return p.Named[strings.Join(path, ".")]
}

// operandValue evaluates the value side of a comparison. Only literals,
// parameters, implicit parameters, locally negated numeric literals and the
// zero-argument time functions are evaluable; everything else is rejected.
func (cc *compilation) operandValue(n ast.Node) (interface{}, error) {
	switch v := n.(type) {
	case *ast.Literal:
		return v.Value, nil
	case *ast.Param:
		return cc.params.Value(v), nil
	case *ast.Ident:
		return cc.params.byName(v.Path), nil
	case *ast.Unary:
		if v.Op == ast.OpNegate {
			if lit, ok := v.Expr.(*ast.Literal); ok {
				return negateNumber(cc.text(), lit.Value)
			}
		}
		return nil, queryerror.Featuref(cc.text(),
			"the value side of a comparison may only apply negation to a numeric literal, not %v", v)
	case *ast.Call:
		switch strings.ToUpper(v.Name) {
		case "CURRENT_TIMESTAMP", "CURRENT_DATE":
			return cc.clock.Now(), nil
		}
		return nil, queryerror.Featuref(cc.text(),
			"unsupported method <%s> on the value side of a comparison", v.Name)
	case nil:
		return nil, nil
	}
	return nil, queryerror.Featuref(cc.text(),
		"the value side of a comparison is of unexpected type: %v", n)
}

// negateNumber applies local negation to a numeric literal value.
func negateNumber(text string, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case int:
		return int64(-v), nil
	case int8:
		return int64(-v), nil
	case int16:
		return int64(-v), nil
	case int32:
		return int64(-v), nil
	case int64:
		return -v, nil
	case float32:
		return -float64(v), nil
	case float64:
		return -v, nil
	case *big.Float:
		f, _ := new(big.Float).Neg(v).Float64()
		return f, nil
	}
	return nil, queryerror.Validationf(text, "cannot negate non-numeric value %v", value)
}

// coerceValue maps an evaluated operand to the representation the store uses
// for the member's declared type. Characters become one-rune strings, byte
// slices become blobs, arbitrary-precision decimals widen to float64 and enum
// constants store under their name.
func coerceValue(member *meta.Member, value interface{}) interface{} {
	if value == nil {
		return nil
	}
	if member.Type == meta.Enum {
		if s, ok := value.(fmt.Stringer); ok {
			return s.String()
		}
	}
	if member.Type == meta.Char {
		if r, ok := value.(rune); ok {
			return string(r)
		}
	}
	switch v := value.(type) {
	case []byte:
		return store.Blob(v)
	case *big.Float:
		f, _ := v.Float64()
		return f
	}
	return value
}

// propertyFor returns the store property a member reads and writes. Nested
// members of embedded values flatten under dotted property names; the primary
// key maps to the reserved key property.
func propertyFor(member *meta.Member) string {
	if member.PrimaryKey {
		return store.KeyProperty
	}
	name := member.PropertyName()
	for owner := member.EmbeddedIn; owner != nil; owner = owner.EmbeddedIn {
		name = owner.PropertyName() + "." + name
	}
	return name
}

// keyFromValue converts a parameter value into a key of the given kind.
// Strings decode as encoded keys when they parse as one, otherwise they name
// a root key. Integers identify a root key numerically. A nil value stays
// nil; callers decide whether null keys are meaningful.
func (cc *compilation) keyFromValue(kind string, value interface{}) (*store.Key, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *store.Key:
		return v, nil
	case store.Keyed:
		key := v.RecordKey()
		if key == nil {
			return nil, queryerror.Validationf(cc.text(),
				"parameter value %v does not have an id", value)
		}
		return key, nil
	case string:
		if key, err := store.DecodeKey(v); err == nil {
			return key, nil
		}
		return store.NewKey(kind, v, nil), nil
	case int:
		return store.NewIDKey(kind, int64(v), nil), nil
	case int64:
		return store.NewIDKey(kind, v, nil), nil
	}
	return nil, queryerror.Validationf(cc.text(),
		"parameter value %v cannot be interpreted as a key", value)
}

// isMultiValued reports whether a parameter value is a collection. Byte
// payloads are scalars even though they are slices.
func isMultiValued(value interface{}) bool {
	switch value.(type) {
	case nil, []byte, store.Blob:
		return false
	}
	k := reflect.TypeOf(value).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// elements flattens a collection-valued parameter into a slice.
func elements(value interface{}) []interface{} {
	rv := reflect.ValueOf(value)
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
