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

// Package compiler translates the predicate tree of a compiled object query
// into the store's native query form. Compilation happens in phases: a static
// operator check over the whole tree, a classification pass that decides
// between a batch key lookup and a scan, then the actual translation. Every
// rejection is raised here, before any store call.
package compiler

import (
	"strings"

	"github.com/ebay/treeline/meta"
	"github.com/ebay/treeline/query/ast"
	"github.com/ebay/treeline/query/queryerror"
	"github.com/ebay/treeline/store"
	"github.com/ebay/treeline/util/clocks"
)

// Compiler holds the translation collaborators. The zero value is not usable;
// Provider must be set.
type Compiler struct {
	Provider meta.Provider
	// Clock evaluates CURRENT_TIMESTAMP and CURRENT_DATE operands. Nil means
	// the wall clock.
	Clock clocks.Source
}

// A CompiledQuery is the immutable product of compilation: either a scan
// (filters, sorts, optional ancestor) or a batch key lookup, never a mix.
type CompiledQuery struct {
	// Kind is the store kind being queried.
	Kind string
	// Scan is the native scan. In batch mode it is still present but carries
	// no filters or sorts; executors must not run it.
	Scan *store.Query
	// Batch is true when the query is fulfilled by a batch key lookup.
	Batch bool
	// BatchKeys holds the keys to fetch in batch mode. It may be empty when
	// the caller bound an empty collection.
	BatchKeys []*store.Key
	Shape     Shape
	// Projection lists the fields to materialize for FieldProjection results.
	Projection []FieldPath
}

// Compile translates a predicate tree and ordering into a CompiledQuery.
// The shape and projection come from a prior ValidateShape call.
func (c *Compiler) Compile(comp *ast.Compilation, class *meta.Class, shape Shape,
	projection []FieldPath, params Params) (*CompiledQuery, error) {

	clock := c.Clock
	if clock == nil {
		clock = clocks.Wall
	}
	cc := &compilation{
		comp:     comp,
		class:    class,
		params:   params,
		provider: c.Provider,
		clock:    clock,
		query:    &store.Query{Kind: class.KindName()},
	}
	if err := cc.checkOperators(comp.Filter); err != nil {
		return nil, err
	}
	batch, err := cc.classify()
	if err != nil {
		return nil, err
	}
	compiled := &CompiledQuery{
		Kind:       class.KindName(),
		Scan:       cc.query,
		Shape:      shape,
		Projection: projection,
	}
	if batch != nil {
		keys, err := cc.batchKeys(batch)
		if err != nil {
			return nil, err
		}
		compiled.Batch = true
		compiled.BatchKeys = keys
		return compiled, nil
	}
	if err := cc.compileNode(comp.Filter); err != nil {
		return nil, err
	}
	if err := cc.compileSorts(); err != nil {
		return nil, err
	}
	return compiled, nil
}

// compilation carries the state of one Compile call.
type compilation struct {
	comp     *ast.Compilation
	class    *meta.Class
	params   Params
	provider meta.Provider
	clock    clocks.Source
	query    *store.Query
}

func (cc *compilation) text() string {
	return cc.comp.Text
}

// checkOperators statically rejects operators and disjunctions anywhere in
// the tree, before any surrounding structure is interpreted. A branch that
// later compilation would never visit still fails here.
func (cc *compilation) checkOperators(n ast.Node) error {
	switch v := n.(type) {
	case nil:
		return nil
	case *ast.And:
		if err := cc.checkOperators(v.Left); err != nil {
			return err
		}
		return cc.checkOperators(v.Right)
	case *ast.Or:
		return queryerror.Featuref(cc.text(), "the store cannot fulfill disjunctions (OR)")
	case *ast.Compare:
		if err := cc.checkOp(v.Op); err != nil {
			return err
		}
		if err := cc.checkOperators(v.Left); err != nil {
			return err
		}
		if isNegatedLiteral(v.Right) {
			// Local negation of a literal is evaluated, not compiled.
			return nil
		}
		return cc.checkOperators(v.Right)
	case *ast.Unary:
		return cc.checkOp(v.Op)
	case *ast.Call:
		if err := cc.checkOperators(v.Receiver); err != nil {
			return err
		}
		for _, arg := range v.Args {
			if err := cc.checkOperators(arg); err != nil {
				return err
			}
		}
		return nil
	}
	// Idents, literals and parameters carry no operators.
	return nil
}

func (cc *compilation) checkOp(op ast.Op) error {
	if unsupportedOps[op] {
		return queryerror.Operatorf(cc.text(), op.String(), "")
	}
	if _, ok := nativeOps[op]; !ok {
		return queryerror.Operatorf(cc.text(), op.String(), "")
	}
	return nil
}

func isNegatedLiteral(n ast.Node) bool {
	u, ok := n.(*ast.Unary)
	if !ok || u.Op != ast.OpNegate {
		return false
	}
	_, ok = u.Expr.(*ast.Literal)
	return ok
}

// batchCandidate describes a primary-key equality comparison against a
// collection-valued operand found during classification.
type batchCandidate struct {
	op     ast.Op
	values []interface{}
}

// classify decides up front whether the query is a batch key lookup. The
// whole conjunction is inspected before anything is emitted: a candidate
// switches the query to batch mode only when it is the sole filter and no
// ordering is present, regardless of where in the conjunction it appears.
func (cc *compilation) classify() (*batchCandidate, error) {
	batch, others, err := cc.classifyNode(cc.comp.Filter)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, nil
	}
	if others > 0 {
		return nil, queryerror.Featuref(cc.text(),
			"batch lookup by primary key is only supported if no other filters are defined")
	}
	if len(cc.comp.Ordering) > 0 {
		return nil, queryerror.Featuref(cc.text(),
			"batch lookup by primary key cannot be combined with sort orders")
	}
	if batch.op != ast.OpEqual {
		return nil, queryerror.Validationf(cc.text(),
			"batch lookup by primary key is only supported with the equality operator")
	}
	return batch, nil
}

// classifyNode walks the conjunction spine counting filter-producing leaves
// and looking for a batch candidate. Leaves it can't interpret count as
// ordinary filters; the translation pass raises their real errors.
func (cc *compilation) classifyNode(n ast.Node) (*batchCandidate, int, error) {
	switch v := n.(type) {
	case nil:
		return nil, 0, nil
	case *ast.And:
		left, nl, err := cc.classifyNode(v.Left)
		if err != nil {
			return nil, 0, err
		}
		right, nr, err := cc.classifyNode(v.Right)
		if err != nil {
			return nil, 0, err
		}
		if left != nil && right != nil {
			return nil, 0, queryerror.Featuref(cc.text(),
				"batch lookup by primary key is only supported if no other filters are defined")
		}
		if left == nil {
			left = right
		}
		return left, nl + nr, nil
	case *ast.Compare:
		candidate, err := cc.classifyCompare(v)
		if err != nil {
			return nil, 0, err
		}
		if candidate != nil {
			return candidate, 0, nil
		}
		return nil, 1, nil
	case *ast.Call:
		return nil, 1, nil
	case *ast.Ident:
		// A bare field reference contributes nothing.
		return nil, 0, nil
	}
	return nil, 1, nil
}

func (cc *compilation) classifyCompare(n *ast.Compare) (*batchCandidate, error) {
	left, ok := n.Left.(*ast.Ident)
	if !ok {
		return nil, nil
	}
	member, err := cc.class.MemberForPath(stripAlias(left.Path, cc.comp.Alias))
	if err != nil || member == nil || !member.PrimaryKey {
		// Resolution problems surface with proper errors in the
		// translation pass.
		return nil, nil
	}
	value, err := cc.operandValue(n.Right)
	if err != nil {
		return nil, nil
	}
	if !isMultiValued(value) {
		return nil, nil
	}
	return &batchCandidate{op: n.Op, values: elements(value)}, nil
}

// batchKeys converts the candidate's collection elements into keys.
func (cc *compilation) batchKeys(batch *batchCandidate) ([]*store.Key, error) {
	keys := make([]*store.Key, 0, len(batch.values))
	for _, v := range batch.values {
		key, err := cc.keyFromValue(cc.query.Kind, v)
		if err != nil {
			return nil, err
		}
		if key == nil {
			return nil, queryerror.Validationf(cc.text(),
				"batch lookup by primary key cannot include null")
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// compileNode translates the predicate tree into native filters. Conjunctions
// flatten into the query's filter list no matter how they nest.
func (cc *compilation) compileNode(n ast.Node) error {
	switch v := n.(type) {
	case nil:
		return nil
	case *ast.And:
		if err := cc.compileNode(v.Left); err != nil {
			return err
		}
		return cc.compileNode(v.Right)
	case *ast.Compare:
		if left, ok := v.Left.(*ast.Ident); ok {
			return cc.comparison(left, v.Op, v.Right)
		}
		if err := cc.compileNode(v.Left); err != nil {
			return err
		}
		return cc.compileNode(v.Right)
	case *ast.Call:
		return cc.call(v)
	case *ast.Ident:
		// A bare field reference filters nothing.
		return nil
	}
	return queryerror.Featuref(cc.text(), "unexpected expression in predicate: %v", n)
}

// comparison emits one native filter for field <op> value.
func (cc *compilation) comparison(left *ast.Ident, op ast.Op, right ast.Node) error {
	value, err := cc.operandValue(right)
	if err != nil {
		return err
	}
	nativeOp, ok := nativeOps[op]
	if !ok {
		return queryerror.Operatorf(cc.text(), op.String(), "")
	}
	if op == ast.OpNotEqual && value != nil {
		return queryerror.Operatorf(cc.text(), op.String(),
			"the not-equal operator is only supported when the operand is null")
	}
	path := stripAlias(left.Path, cc.comp.Alias)
	member, err := cc.class.MemberForPath(path)
	if err != nil {
		return queryerror.Validationf(cc.text(),
			"can only filter by properties of a sub-object if the sub-object is embedded (field %s)",
			strings.Join(path, "."))
	}
	if member == nil {
		return noMetaData(cc.text(), path, cc.class)
	}

	switch {
	case member.Type == meta.Relation:
		return cc.relationFilter(member, nativeOp, value)
	case member.ParentKey:
		key, err := cc.keyFromValue(cc.query.Kind, value)
		if err != nil {
			return err
		}
		return cc.setAncestor(nativeOp, key)
	case member.PrimaryKey:
		key, err := cc.keyFromValue(cc.query.Kind, value)
		if err != nil {
			return err
		}
		cc.addFilter(store.KeyProperty, nativeOp, key)
		return nil
	}
	if isMultiValued(value) {
		return queryerror.Validationf(cc.text(),
			"collection parameters are only supported when filtering on the primary key")
	}
	cc.addFilter(propertyFor(member), nativeOp, coerceValue(member, value))
	return nil
}

func (cc *compilation) addFilter(property string, op store.Operator, value interface{}) {
	cc.query.Filters = append(cc.query.Filters, store.Filter{
		Property: property,
		Op:       op,
		Value:    value,
	})
}

// setAncestor installs the query's ancestor constraint. The store only
// supports one, only with equality and never against null.
func (cc *compilation) setAncestor(op store.Operator, key *store.Key) error {
	if op != store.Equal {
		return queryerror.Featuref(cc.text(),
			"the store only supports ancestor constraints using the equality operator, not %v", op)
	}
	if key == nil {
		return queryerror.Featuref(cc.text(),
			"received a null parent parameter; the store does not support querying for null parents")
	}
	if cc.query.Ancestor != nil {
		if cc.query.Ancestor.Equal(key) {
			return nil
		}
		return queryerror.Featuref(cc.text(),
			"query already has an ancestor constraint of %v; the store cannot fulfill multiple ancestor constraints", cc.query.Ancestor)
	}
	cc.query.Ancestor = key
	return nil
}

// relationFilter compiles a comparison on a relation member. The child side
// of an owned relation becomes an ancestor constraint; the owning side
// becomes a key filter against the related object's parent.
func (cc *compilation) relationFilter(member *meta.Member, op store.Operator, value interface{}) error {
	related := cc.provider.ClassFor(member.Class)
	if related == nil {
		return queryerror.Validationf(cc.text(),
			"no meta-data for class %s referenced by relation member %s", member.Class, member.Name)
	}
	key, err := cc.keyFromValue(related.KindName(), value)
	if err != nil {
		return err
	}
	if key != nil && key.Kind() != related.KindName() {
		return queryerror.Validationf(cc.text(),
			"member %s maps to kind %s but the parameter value holds a key of kind %s",
			member.Name, related.KindName(), key.Kind())
	}
	if member.ParentKey {
		return cc.setAncestor(op, key)
	}
	// Owning side: the related child's key encodes its owner as its parent.
	if op != store.Equal {
		return queryerror.Featuref(cc.text(),
			"only the equality operator is supported on conditions involving the owning side of a one-to-one relation")
	}
	if key == nil {
		return queryerror.Validationf(cc.text(),
			"cannot query for parents with a null child")
	}
	if key.Parent() == nil {
		return queryerror.Validationf(cc.text(),
			"key of parameter value %v does not have a parent", key)
	}
	cc.addFilter(store.KeyProperty, store.Equal, key.Parent())
	return nil
}

// call compiles the supported method-call predicates.
func (cc *compilation) call(n *ast.Call) error {
	switch n.Name {
	case "contains":
		if len(n.Args) != 1 {
			break
		}
		// field.contains(value) and param.contains(field) both reduce to an
		// equality filter on the field.
		if recv, ok := n.Receiver.(*ast.Ident); ok && !cc.isImplicitParam(recv) {
			return cc.comparison(recv, ast.OpEqual, n.Args[0])
		}
		if field, ok := n.Args[0].(*ast.Ident); ok {
			return cc.comparison(field, ast.OpEqual, n.Receiver)
		}
	case "startsWith":
		if len(n.Args) != 1 {
			break
		}
		recv, ok := n.Receiver.(*ast.Ident)
		if !ok {
			break
		}
		prefix, err := cc.stringArg(n.Args[0])
		if err != nil {
			return err
		}
		return cc.addPrefix(recv, prefix)
	case "matches":
		if len(n.Args) != 1 {
			break
		}
		recv, ok := n.Receiver.(*ast.Ident)
		if !ok {
			break
		}
		pattern, err := cc.stringArg(n.Args[0])
		if err != nil {
			return err
		}
		idx := strings.IndexByte(pattern, '%')
		if idx != len(pattern)-1 || idx < 0 {
			return queryerror.Featuref(cc.text(),
				"the wildcard may only appear at the end of a matches() pattern; only prefix matches are supported")
		}
		return cc.addPrefix(recv, pattern[:idx])
	}
	return queryerror.Featuref(cc.text(),
		"unsupported method <%s> while parsing expression: %v", n.Name, n)
}

// isImplicitParam reports whether an identifier on a receiver position names
// a bound parameter rather than a field.
func (cc *compilation) isImplicitParam(ident *ast.Ident) bool {
	if cc.params.Named == nil {
		return false
	}
	_, ok := cc.params.Named[strings.Join(ident.Path, ".")]
	return ok
}

// stringArg evaluates a call argument that must be a string. A single
// character counts.
func (cc *compilation) stringArg(n ast.Node) (string, error) {
	value, err := cc.operandValue(n)
	if err != nil {
		return "", err
	}
	switch v := value.(type) {
	case string:
		return v, nil
	case rune:
		return string(v), nil
	}
	return "", queryerror.Validationf(cc.text(),
		"prefix matching is only supported on strings, not %T", value)
}

// addPrefix compiles a prefix match into a half-open range on the field:
// >= prefix and < the smallest string that sorts after every extension of
// the prefix. When no such upper bound exists (the empty prefix, or a prefix
// of all maximal bytes) only the lower filter is emitted and the scan
// matches every value from the prefix up.
func (cc *compilation) addPrefix(field *ast.Ident, prefix string) error {
	err := cc.comparison(field, ast.OpGreaterOrEqual, &ast.Literal{Value: prefix})
	if err != nil {
		return err
	}
	if upper, ok := prefixUpperBound(prefix); ok {
		return cc.comparison(field, ast.OpLess, &ast.Literal{Value: upper})
	}
	return nil
}

// prefixUpperBound returns the smallest string greater than every string with
// the given prefix: trailing maximal bytes are dropped and the last remaining
// byte is incremented. Reports false when no bound exists.
func prefixUpperBound(prefix string) (string, bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0xff {
			end := make([]byte, i+1)
			copy(end, b[:i+1])
			end[i]++
			return string(end), true
		}
	}
	return "", false
}
