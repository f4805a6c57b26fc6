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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebay/treeline/meta"
	"github.com/ebay/treeline/query/ast"
	"github.com/ebay/treeline/query/queryerror"
	"github.com/ebay/treeline/store"
	"github.com/ebay/treeline/util/clocks"
)

func testRegistry(t *testing.T) *meta.Registry {
	reg := meta.NewRegistry()
	require.NoError(t, reg.Register(&meta.Class{
		Name: "com.example.Customer",
		Members: []*meta.Member{
			{Name: "id", Type: meta.KeyType, PrimaryKey: true},
			{Name: "parent", Type: meta.KeyType, ParentKey: true},
			{Name: "name", Type: meta.String},
			{Name: "age", Type: meta.Int},
			{Name: "grade", Type: meta.Char},
			{Name: "tier", Type: meta.Enum},
			{Name: "balance", Type: meta.Decimal},
			{Name: "photo", Type: meta.Bytes},
			{Name: "joined", Type: meta.Time},
			{Name: "address", Type: meta.Embedded, Members: []*meta.Member{
				{Name: "city", Type: meta.String},
				{Name: "zip", Property: "postcode", Type: meta.String},
			}},
			{Name: "account", Type: meta.Relation, Class: "com.example.Account"},
		},
	}))
	require.NoError(t, reg.Register(&meta.Class{
		Name: "com.example.Account",
		Members: []*meta.Member{
			{Name: "id", Type: meta.KeyType, PrimaryKey: true},
			{Name: "owner", Type: meta.Relation, Class: "com.example.Customer", ParentKey: true},
			{Name: "status", Type: meta.String},
		},
	}))
	return reg
}

func ident(path ...string) *ast.Ident     { return &ast.Ident{Path: path} }
func lit(v interface{}) *ast.Literal      { return &ast.Literal{Value: v} }
func eq(l, r ast.Node) *ast.Compare       { return &ast.Compare{Op: ast.OpEqual, Left: l, Right: r} }
func cmpOp(op ast.Op, l, r ast.Node) *ast.Compare {
	return &ast.Compare{Op: op, Left: l, Right: r}
}
func and(l, r ast.Node) *ast.And { return &ast.And{Left: l, Right: r} }

func testCompilation(class string, filter ast.Node, orders ...ast.Order) *ast.Compilation {
	return &ast.Compilation{
		Text:     "test query",
		Type:     ast.Select,
		Class:    class,
		Alias:    "this",
		Filter:   filter,
		Ordering: orders,
	}
}

type compileEnv struct {
	reg   *meta.Registry
	clock clocks.Source
}

func (env compileEnv) compile(t *testing.T, comp *ast.Compilation, params Params) (*CompiledQuery, error) {
	t.Helper()
	class := env.reg.ClassFor(comp.Class)
	require.NotNil(t, class)
	shape, projection, err := ValidateShape(comp, class)
	require.NoError(t, err)
	c := Compiler{Provider: env.reg, Clock: env.clock}
	return c.Compile(comp, class, shape, projection, params)
}

func newEnv(t *testing.T) compileEnv {
	return compileEnv{
		reg:   testRegistry(t),
		clock: clocks.NewMock(time.Date(2019, 4, 1, 12, 0, 0, 0, time.UTC)),
	}
}

func Test_SimpleComparisons(t *testing.T) {
	env := newEnv(t)
	type tc struct {
		op     ast.Op
		expect store.Operator
	}
	for _, c := range []tc{
		{ast.OpEqual, store.Equal},
		{ast.OpGreater, store.GreaterThan},
		{ast.OpGreaterOrEqual, store.GreaterOrEqual},
		{ast.OpLess, store.LessThan},
		{ast.OpLessOrEqual, store.LessOrEqual},
	} {
		comp := testCompilation("com.example.Customer", cmpOp(c.op, ident("age"), lit(int64(21))))
		compiled, err := env.compile(t, comp, Params{})
		require.NoError(t, err)
		require.Len(t, compiled.Scan.Filters, 1)
		assert.Equal(t, store.Filter{Property: "age", Op: c.expect, Value: int64(21)},
			compiled.Scan.Filters[0])
		assert.False(t, compiled.Batch)
	}
}

func Test_NotEqualOnlyAgainstNull(t *testing.T) {
	env := newEnv(t)
	comp := testCompilation("com.example.Customer", cmpOp(ast.OpNotEqual, ident("name"), lit(nil)))
	compiled, err := env.compile(t, comp, Params{})
	require.NoError(t, err)
	require.Len(t, compiled.Scan.Filters, 1)
	assert.Equal(t, store.GreaterThan, compiled.Scan.Filters[0].Op)
	assert.Nil(t, compiled.Scan.Filters[0].Value)

	comp = testCompilation("com.example.Customer", cmpOp(ast.OpNotEqual, ident("name"), lit("bob")))
	_, err = env.compile(t, comp, Params{})
	assert.IsType(t, &queryerror.UnsupportedOperator{}, err)
}

func Test_UnsupportedOperatorsRejected(t *testing.T) {
	env := newEnv(t)
	for _, op := range []ast.Op{
		ast.OpAdd, ast.OpSubtract, ast.OpMultiply, ast.OpDivide, ast.OpModulo,
		ast.OpConcat, ast.OpIs, ast.OpIsNot, ast.OpLike, ast.OpBetween,
	} {
		comp := testCompilation("com.example.Customer", cmpOp(op, ident("age"), lit(int64(1))))
		_, err := env.compile(t, comp, Params{})
		assert.IsType(t, &queryerror.UnsupportedOperator{}, err, "operator %v", op)
	}
}

// Operator checks run over the whole tree before structure is interpreted, so
// an unsupported operator buried on the far side of a conjunction still
// rejects the query.
func Test_OperatorCheckReachesNestedBranches(t *testing.T) {
	env := newEnv(t)
	filter := and(
		eq(ident("name"), lit("bob")),
		and(
			eq(ident("age"), lit(int64(3))),
			cmpOp(ast.OpLike, ident("name"), lit("b%")),
		),
	)
	_, err := env.compile(t, testCompilation("com.example.Customer", filter), Params{})
	assert.IsType(t, &queryerror.UnsupportedOperator{}, err)
}

func Test_DisjunctionRejected(t *testing.T) {
	env := newEnv(t)
	filter := &ast.Or{
		Left:  eq(ident("name"), lit("bob")),
		Right: eq(ident("name"), lit("alice")),
	}
	_, err := env.compile(t, testCompilation("com.example.Customer", filter), Params{})
	assert.IsType(t, &queryerror.UnsupportedFeature{}, err)

	// Also when nested under a conjunction.
	_, err = env.compile(t, testCompilation("com.example.Customer",
		and(eq(ident("age"), lit(int64(1))), filter)), Params{})
	assert.IsType(t, &queryerror.UnsupportedFeature{}, err)
}

// However the conjunctions nest, each equality lands as one native filter.
func Test_ConjunctionsFlatten(t *testing.T) {
	env := newEnv(t)
	shapes := []ast.Node{
		and(and(eq(ident("name"), lit("a")), eq(ident("age"), lit(int64(1)))),
			eq(ident("address", "city"), lit("kyiv"))),
		and(eq(ident("name"), lit("a")),
			and(eq(ident("age"), lit(int64(1))), eq(ident("address", "city"), lit("kyiv")))),
	}
	for i, filter := range shapes {
		compiled, err := env.compile(t, testCompilation("com.example.Customer", filter), Params{})
		require.NoError(t, err, "shape %d", i)
		require.Len(t, compiled.Scan.Filters, 3, "shape %d", i)
		assert.Equal(t, "name", compiled.Scan.Filters[0].Property)
		assert.Equal(t, "age", compiled.Scan.Filters[1].Property)
		assert.Equal(t, "address.city", compiled.Scan.Filters[2].Property)
	}
}

func Test_NilFilterCompilesToBareScan(t *testing.T) {
	env := newEnv(t)
	compiled, err := env.compile(t, testCompilation("com.example.Customer", nil), Params{})
	require.NoError(t, err)
	assert.Empty(t, compiled.Scan.Filters)
	assert.False(t, compiled.Batch)
	assert.Equal(t, "Customer", compiled.Kind)
}

func Test_UnknownMember(t *testing.T) {
	env := newEnv(t)
	_, err := env.compile(t, testCompilation("com.example.Customer",
		eq(ident("nickname"), lit("bob"))), Params{})
	require.IsType(t, &queryerror.Validation{}, err)
	assert.Contains(t, err.Error(), "no meta-data for member named nickname")
}

func Test_EmbeddedPathResolution(t *testing.T) {
	env := newEnv(t)
	// Property overrides apply to nested members.
	compiled, err := env.compile(t, testCompilation("com.example.Customer",
		eq(ident("address", "zip"), lit("01001"))), Params{})
	require.NoError(t, err)
	assert.Equal(t, "address.postcode", compiled.Scan.Filters[0].Property)

	// Descending through a non-embedded member is a validation error.
	_, err = env.compile(t, testCompilation("com.example.Customer",
		eq(ident("name", "first"), lit("b"))), Params{})
	require.IsType(t, &queryerror.Validation{}, err)
	assert.Contains(t, err.Error(), "sub-object is embedded")
}

func Test_AliasStripped(t *testing.T) {
	env := newEnv(t)
	compiled, err := env.compile(t, testCompilation("com.example.Customer",
		eq(ident("this", "name"), lit("bob"))), Params{})
	require.NoError(t, err)
	assert.Equal(t, "name", compiled.Scan.Filters[0].Property)
}

func Test_ValueCoercions(t *testing.T) {
	env := newEnv(t)

	compiled, err := env.compile(t, testCompilation("com.example.Customer",
		eq(ident("grade"), lit('A'))), Params{})
	require.NoError(t, err)
	assert.Equal(t, "A", compiled.Scan.Filters[0].Value)

	compiled, err = env.compile(t, testCompilation("com.example.Customer",
		eq(ident("balance"), lit(big.NewFloat(12.5)))), Params{})
	require.NoError(t, err)
	assert.Equal(t, float64(12.5), compiled.Scan.Filters[0].Value)

	compiled, err = env.compile(t, testCompilation("com.example.Customer",
		eq(ident("photo"), lit([]byte{1, 2}))), Params{})
	require.NoError(t, err)
	assert.Equal(t, store.Blob{1, 2}, compiled.Scan.Filters[0].Value)

	compiled, err = env.compile(t, testCompilation("com.example.Customer",
		eq(ident("tier"), lit(tier("gold")))), Params{})
	require.NoError(t, err)
	assert.Equal(t, "gold", compiled.Scan.Filters[0].Value)
}

// tier is an enum-like value with a name.
type tier string

func (t tier) String() string { return string(t) }

func Test_NegatedNumericLiteral(t *testing.T) {
	env := newEnv(t)
	filter := cmpOp(ast.OpGreater, ident("age"),
		&ast.Unary{Op: ast.OpNegate, Expr: lit(int64(5))})
	compiled, err := env.compile(t, testCompilation("com.example.Customer", filter), Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(-5), compiled.Scan.Filters[0].Value)

	filter = cmpOp(ast.OpGreater, ident("balance"),
		&ast.Unary{Op: ast.OpNegate, Expr: lit(big.NewFloat(2.5))})
	compiled, err = env.compile(t, testCompilation("com.example.Customer", filter), Params{})
	require.NoError(t, err)
	assert.Equal(t, float64(-2.5), compiled.Scan.Filters[0].Value)
}

func Test_CurrentTimestampEvaluatesViaClock(t *testing.T) {
	env := newEnv(t)
	now := env.clock.Now()
	filter := cmpOp(ast.OpLess, ident("joined"), &ast.Call{Name: "CURRENT_TIMESTAMP"})
	compiled, err := env.compile(t, testCompilation("com.example.Customer", filter), Params{})
	require.NoError(t, err)
	assert.Equal(t, now, compiled.Scan.Filters[0].Value)
}

func Test_Params(t *testing.T) {
	env := newEnv(t)
	params := Params{
		Named:      map[string]interface{}{"minAge": int64(21)},
		Positional: []interface{}{"bob"},
	}
	filter := and(
		cmpOp(ast.OpGreaterOrEqual, ident("age"), &ast.Param{Name: "minAge", Pos: -1}),
		eq(ident("name"), &ast.Param{Pos: 0}),
	)
	compiled, err := env.compile(t, testCompilation("com.example.Customer", filter), params)
	require.NoError(t, err)
	require.Len(t, compiled.Scan.Filters, 2)
	assert.Equal(t, int64(21), compiled.Scan.Filters[0].Value)
	assert.Equal(t, "bob", compiled.Scan.Filters[1].Value)
}

func Test_StartsWith(t *testing.T) {
	env := newEnv(t)
	call := &ast.Call{Name: "startsWith", Receiver: ident("name"), Args: []ast.Node{lit("ya")}}
	compiled, err := env.compile(t, testCompilation("com.example.Customer", call), Params{})
	require.NoError(t, err)
	require.Len(t, compiled.Scan.Filters, 2)
	assert.Equal(t, store.Filter{Property: "name", Op: store.GreaterOrEqual, Value: "ya"},
		compiled.Scan.Filters[0])
	assert.Equal(t, store.Filter{Property: "name", Op: store.LessThan, Value: "yb"},
		compiled.Scan.Filters[1])
}

// A prefix with no possible upper bound emits the lower filter only: the scan
// matches everything from the prefix up.
func Test_StartsWithNoUpperBound(t *testing.T) {
	env := newEnv(t)
	call := &ast.Call{Name: "startsWith", Receiver: ident("name"),
		Args: []ast.Node{lit("\xff\xff")}}
	compiled, err := env.compile(t, testCompilation("com.example.Customer", call), Params{})
	require.NoError(t, err)
	require.Len(t, compiled.Scan.Filters, 1)
	assert.Equal(t, store.GreaterOrEqual, compiled.Scan.Filters[0].Op)
}

func Test_PrefixUpperBound(t *testing.T) {
	type tc struct {
		prefix string
		upper  string
		ok     bool
	}
	for _, c := range []tc{
		{"ya", "yb", true},
		{"a\xff", "b", true},
		{"a\xff\xff", "b", true},
		{"\xff", "", false},
		{"", "", false},
	} {
		upper, ok := prefixUpperBound(c.prefix)
		assert.Equal(t, c.ok, ok, "prefix %q", c.prefix)
		assert.Equal(t, c.upper, upper, "prefix %q", c.prefix)
	}
}

func Test_StartsWithNonString(t *testing.T) {
	env := newEnv(t)
	call := &ast.Call{Name: "startsWith", Receiver: ident("name"), Args: []ast.Node{lit(int64(3))}}
	_, err := env.compile(t, testCompilation("com.example.Customer", call), Params{})
	assert.IsType(t, &queryerror.Validation{}, err)
}

func Test_Matches(t *testing.T) {
	env := newEnv(t)
	call := &ast.Call{Name: "matches", Receiver: ident("name"), Args: []ast.Node{lit("ya%")}}
	compiled, err := env.compile(t, testCompilation("com.example.Customer", call), Params{})
	require.NoError(t, err)
	require.Len(t, compiled.Scan.Filters, 2)
	assert.Equal(t, "ya", compiled.Scan.Filters[0].Value)
	assert.Equal(t, "yb", compiled.Scan.Filters[1].Value)

	for _, pattern := range []string{"ya", "y%a", "%ya", "y%a%"} {
		call := &ast.Call{Name: "matches", Receiver: ident("name"), Args: []ast.Node{lit(pattern)}}
		_, err := env.compile(t, testCompilation("com.example.Customer", call), Params{})
		assert.IsType(t, &queryerror.UnsupportedFeature{}, err, "pattern %q", pattern)
	}
}

func Test_ContainsRewritesToEquality(t *testing.T) {
	env := newEnv(t)
	call := &ast.Call{Name: "contains", Receiver: ident("name"), Args: []ast.Node{lit("bob")}}
	compiled, err := env.compile(t, testCompilation("com.example.Customer", call), Params{})
	require.NoError(t, err)
	require.Len(t, compiled.Scan.Filters, 1)
	assert.Equal(t, store.Filter{Property: "name", Op: store.Equal, Value: "bob"},
		compiled.Scan.Filters[0])

	// Parameter-receiver form: :names.contains(name).
	params := Params{Named: map[string]interface{}{"wanted": "alice"}}
	call = &ast.Call{Name: "contains", Receiver: ident("wanted"), Args: []ast.Node{ident("name")}}
	compiled, err = env.compile(t, testCompilation("com.example.Customer", call), params)
	require.NoError(t, err)
	require.Len(t, compiled.Scan.Filters, 1)
	assert.Equal(t, store.Filter{Property: "name", Op: store.Equal, Value: "alice"},
		compiled.Scan.Filters[0])
}

func Test_UnsupportedMethod(t *testing.T) {
	env := newEnv(t)
	call := &ast.Call{Name: "endsWith", Receiver: ident("name"), Args: []ast.Node{lit("x")}}
	_, err := env.compile(t, testCompilation("com.example.Customer", call), Params{})
	require.IsType(t, &queryerror.UnsupportedFeature{}, err)
	assert.Contains(t, err.Error(), "unsupported method <endsWith>")
}

func Test_PrimaryKeyFilter(t *testing.T) {
	env := newEnv(t)
	compiled, err := env.compile(t, testCompilation("com.example.Customer",
		eq(ident("id"), lit("Customer:'alice'"))), Params{})
	require.NoError(t, err)
	require.Len(t, compiled.Scan.Filters, 1)
	f := compiled.Scan.Filters[0]
	assert.Equal(t, store.KeyProperty, f.Property)
	key := f.Value.(*store.Key)
	assert.Equal(t, "Customer", key.Kind())
	assert.Equal(t, "alice", key.Name())
}

func Test_BatchLookup(t *testing.T) {
	env := newEnv(t)
	params := Params{Named: map[string]interface{}{"ids": []interface{}{"alice", int64(7)}}}
	comp := testCompilation("com.example.Customer",
		eq(ident("id"), &ast.Param{Name: "ids", Pos: -1}))
	compiled, err := env.compile(t, comp, params)
	require.NoError(t, err)
	assert.True(t, compiled.Batch)
	require.Len(t, compiled.BatchKeys, 2)
	assert.Equal(t, "alice", compiled.BatchKeys[0].Name())
	assert.Equal(t, int64(7), compiled.BatchKeys[1].ID())
	assert.Empty(t, compiled.Scan.Filters)
	assert.Empty(t, compiled.Scan.Sorts)
}

// The classification pass sees the whole conjunction before deciding, so the
// batch-plus-filter conflict is found no matter which side of the AND the
// extra filter sits on.
func Test_BatchLookupRejectsOtherFilters(t *testing.T) {
	env := newEnv(t)
	params := Params{Named: map[string]interface{}{"ids": []interface{}{"alice"}}}
	batch := eq(ident("id"), &ast.Param{Name: "ids", Pos: -1})
	other := eq(ident("name"), lit("alice"))

	for _, filter := range []ast.Node{and(batch, other), and(other, batch)} {
		_, err := env.compile(t, testCompilation("com.example.Customer", filter), params)
		require.IsType(t, &queryerror.UnsupportedFeature{}, err)
		assert.Contains(t, err.Error(), "no other filters")
	}
}

func Test_BatchLookupRejectsSorts(t *testing.T) {
	env := newEnv(t)
	params := Params{Named: map[string]interface{}{"ids": []interface{}{"alice"}}}
	comp := testCompilation("com.example.Customer",
		eq(ident("id"), &ast.Param{Name: "ids", Pos: -1}),
		ast.Order{Expr: ident("name")})
	_, err := env.compile(t, comp, params)
	assert.IsType(t, &queryerror.UnsupportedFeature{}, err)
}

func Test_BatchLookupRequiresEquality(t *testing.T) {
	env := newEnv(t)
	params := Params{Named: map[string]interface{}{"ids": []interface{}{"alice"}}}
	comp := testCompilation("com.example.Customer",
		cmpOp(ast.OpGreater, ident("id"), &ast.Param{Name: "ids", Pos: -1}))
	_, err := env.compile(t, comp, params)
	require.IsType(t, &queryerror.Validation{}, err)
	assert.Contains(t, err.Error(), "equality operator")
}

func Test_CollectionOnNonKeyField(t *testing.T) {
	env := newEnv(t)
	params := Params{Named: map[string]interface{}{"names": []interface{}{"a", "b"}}}
	comp := testCompilation("com.example.Customer",
		eq(ident("name"), &ast.Param{Name: "names", Pos: -1}))
	_, err := env.compile(t, comp, params)
	require.IsType(t, &queryerror.Validation{}, err)
	assert.Contains(t, err.Error(), "primary key")
}

func Test_AncestorConstraint(t *testing.T) {
	env := newEnv(t)
	root := store.NewKey("Customer", "alice", nil)
	params := Params{Named: map[string]interface{}{"p": root}}
	comp := testCompilation("com.example.Customer", eq(ident("parent"), &ast.Param{Name: "p", Pos: -1}))
	compiled, err := env.compile(t, comp, params)
	require.NoError(t, err)
	require.NotNil(t, compiled.Scan.Ancestor)
	assert.True(t, compiled.Scan.Ancestor.Equal(root))
	assert.Empty(t, compiled.Scan.Filters)
}

func Test_AncestorRequiresEquality(t *testing.T) {
	env := newEnv(t)
	params := Params{Named: map[string]interface{}{"p": store.NewKey("Customer", "alice", nil)}}
	comp := testCompilation("com.example.Customer",
		cmpOp(ast.OpGreater, ident("parent"), &ast.Param{Name: "p", Pos: -1}))
	_, err := env.compile(t, comp, params)
	assert.IsType(t, &queryerror.UnsupportedFeature{}, err)
}

func Test_NullAncestorRejected(t *testing.T) {
	env := newEnv(t)
	comp := testCompilation("com.example.Customer", eq(ident("parent"), lit(nil)))
	_, err := env.compile(t, comp, Params{})
	require.IsType(t, &queryerror.UnsupportedFeature{}, err)
	assert.Contains(t, err.Error(), "null parent")
}

func Test_ConflictingAncestorsRejected(t *testing.T) {
	env := newEnv(t)
	params := Params{Named: map[string]interface{}{
		"a": store.NewKey("Customer", "alice", nil),
		"b": store.NewKey("Customer", "bob", nil),
	}}
	filter := and(
		eq(ident("parent"), &ast.Param{Name: "a", Pos: -1}),
		eq(ident("parent"), &ast.Param{Name: "b", Pos: -1}),
	)
	_, err := env.compile(t, testCompilation("com.example.Customer", filter), params)
	require.IsType(t, &queryerror.UnsupportedFeature{}, err)
	assert.Contains(t, err.Error(), "ancestor constraint")

	// The same ancestor twice is redundant, not conflicting.
	filter = and(
		eq(ident("parent"), &ast.Param{Name: "a", Pos: -1}),
		eq(ident("parent"), &ast.Param{Name: "a", Pos: -1}),
	)
	compiled, err := env.compile(t, testCompilation("com.example.Customer", filter), params)
	require.NoError(t, err)
	assert.NotNil(t, compiled.Scan.Ancestor)
}

// Filtering Account by its owner member (the child side of the owned
// relation) becomes an ancestor constraint.
func Test_RelationChildSide(t *testing.T) {
	env := newEnv(t)
	owner := store.NewKey("Customer", "alice", nil)
	params := Params{Named: map[string]interface{}{"c": owner}}
	comp := testCompilation("com.example.Account", eq(ident("owner"), &ast.Param{Name: "c", Pos: -1}))
	compiled, err := env.compile(t, comp, params)
	require.NoError(t, err)
	require.NotNil(t, compiled.Scan.Ancestor)
	assert.True(t, compiled.Scan.Ancestor.Equal(owner))
}

// Filtering Customer by its account member (the owning side) compiles to a
// key filter on the supplied key's parent.
func Test_RelationOwnerSide(t *testing.T) {
	env := newEnv(t)
	parent := store.NewKey("Customer", "alice", nil)
	child := store.NewKey("Account", "acct-1", parent)
	params := Params{Named: map[string]interface{}{"acct": child}}
	comp := testCompilation("com.example.Customer", eq(ident("account"), &ast.Param{Name: "acct", Pos: -1}))
	compiled, err := env.compile(t, comp, params)
	require.NoError(t, err)
	require.Len(t, compiled.Scan.Filters, 1)
	f := compiled.Scan.Filters[0]
	assert.Equal(t, store.KeyProperty, f.Property)
	assert.True(t, f.Value.(*store.Key).Equal(parent))
}

func Test_RelationOwnerSideNeedsParent(t *testing.T) {
	env := newEnv(t)
	rootOnly := store.NewKey("Account", "acct-1", nil)
	params := Params{Named: map[string]interface{}{"acct": rootOnly}}
	comp := testCompilation("com.example.Customer", eq(ident("account"), &ast.Param{Name: "acct", Pos: -1}))
	_, err := env.compile(t, comp, params)
	require.IsType(t, &queryerror.Validation{}, err)
	assert.Contains(t, err.Error(), "parent")
}

func Test_RelationKindMismatch(t *testing.T) {
	env := newEnv(t)
	wrong := store.NewKey("Widget", "w1", store.NewKey("Customer", "alice", nil))
	params := Params{Named: map[string]interface{}{"acct": wrong}}
	comp := testCompilation("com.example.Customer", eq(ident("account"), &ast.Param{Name: "acct", Pos: -1}))
	_, err := env.compile(t, comp, params)
	require.IsType(t, &queryerror.Validation{}, err)
	assert.Contains(t, err.Error(), "kind")
}

func Test_Sorts(t *testing.T) {
	env := newEnv(t)
	comp := testCompilation("com.example.Customer", nil,
		ast.Order{Expr: ident("name")},
		ast.Order{Expr: ident("age"), Direction: ast.DirDescending},
		ast.Order{Expr: ident("id"), Direction: ast.DirAscending},
	)
	compiled, err := env.compile(t, comp, Params{})
	require.NoError(t, err)
	require.Len(t, compiled.Scan.Sorts, 3)
	assert.Equal(t, store.Sort{Property: "name", Direction: store.Ascending}, compiled.Scan.Sorts[0])
	assert.Equal(t, store.Sort{Property: "age", Direction: store.Descending}, compiled.Scan.Sorts[1])
	assert.Equal(t, store.Sort{Property: store.KeyProperty, Direction: store.Ascending}, compiled.Scan.Sorts[2])
}

func Test_SortByParentRejected(t *testing.T) {
	env := newEnv(t)
	comp := testCompilation("com.example.Customer", nil, ast.Order{Expr: ident("parent")})
	_, err := env.compile(t, comp, Params{})
	require.IsType(t, &queryerror.UnsupportedFeature{}, err)
	assert.Contains(t, err.Error(), "sort by parent")
}

func Test_BareIdentIsNoOp(t *testing.T) {
	env := newEnv(t)
	compiled, err := env.compile(t, testCompilation("com.example.Customer",
		and(ident("name"), eq(ident("age"), lit(int64(1))))), Params{})
	require.NoError(t, err)
	assert.Len(t, compiled.Scan.Filters, 1)
}

func Test_ErrorsCarryQueryText(t *testing.T) {
	env := newEnv(t)
	filter := &ast.Or{Left: lit(true), Right: lit(false)}
	_, err := env.compile(t, testCompilation("com.example.Customer", filter), Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test query")
}

func Example_queryString() {
	q := &store.Query{
		Kind:    "Customer",
		Filters: []store.Filter{{Property: "name", Op: store.GreaterOrEqual, Value: "ya"}},
		Sorts:   []store.Sort{{Property: "age", Direction: store.Descending}},
	}
	fmt.Println(q)
	// Output: SCAN Customer WHERE name >= ya ORDER age desc
}
