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

// Package ast defines the predicate/order/projection tree handed to the query
// engine by an external query-language compiler. The tree is a closed sum
// type; the engine matches it exhaustively and never mutates it.
package ast

import (
	"fmt"
	"strings"
)

// Op identifies an operator appearing in a Compare or Unary node. The set
// deliberately includes operators the store cannot execute; the compiler
// rejects those up front.
type Op int

// Operators.
const (
	OpEqual Op = iota + 1
	OpNotEqual
	OpGreater
	OpGreaterOrEqual
	OpLess
	OpLessOrEqual
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpConcat
	OpNegate
	OpNot
	OpComplement
	OpIs
	OpIsNot
	OpLike
	OpBetween
)

func (op Op) String() string {
	names := map[Op]string{
		OpEqual: "==", OpNotEqual: "!=", OpGreater: ">", OpGreaterOrEqual: ">=",
		OpLess: "<", OpLessOrEqual: "<=", OpAdd: "+", OpSubtract: "-",
		OpMultiply: "*", OpDivide: "/", OpModulo: "%", OpConcat: "||",
		OpNegate: "neg", OpNot: "!", OpComplement: "~", OpIs: "is",
		OpIsNot: "is not", OpLike: "like", OpBetween: "between",
	}
	if s, ok := names[op]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// A Node is one node of the predicate tree: a conjunction, a disjunction, a
// comparison, a unary expression, a method call, a field reference, a literal
// or a bound parameter. Each field path in a query is a Node.
type Node interface {
	// Marker method to prevent other types from implementing Node.
	aNode()
	// String returns a parseable representation, used in error messages.
	String() string
}

// And is the conjunction of two predicates.
type And struct {
	Left, Right Node
}

// Or is the disjunction of two predicates. The store cannot execute it; it
// exists so that the compiler can reject it by shape.
type Or struct {
	Left, Right Node
}

// Compare applies a binary operator.
type Compare struct {
	Op          Op
	Left, Right Node
}

// Unary applies a unary operator.
type Unary struct {
	Op   Op
	Expr Node
}

// Call invokes a method on a receiver, e.g. name.startsWith("ya").
type Call struct {
	Name     string
	Receiver Node
	Args     []Node
}

// Ident references a field by path; the first segment may be the query's
// candidate alias.
type Ident struct {
	Path []string
}

// Literal holds a constant value.
type Literal struct {
	Value interface{}
}

// Param references a query parameter, by name or by position. Pos is -1 for
// named parameters.
type Param struct {
	Name string
	Pos  int
}

// Ensures that each of these implements the Node interface.
var _ = []Node{
	new(And),
	new(Or),
	new(Compare),
	new(Unary),
	new(Call),
	new(Ident),
	new(Literal),
	new(Param),
}

func (*And) aNode()     {}
func (*Or) aNode()      {}
func (*Compare) aNode() {}
func (*Unary) aNode()   {}
func (*Call) aNode()    {}
func (*Ident) aNode()   {}
func (*Literal) aNode() {}
func (*Param) aNode()   {}

func (n *And) String() string { return fmt.Sprintf("(%v && %v)", n.Left, n.Right) }
func (n *Or) String() string  { return fmt.Sprintf("(%v || %v)", n.Left, n.Right) }
func (n *Compare) String() string {
	return fmt.Sprintf("(%v %v %v)", n.Left, n.Op, n.Right)
}
func (n *Unary) String() string { return fmt.Sprintf("%v(%v)", n.Op, n.Expr) }
func (n *Call) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%v.%s(%s)", n.Receiver, n.Name, strings.Join(args, ", "))
}
func (n *Ident) String() string   { return strings.Join(n.Path, ".") }
func (n *Literal) String() string { return fmt.Sprintf("%v", n.Value) }
func (n *Param) String() string {
	if n.Pos >= 0 {
		return fmt.Sprintf("?%d", n.Pos)
	}
	return ":" + n.Name
}

// Sort direction tokens as produced by the external compiler. Anything other
// than "ascending" (or empty) sorts descending.
const (
	DirAscending  = "ascending"
	DirDescending = "descending"
)

// Order is one entry of the ordering list.
type Order struct {
	Expr *Ident
	// Direction is one of the Dir* tokens; empty defaults to ascending.
	Direction string
}

// A ResultExpr is one entry of the result/projection list: either an
// aggregate call or a field reference.
type ResultExpr interface {
	aResultExpr()
	String() string
}

// Agg is an aggregate call in the result list, e.g. count().
type Agg struct {
	Name string
	Args []Node
}

func (*Agg) aResultExpr()   {}
func (*Ident) aResultExpr() {}

func (a *Agg) String() string {
	args := make([]string, len(a.Args))
	for i, n := range a.Args {
		args[i] = n.String()
	}
	return fmt.Sprintf("%s(%s)", a.Name, strings.Join(args, ", "))
}

// A FromExpr is one entry of the source clause.
type FromExpr interface {
	aFromExpr()
}

// Candidate names the class being queried and its alias.
type Candidate struct {
	Class string
	Alias string
}

// Join marks a join in the source clause. The store cannot execute joins; the
// validator's pre-scan rejects any query whose from clause contains one.
type Join struct {
	Left, Right FromExpr
}

func (*Candidate) aFromExpr() {}
func (*Join) aFromExpr()      {}

// QueryType distinguishes what the query does with its matches.
type QueryType int

// Query types. Only Select and BulkDelete are executable.
const (
	Select QueryType = iota
	BulkDelete
	BulkUpdate
)

func (t QueryType) String() string {
	switch t {
	case Select:
		return "select"
	case BulkDelete:
		return "bulk delete"
	case BulkUpdate:
		return "bulk update"
	}
	return fmt.Sprintf("QueryType(%d)", int(t))
}

// A Compilation is the complete product of the external query-language
// compiler: the predicate tree plus ordering, result, source and grouping
// clauses, and the original query text for error messages. The engine treats
// it as read-only.
type Compilation struct {
	// Text is the single-string form of the query, carried into every error.
	Text  string
	Type  QueryType
	Class string
	// Alias is the candidate alias; a result expression equal to it selects
	// keys only.
	Alias    string
	From     []FromExpr
	Filter   Node
	Ordering []Order
	Result   []ResultExpr
	Grouping []Node
	Having   Node
}
