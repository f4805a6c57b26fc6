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

// Package parser turns filter-language text into the compilation form the
// query engine consumes. The language is a small JDOQL-flavored surface:
//
//	SELECT * FROM com.example.Customer c WHERE c.name.startsWith("ya")
//	  ORDER BY c.name DESC RANGE 10,25
//	SELECT count() FROM com.example.Customer WHERE age >= 21
//	DELETE FROM com.example.Customer WHERE lastLogin < :cutoff
//
// The parser deliberately accepts operators the store cannot execute (OR,
// !=, LIKE, NOT); rejecting them is the engine's job, so the error the caller
// sees is the engine's, not a parse error.
package parser

import (
	"fmt"
	"math"
	"strings"

	p "github.com/vektah/goparsify"

	"github.com/ebay/treeline/query/ast"
)

// Parsed is the product of one Parse call: the compilation plus the result
// window the RANGE clause asked for.
type Parsed struct {
	Compilation   *ast.Compilation
	FromInclusive int64
	ToExclusive   int64
}

// queryRoot is the parser function called by Parse.
var queryRoot p.Parser

// star marks "SELECT *".
type star struct{}

// cmpTail is the operator+operand tail of a comparison.
type cmpTail struct {
	op    ast.Op
	right ast.Node
}

// callTail is the parenthesized argument tail of a method invocation.
type callTail struct {
	args []ast.Node
}

// rangeWindow is the product of a RANGE clause.
type rangeWindow struct {
	from, to int64
}

func init() {
	// If you need to debug what the parser is doing, build with -tags debug;
	// see https://github.com/vektah/goparsify#debugging-parsers.

	id := p.Chars("A-Za-z0-9_$", 1)
	identPath := repeatOneOrMore(id, ".").Map(func(n *p.Result) {
		path := make([]string, len(n.Child))
		for i, c := range n.Child {
			path[i] = c.Token
		}
		n.Result = path
	})

	// Forward references for the recursive expression grammar.
	var expr, operand p.Parser
	exprRef := p.NewParser("expression", func(s *p.State, r *p.Result) { expr(s, r) })
	operandRef := p.NewParser("operand", func(s *p.State, r *p.Result) { operand(s, r) })

	argList := repeatZeroOrMore(operandRef, ",")

	// A field path, optionally invoked: name.startsWith("ya") parses as a
	// call whose receiver is the leading path. The argument tail maps to a
	// concrete result so the outer callback can tell Ident from Call by
	// type alone.
	callArgs := p.Seq("(", p.Cut(), argList, ")").Map(func(n *p.Result) {
		tail := callTail{}
		args := n.Child[2]
		for i := range args.Child {
			tail.args = append(tail.args, args.Child[i].Result.(ast.Node))
		}
		n.Result = tail
	})
	pathOrCall := p.Seq(identPath, p.Maybe(callArgs)).Map(func(n *p.Result) {
		path := n.Child[0].Result.([]string)
		tail, invoked := n.Child[1].Result.(callTail)
		if !invoked {
			n.Result = &ast.Ident{Path: path}
			return
		}
		call := &ast.Call{Name: path[len(path)-1], Args: tail.args}
		if len(path) > 1 {
			call.Receiver = &ast.Ident{Path: path[:len(path)-1]}
		}
		n.Result = call
	})

	literalString := p.StringLit(`"'`).Map(func(n *p.Result) {
		n.Result = &ast.Literal{Value: n.Token}
	})
	literalNumber := p.NumberLit().Map(func(n *p.Result) {
		n.Result = &ast.Literal{Value: n.Result}
	})
	literalBool := p.Any(keyword("true"), keyword("false")).Map(func(n *p.Result) {
		n.Result = &ast.Literal{Value: strings.EqualFold(n.Token, "true")}
	})
	literalNull := keyword("null").Map(func(n *p.Result) {
		n.Result = &ast.Literal{Value: nil}
	})
	literal := p.Any(literalString, literalNumber, literalBool, literalNull)

	param := p.Seq(":", id).Map(func(n *p.Result) {
		n.Result = &ast.Param{Name: n.Child[1].Token, Pos: -1}
	})

	operand = p.Any(literal, param, pathOrCall)

	cmpOp := p.Any(
		p.Exact("==").Map(bindOp(ast.OpEqual)),
		p.Exact("!=").Map(bindOp(ast.OpNotEqual)),
		p.Exact(">=").Map(bindOp(ast.OpGreaterOrEqual)),
		p.Exact("<=").Map(bindOp(ast.OpLessOrEqual)),
		p.Exact(">").Map(bindOp(ast.OpGreater)),
		p.Exact("<").Map(bindOp(ast.OpLess)),
		p.Exact("=").Map(bindOp(ast.OpEqual)),
		keyword("like").Map(bindOp(ast.OpLike)),
		keyword("between").Map(bindOp(ast.OpBetween)),
	)

	predicate := p.Seq(operandRef, p.Maybe(p.Seq(cmpOp, operandRef).Map(func(n *p.Result) {
		n.Result = cmpTail{
			op:    n.Child[0].Result.(ast.Op),
			right: n.Child[1].Result.(ast.Node),
		}
	}))).Map(func(n *p.Result) {
		left := n.Child[0].Result.(ast.Node)
		tail, ok := n.Child[1].Result.(cmpTail)
		if !ok {
			n.Result = left
			return
		}
		n.Result = &ast.Compare{Op: tail.op, Left: left, Right: tail.right}
	})

	var primary p.Parser
	primaryRef := p.NewParser("predicate", func(s *p.State, r *p.Result) { primary(s, r) })
	notExpr := p.Seq(p.Any("!", keyword("not")), primaryRef).Map(func(n *p.Result) {
		n.Result = &ast.Unary{Op: ast.OpNot, Expr: n.Child[1].Result.(ast.Node)}
	})
	parenExpr := p.Seq("(", p.Cut(), exprRef, ")").Map(child(2))
	primary = p.Any(parenExpr, notExpr, predicate)

	andExpr := repeatOneOrMore(primaryRef, p.Any(keyword("and"), p.Exact("&&"))).Map(
		foldBinary(func(l, r ast.Node) ast.Node { return &ast.And{Left: l, Right: r} }))
	expr = repeatOneOrMore(andExpr, p.Any(keyword("or"), p.Exact("||"))).Map(
		foldBinary(func(l, r ast.Node) ast.Node { return &ast.Or{Left: l, Right: r} }))

	countAgg := p.Seq(keyword("count"), "(", ")").Map(func(n *p.Result) {
		n.Result = &ast.Agg{Name: "count"}
	})
	selectItem := p.Any(countAgg, identPath.Map(func(n *p.Result) {
		n.Result = &ast.Ident{Path: n.Result.([]string)}
	}))
	selectList := p.Any(
		p.Exact("*").Map(func(n *p.Result) { n.Result = star{} }),
		repeatOneOrMore(selectItem, ",").Map(func(n *p.Result) {
			exprs := make([]ast.ResultExpr, len(n.Child))
			for i := range n.Child {
				exprs[i] = n.Child[i].Result.(ast.ResultExpr)
			}
			n.Result = exprs
		}),
	)

	className := identPath.Map(func(n *p.Result) {
		n.Result = strings.Join(n.Result.([]string), ".")
	})
	// The alias follows AS, or sits bare after the class, JDOQL style:
	// FROM com.example.Customer c. A bare alias must not steal the next
	// clause's keyword.
	alias := p.Maybe(p.Any(
		p.Seq(keyword("as"), id).Map(func(n *p.Result) {
			n.Result = n.Child[1].Token
		}),
		aliasWord(),
	))

	whereClause := p.Maybe(p.Seq(keyword("where"), p.Cut(), exprRef).Map(child(2)))

	direction := p.Maybe(p.Any(
		p.Any(keyword("ascending"), keyword("asc")).Map(bindDirection(ast.DirAscending)),
		p.Any(keyword("descending"), keyword("desc")).Map(bindDirection(ast.DirDescending)),
	))
	orderItem := p.Seq(identPath, direction).Map(func(n *p.Result) {
		o := ast.Order{Expr: &ast.Ident{Path: n.Child[0].Result.([]string)}}
		if dir, ok := n.Child[1].Result.(string); ok {
			o.Direction = dir
		}
		n.Result = o
	})
	orderClause := p.Maybe(p.Seq(keyword("order"), p.Cut(), keyword("by"),
		repeatOneOrMore(orderItem, ",")).Map(func(n *p.Result) {
		items := n.Child[3]
		orders := make([]ast.Order, len(items.Child))
		for i := range items.Child {
			orders[i] = items.Child[i].Result.(ast.Order)
		}
		n.Result = orders
	}))

	rangeClause := p.Maybe(p.Seq(keyword("range"), p.Cut(), int64Literal(), ",", int64Literal()).Map(func(n *p.Result) {
		n.Result = rangeWindow{
			from: n.Child[2].Result.(int64),
			to:   n.Child[4].Result.(int64),
		}
	}))

	selectQuery := p.Seq(keyword("select"), p.Cut(), selectList, keyword("from"),
		className, alias, whereClause, orderClause, rangeClause).Map(func(n *p.Result) {
		parsed := newParsed(ast.Select, n.Child[4].Result.(string), &n.Child[5])
		comp := parsed.Compilation
		if items, ok := n.Child[2].Result.([]ast.ResultExpr); ok {
			comp.Result = items
		}
		comp.Filter, _ = n.Child[6].Result.(ast.Node)
		comp.Ordering, _ = n.Child[7].Result.([]ast.Order)
		applyRange(parsed, &n.Child[8])
		n.Result = parsed
	})

	deleteQuery := p.Seq(keyword("delete"), p.Cut(), keyword("from"),
		className, alias, whereClause, rangeClause).Map(func(n *p.Result) {
		parsed := newParsed(ast.BulkDelete, n.Child[3].Result.(string), &n.Child[4])
		parsed.Compilation.Filter, _ = n.Child[5].Result.(ast.Node)
		applyRange(parsed, &n.Child[6])
		n.Result = parsed
	})

	queryRoot = p.Any(selectQuery, deleteQuery)
}

// Parse turns filter-language text into a Parsed compilation.
func Parse(text string) (*Parsed, error) {
	result, err := p.Run(queryRoot, text)
	if err != nil {
		return nil, fmt.Errorf("parser: cannot parse %q: %v", text, err)
	}
	parsed := result.(*Parsed)
	parsed.Compilation.Text = text
	return parsed, nil
}

func newParsed(qt ast.QueryType, class string, aliasResult *p.Result) *Parsed {
	aliasName := "this"
	if s, ok := aliasResult.Result.(string); ok && s != "" {
		aliasName = s
	}
	return &Parsed{
		Compilation: &ast.Compilation{
			Type:  qt,
			Class: class,
			Alias: aliasName,
			From:  []ast.FromExpr{&ast.Candidate{Class: class, Alias: aliasName}},
		},
		FromInclusive: 0,
		ToExclusive:   math.MaxInt64,
	}
}

func applyRange(parsed *Parsed, rangeResult *p.Result) {
	if w, ok := rangeResult.Result.(rangeWindow); ok {
		parsed.FromInclusive = w.from
		parsed.ToExclusive = w.to
	}
}

// child returns a Map callback lifting one child's result.
func child(i int) func(*p.Result) {
	return func(n *p.Result) {
		n.Result = n.Child[i].Result
	}
}

func bindOp(op ast.Op) func(*p.Result) {
	return func(n *p.Result) {
		n.Result = op
	}
}

func bindDirection(dir string) func(*p.Result) {
	return func(n *p.Result) {
		n.Result = dir
	}
}

// foldBinary reduces a one-or-more repeat into a left-nested binary tree.
func foldBinary(combine func(l, r ast.Node) ast.Node) func(*p.Result) {
	return func(n *p.Result) {
		node := n.Child[0].Result.(ast.Node)
		for i := 1; i < len(n.Child); i++ {
			node = combine(node, n.Child[i].Result.(ast.Node))
		}
		n.Result = node
	}
}
