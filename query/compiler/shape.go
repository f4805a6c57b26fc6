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
	"strings"

	"github.com/ebay/treeline/meta"
	"github.com/ebay/treeline/query/ast"
	"github.com/ebay/treeline/query/queryerror"
)

// Shape classifies what a query produces per match.
type Shape int

// Result shapes.
const (
	// WholeRecord materializes complete objects.
	WholeRecord Shape = iota + 1
	// KeysOnly materializes keys; selected when the result list is exactly
	// the candidate alias, and always used for bulk deletes.
	KeysOnly
	// FieldProjection materializes a subset of properties.
	FieldProjection
	// Count produces a single number.
	Count
)

func (s Shape) String() string {
	switch s {
	case WholeRecord:
		return "whole record"
	case KeysOnly:
		return "keys only"
	case FieldProjection:
		return "projection"
	case Count:
		return "count"
	}
	return "unknown shape"
}

// A FieldPath is one projected field: the path as written (candidate alias
// stripped), the member it resolved to and the store property it reads.
type FieldPath struct {
	Path     []string
	Member   *meta.Member
	Property string
}

func (f FieldPath) String() string {
	return strings.Join(f.Path, ".")
}

// ValidateShape runs the structural pre-scan over the non-predicate clauses
// and derives the result shape. Joins, grouping and having clauses are
// rejected here, before the predicate tree is even looked at.
func ValidateShape(comp *ast.Compilation, class *meta.Class) (Shape, []FieldPath, error) {
	for _, from := range comp.From {
		if err := checkNotJoin(comp.Text, from); err != nil {
			return 0, nil, err
		}
	}
	if len(comp.Grouping) > 0 {
		return 0, nil, queryerror.Featuref(comp.Text,
			"the store cannot fulfill queries with grouping")
	}
	if comp.Having != nil {
		return 0, nil, queryerror.Featuref(comp.Text,
			"the store cannot fulfill queries with a having clause")
	}

	shape := WholeRecord
	var projection []FieldPath
	for _, expr := range comp.Result {
		switch e := expr.(type) {
		case *ast.Agg:
			if !strings.EqualFold(e.Name, "count") {
				return 0, nil, queryerror.Operatorf(comp.Text, e.Name,
					"the only aggregate the store can fulfill is count()")
			}
			if len(e.Args) > 0 {
				return 0, nil, queryerror.Featuref(comp.Text,
					"count() takes no arguments")
			}
			if len(projection) > 0 {
				return 0, nil, queryerror.Featuref(comp.Text,
					"cannot combine aggregate results with row results")
			}
			shape = Count
		case *ast.Ident:
			if shape == Count {
				return 0, nil, queryerror.Featuref(comp.Text,
					"cannot combine aggregate results with row results")
			}
			path := stripAlias(e.Path, comp.Alias)
			if len(path) == 1 && path[0] == comp.Alias {
				// The bare candidate alias selects keys.
				if shape == WholeRecord {
					shape = KeysOnly
				}
				continue
			}
			member, err := class.MemberForPath(path)
			if err != nil {
				return 0, nil, queryerror.Validationf(comp.Text,
					"can only select properties of a sub-object if the sub-object is embedded (field %s)",
					strings.Join(path, "."))
			}
			if member == nil {
				return 0, nil, noMetaData(comp.Text, path, class)
			}
			if member.EmbeddedIn != nil || !member.PrimaryKey {
				shape = FieldProjection
			} else if shape == WholeRecord {
				// Selecting just the primary-key field still only needs keys.
				shape = KeysOnly
			}
			projection = append(projection, FieldPath{
				Path:     path,
				Member:   member,
				Property: propertyFor(member),
			})
		}
	}
	return shape, projection, nil
}

func checkNotJoin(text string, from ast.FromExpr) error {
	if _, ok := from.(*ast.Join); ok {
		return queryerror.Featuref(text, "the store cannot fulfill joins")
	}
	return nil
}

// stripAlias drops a leading candidate-alias segment from a multi-segment
// field path. A single-segment path is left alone even when it equals the
// alias; callers that care about the bare alias check for it themselves.
func stripAlias(path []string, alias string) []string {
	if len(path) > 1 && alias != "" && path[0] == alias {
		return path[1:]
	}
	return path
}

func noMetaData(text string, path []string, class *meta.Class) error {
	return queryerror.Validationf(text,
		"no meta-data for member named %s on class %s; are you sure you provided the correct member name in your query?",
		strings.Join(path, "."), class.Name)
}
