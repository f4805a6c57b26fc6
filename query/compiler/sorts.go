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

	"github.com/ebay/treeline/query/ast"
	"github.com/ebay/treeline/query/queryerror"
	"github.com/ebay/treeline/store"
)

// compileSorts translates the ordering list into the query's composite sort.
// Clause order is preserved; the primary key sorts under the reserved key
// property; the ancestor field has no stable ordering and is rejected.
func (cc *compilation) compileSorts() error {
	for _, order := range cc.comp.Ordering {
		path := stripAlias(order.Expr.Path, cc.comp.Alias)
		member, err := cc.class.MemberForPath(path)
		if err != nil {
			return queryerror.Validationf(cc.text(),
				"can only sort by properties of a sub-object if the sub-object is embedded (field %s)",
				strings.Join(path, "."))
		}
		if member == nil {
			return noMetaData(cc.text(), path, cc.class)
		}
		if member.ParentKey {
			return queryerror.Featuref(cc.text(), "cannot sort by parent")
		}
		direction := store.Ascending
		if order.Direction != "" && order.Direction != ast.DirAscending {
			direction = store.Descending
		}
		cc.query.Sorts = append(cc.query.Sorts, store.Sort{
			Property:  propertyFor(member),
			Direction: direction,
		})
	}
	return nil
}
