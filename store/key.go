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

// Package store defines the native query vocabulary of the hierarchical
// key-value store: keys, records, filters, sorts and the Client interface
// that store implementations expose. The store's vocabulary is deliberately
// narrow; anything it can't express is rejected by the query compiler rather
// than emulated.
package store

import (
	"fmt"
	"strconv"
	"strings"
)

// KeyProperty is the reserved property name that addresses a record's key in
// filters and sorts.
const KeyProperty = "__key__"

// A Key identifies a record. Keys form chains: Parent links a record to its
// ancestor, terminating at the root of its entity group. A key has either a
// string name or a numeric id, never both.
type Key struct {
	kind   string
	name   string
	id     int64
	parent *Key
}

// NewKey returns a key with a string name.
func NewKey(kind, name string, parent *Key) *Key {
	return &Key{kind: kind, name: name, parent: parent}
}

// NewIDKey returns a key with a numeric id.
func NewIDKey(kind string, id int64, parent *Key) *Key {
	return &Key{kind: kind, id: id, parent: parent}
}

// Kind returns the store-level type name the key's record belongs to.
func (k *Key) Kind() string { return k.kind }

// Name returns the key's string name, or "" if the key is numeric.
func (k *Key) Name() string { return k.name }

// ID returns the key's numeric id, or 0 if the key is named.
func (k *Key) ID() int64 { return k.id }

// Parent returns the key's immediate ancestor, or nil for an entity-group
// root.
func (k *Key) Parent() *Key { return k.parent }

// Equal reports whether two keys address the same record, comparing the full
// ancestor chain.
func (k *Key) Equal(other *Key) bool {
	for k != nil && other != nil {
		if k.kind != other.kind || k.name != other.name || k.id != other.id {
			return false
		}
		k, other = k.parent, other.parent
	}
	return k == nil && other == nil
}

// HasAncestor reports whether 'ancestor' appears in the key's ancestor chain.
// A key is considered its own ancestor.
func (k *Key) HasAncestor(ancestor *Key) bool {
	for cur := k; cur != nil; cur = cur.parent {
		if cur.Equal(ancestor) {
			return true
		}
	}
	return false
}

// Encode returns the key in its portable string form: the ancestor path from
// root to leaf, one kind:identifier pair per segment. Names are quoted so
// that encoded keys order and compare unambiguously.
func (k *Key) Encode() string {
	var segments []string
	for cur := k; cur != nil; cur = cur.parent {
		var seg string
		if cur.name != "" {
			seg = cur.kind + ":'" + cur.name + "'"
		} else {
			seg = cur.kind + ":" + strconv.FormatInt(cur.id, 10)
		}
		segments = append(segments, seg)
	}
	// segments were collected leaf first
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, "/")
}

// String returns the same form as Encode.
func (k *Key) String() string { return k.Encode() }

// DecodeKey parses the string form produced by Encode.
func DecodeKey(encoded string) (*Key, error) {
	if encoded == "" {
		return nil, fmt.Errorf("store: cannot decode an empty key")
	}
	var key *Key
	for _, seg := range strings.Split(encoded, "/") {
		idx := strings.IndexByte(seg, ':')
		if idx <= 0 || idx == len(seg)-1 {
			return nil, fmt.Errorf("store: malformed key segment %q in %q", seg, encoded)
		}
		kind, ident := seg[:idx], seg[idx+1:]
		if strings.HasPrefix(ident, "'") {
			if len(ident) < 2 || !strings.HasSuffix(ident, "'") {
				return nil, fmt.Errorf("store: malformed key name %q in %q", ident, encoded)
			}
			key = NewKey(kind, ident[1:len(ident)-1], key)
			continue
		}
		id, err := strconv.ParseInt(ident, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("store: malformed key id %q in %q", ident, encoded)
		}
		key = NewIDKey(kind, id, key)
	}
	return key, nil
}
