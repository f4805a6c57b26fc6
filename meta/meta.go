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

// Package meta describes persistent classes to the query engine: how class
// names map to store kinds, how member names map to store properties, and
// which members carry the primary key, the ancestor pointer, an embedded
// value or a relation. The engine only ever consults the Provider interface;
// Registry is the standard in-process implementation.
package meta

import (
	"fmt"
	"strings"
	"sync"
)

// Type classifies a member's declared value type. The compiler uses it to
// pick value coercions; the store itself is schemaless.
type Type int

// Member value types.
const (
	String Type = iota + 1
	Int
	Float
	Bool
	Bytes
	Decimal
	Char
	Enum
	Time
	KeyType
	Embedded
	Relation
)

func (t Type) String() string {
	names := map[Type]string{
		String: "string", Int: "int", Float: "float", Bool: "bool",
		Bytes: "bytes", Decimal: "decimal", Char: "char", Enum: "enum",
		Time: "time", KeyType: "key", Embedded: "embedded", Relation: "relation",
	}
	if s, ok := names[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// A Member describes one persistent field of a class.
type Member struct {
	// Name is the field name as it appears in query field paths.
	Name string
	// Property overrides the store property name. Empty means the default
	// (the member name itself) applies.
	Property string
	Type     Type
	// PrimaryKey marks the member holding the record's own key.
	PrimaryKey bool
	// ParentKey marks the member pointing at the record's ancestor.
	ParentKey bool
	// Class names the related class for Relation members.
	Class string
	// Members holds the nested members of an Embedded value.
	Members []*Member
	// EmbeddedIn is set on nested members and points at the embedding
	// member. It is filled in by Registry.Register.
	EmbeddedIn *Member
}

// PropertyName returns the store property the member maps to: the explicit
// override when present, otherwise the member name.
func (m *Member) PropertyName() string {
	if m.Property != "" {
		return m.Property
	}
	return m.Name
}

// A Class describes one persistent type.
type Class struct {
	// Name is the full type name queries refer to.
	Name string
	// Kind is the store kind records of this class live under. Empty means
	// the default applies: the last dot-separated segment of Name.
	Kind    string
	Members []*Member
}

// KindName returns the store kind for the class.
func (c *Class) KindName() string {
	if c.Kind != "" {
		return c.Kind
	}
	if idx := strings.LastIndexByte(c.Name, '.'); idx >= 0 {
		return c.Name[idx+1:]
	}
	return c.Name
}

// Member returns the direct member with the given name, or nil.
func (c *Class) Member(name string) *Member {
	for _, m := range c.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// PrimaryKeyMember returns the class's primary-key member, or nil.
func (c *Class) PrimaryKeyMember() *Member {
	for _, m := range c.Members {
		if m.PrimaryKey {
			return m
		}
	}
	return nil
}

// ErrNotEmbedded is returned by MemberForPath when a multi-segment path
// descends through a member that is not an embedded value.
var ErrNotEmbedded = fmt.Errorf("meta: can only descend into embedded members")

// MemberForPath resolves a field path, descending across embedded-value
// boundaries. It returns (nil, nil) when the first segment names no member,
// and ErrNotEmbedded when a later segment descends through a non-embedded
// member.
func (c *Class) MemberForPath(path []string) (*Member, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("meta: empty field path")
	}
	member := c.Member(path[0])
	if member == nil {
		return nil, nil
	}
	for _, seg := range path[1:] {
		if member.Type != Embedded {
			return nil, ErrNotEmbedded
		}
		var next *Member
		for _, nested := range member.Members {
			if nested.Name == seg {
				next = nested
				break
			}
		}
		if next == nil {
			return nil, nil
		}
		member = next
	}
	return member, nil
}

// Provider resolves class names to metadata. It is the engine's only window
// into the object model.
type Provider interface {
	// ClassFor returns the metadata for the named class, or nil when the
	// class is unknown.
	ClassFor(name string) *Class
}

// Registry is a thread-safe Provider fed by explicit Register calls.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{classes: map[string]*Class{}}
}

// Register adds a class, validating its shape: at most one primary-key member
// and at most one ancestor pointer, relation members must name a class, and
// only embedded members may carry nested members.
func (r *Registry) Register(c *Class) error {
	if c.Name == "" {
		return fmt.Errorf("meta: class has no name")
	}
	pks, parents := 0, 0
	var link func(parent *Member, members []*Member) error
	link = func(parent *Member, members []*Member) error {
		for _, m := range members {
			if m.Name == "" {
				return fmt.Errorf("meta: class %s has a member with no name", c.Name)
			}
			m.EmbeddedIn = parent
			if m.PrimaryKey {
				pks++
			}
			if m.ParentKey {
				parents++
			}
			if m.Type == Relation && m.Class == "" {
				return fmt.Errorf("meta: relation member %s.%s names no class", c.Name, m.Name)
			}
			if len(m.Members) > 0 && m.Type != Embedded {
				return fmt.Errorf("meta: member %s.%s has nested members but is not embedded", c.Name, m.Name)
			}
			if err := link(m, m.Members); err != nil {
				return err
			}
		}
		return nil
	}
	if err := link(nil, c.Members); err != nil {
		return err
	}
	if pks > 1 {
		return fmt.Errorf("meta: class %s has %d primary-key members", c.Name, pks)
	}
	if parents > 1 {
		return fmt.Errorf("meta: class %s has %d ancestor members", c.Name, parents)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[c.Name] = c
	return nil
}

// ClassFor implements Provider.
func (r *Registry) ClassFor(name string) *Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.classes[name]
}
