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

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_KeyEncode(t *testing.T) {
	root := NewKey("Customer", "alice", nil)
	assert.Equal(t, "Customer:'alice'", root.Encode())

	child := NewIDKey("Order", 42, root)
	assert.Equal(t, "Customer:'alice'/Order:42", child.Encode())

	grandchild := NewKey("Line", "a1", child)
	assert.Equal(t, "Customer:'alice'/Order:42/Line:'a1'", grandchild.Encode())
}

func Test_DecodeKey(t *testing.T) {
	key, err := DecodeKey("Customer:'alice'/Order:42")
	require.NoError(t, err)
	assert.Equal(t, "Order", key.Kind())
	assert.Equal(t, int64(42), key.ID())
	assert.Equal(t, "", key.Name())
	require.NotNil(t, key.Parent())
	assert.Equal(t, "Customer", key.Parent().Kind())
	assert.Equal(t, "alice", key.Parent().Name())
	assert.Nil(t, key.Parent().Parent())
}

func Test_KeyRoundTrips(t *testing.T) {
	keys := []*Key{
		NewKey("Customer", "alice", nil),
		NewIDKey("Customer", 7, nil),
		NewKey("Line", "x", NewIDKey("Order", 42, NewKey("Customer", "alice", nil))),
	}
	for _, key := range keys {
		decoded, err := DecodeKey(key.Encode())
		require.NoError(t, err)
		assert.True(t, decoded.Equal(key), "key %v", key)
	}
}

func Test_DecodeKeyErrors(t *testing.T) {
	for _, encoded := range []string{
		"",
		"Customer",
		"Customer:",
		":42",
		"Customer:'alice",
		"Customer:notanumber",
		"Customer:'alice'/",
	} {
		_, err := DecodeKey(encoded)
		assert.Error(t, err, "encoded %q", encoded)
	}
}

func Test_KeyEqual(t *testing.T) {
	a := NewKey("Order", "o1", NewKey("Customer", "alice", nil))
	b := NewKey("Order", "o1", NewKey("Customer", "alice", nil))
	c := NewKey("Order", "o1", NewKey("Customer", "bob", nil))
	root := NewKey("Order", "o1", nil)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(root))
	assert.False(t, root.Equal(a))
	assert.False(t, a.Equal(nil))
}

func Test_HasAncestor(t *testing.T) {
	alice := NewKey("Customer", "alice", nil)
	order := NewIDKey("Order", 42, alice)
	line := NewKey("Line", "a", order)

	assert.True(t, line.HasAncestor(alice))
	assert.True(t, line.HasAncestor(order))
	// A key is its own ancestor.
	assert.True(t, line.HasAncestor(line))
	assert.False(t, alice.HasAncestor(line))
	assert.False(t, line.HasAncestor(NewKey("Customer", "bob", nil)))
}
