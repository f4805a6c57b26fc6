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

package exec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebay/treeline/query/compiler"
	"github.com/ebay/treeline/query/queryerror"
	"github.com/ebay/treeline/store"
	"github.com/ebay/treeline/store/mockstore"
)

// stream runs a plain whole-record scan against the mock and returns its
// stream.
func stream(t *testing.T, ms *mockstore.Store, scope *Scope) *StreamingResult {
	t.Helper()
	result, err := Execute(context.Background(), Spec{
		Store:    ms,
		Compiled: scanCompiled(compiler.WholeRecord),
		Scope:    scope,
	})
	require.NoError(t, err)
	require.Equal(t, Records, result.Kind)
	return result.Stream
}

func Test_Stream_NextToExhaustion(t *testing.T) {
	ms := &mockstore.Store{ScanRecords: []*store.Record{rec("a"), rec("b")}}
	s := stream(t, ms, nil)

	var names []string
	for {
		v, ok, err := s.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, v.(*store.Record).Properties["name"].(string))
	}
	assert.Equal(t, []string{"a", "b"}, names)

	// Past the end, Next keeps reporting exhaustion without new pulls.
	pulls := ms.Pulls()
	_, ok, err := s.Next()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, pulls, ms.Pulls())
}

func Test_Stream_GetPullsJustEnough(t *testing.T) {
	ms := &mockstore.Store{ScanRecords: []*store.Record{rec("a"), rec("b"), rec("c")}}
	s := stream(t, ms, nil)

	v, ok, err := s.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", v.(*store.Record).Properties["name"])
	assert.Equal(t, 2, ms.Pulls())

	// Already-loaded elements come back without store traffic.
	v, ok, err = s.Get(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", v.(*store.Record).Properties["name"])
	assert.Equal(t, 2, ms.Pulls())

	// Indexes past the end report not-ok once the stream exhausts.
	_, ok, err = s.Get(7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_Stream_SizeForcesConsumption(t *testing.T) {
	ms := &mockstore.Store{ScanRecords: []*store.Record{rec("a"), rec("b")}}
	s := stream(t, ms, nil)

	n, err := s.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, s.Loaded(), 2)
	// Size again is free.
	pulls := ms.Pulls()
	n, err = s.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, pulls, ms.Pulls())
}

func Test_Stream_ScopeFlushDisconnects(t *testing.T) {
	ms := &mockstore.Store{ScanRecords: []*store.Record{rec("a"), rec("b"), rec("c")}}
	scope := &Scope{}
	s := stream(t, ms, scope)

	v, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", v.(*store.Record).Properties["name"])

	scope.Flush()

	// Loaded elements survive the disconnect.
	require.Len(t, s.Loaded(), 1)
	assert.Equal(t, "a", s.Loaded()[0].(*store.Record).Properties["name"])

	// Anything needing the store fails.
	_, _, err = s.Next()
	assert.Equal(t, ErrDisconnected, err)
	_, err = s.Size()
	assert.Equal(t, ErrDisconnected, err)
	// And no further pulls reached the store.
	assert.Equal(t, 1, ms.Pulls())
}

func Test_Stream_RegisteredAfterFlushIsDisconnected(t *testing.T) {
	ms := &mockstore.Store{ScanRecords: []*store.Record{rec("a")}}
	scope := &Scope{}
	scope.Flush()

	s := stream(t, ms, scope)
	_, _, err := s.Next()
	assert.Equal(t, ErrDisconnected, err)
	assert.Equal(t, 0, ms.Pulls())
}

func Test_Stream_ContextCancelDisconnects(t *testing.T) {
	ms := &mockstore.Store{ScanRecords: []*store.Record{rec("a"), rec("b")}}
	ctx, cancel := context.WithCancel(context.Background())
	result, err := Execute(ctx, Spec{Store: ms, Compiled: scanCompiled(compiler.WholeRecord)})
	require.NoError(t, err)
	s := result.Stream

	_, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)

	cancel()
	_, _, err = s.Next()
	assert.Equal(t, ErrDisconnected, err)
	assert.Equal(t, 1, ms.Pulls())
}

func Test_Stream_PullErrorWraps(t *testing.T) {
	boom := errors.New("store down")
	ms := &mockstore.Store{
		ScanRecords: []*store.Record{rec("a"), rec("b")},
		PullErr:     boom,
		PullErrAt:   1,
	}
	s := stream(t, ms, nil)

	_, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)

	_, _, err = s.Next()
	var se *queryerror.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, boom, se.Err)
}

func Test_EmptyStream(t *testing.T) {
	s := EmptyStream()
	n, err := s.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, ok, err := s.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_Scope_FlushIsIdempotent(t *testing.T) {
	scope := &Scope{}
	runs := 0
	scope.OnFlush(func() { runs++ })
	scope.Flush()
	scope.Flush()
	assert.Equal(t, 1, runs)
}

func Test_Scope_FlushRunsNewestFirst(t *testing.T) {
	scope := &Scope{}
	var order []int
	scope.OnFlush(func() { order = append(order, 1) })
	scope.OnFlush(func() { order = append(order, 2) })
	scope.Flush()
	assert.Equal(t, []int{2, 1}, order)
}
