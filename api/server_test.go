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

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebay/treeline/meta"
	"github.com/ebay/treeline/query"
	"github.com/ebay/treeline/store"
	"github.com/ebay/treeline/store/memstore"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	reg := meta.NewRegistry()
	require.NoError(t, reg.Register(&meta.Class{
		Name: "com.example.Customer",
		Members: []*meta.Member{
			{Name: "id", Type: meta.KeyType, PrimaryKey: true},
			{Name: "name", Type: meta.String},
			{Name: "age", Type: meta.Int},
		},
	}))
	db := memstore.New()
	db.PutMulti([]*store.Record{
		{
			Key:        store.NewKey("Customer", "alice", nil),
			Properties: map[string]interface{}{"name": "alice", "age": int64(40)},
		},
		{
			Key:        store.NewKey("Customer", "bob", nil),
			Properties: map[string]interface{}{"name": "bob", "age": int64(25)},
		},
	})
	return New("localhost:0", query.New(query.Config{Meta: reg, Store: db}))
}

func postQuery(t *testing.T, s *Server, form url.Values) (int, queryResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/q", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.queryHTTP(w, req, nil)

	var resp queryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return w.Code, resp
}

func Test_HTTP_Select(t *testing.T) {
	s := testServer(t)
	code, resp := postQuery(t, s, url.Values{
		"q": {"SELECT * FROM com.example.Customer WHERE name == 'alice'"},
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, resp.Error)
	assert.Equal(t, 1, resp.NumResults)
	require.Len(t, resp.Results, 1)
	row := resp.Results[0].(map[string]interface{})
	assert.Equal(t, "Customer:'alice'", row["__key__"])
	assert.Equal(t, "alice", row["name"])
}

func Test_HTTP_Params(t *testing.T) {
	s := testServer(t)
	code, resp := postQuery(t, s, url.Values{
		"q":      {"SELECT * FROM com.example.Customer WHERE age >= :minAge ORDER BY age"},
		"params": {`{"minAge": 10}`},
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, resp.Error)
	assert.Equal(t, 2, resp.NumResults)
}

func Test_HTTP_Count(t *testing.T) {
	s := testServer(t)
	code, resp := postQuery(t, s, url.Values{
		"q": {"SELECT count() FROM com.example.Customer"},
	})
	assert.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Count)
	assert.Equal(t, 2, *resp.Count)
	assert.Nil(t, resp.Deleted)
	assert.Empty(t, resp.Results)
}

func Test_HTTP_Delete(t *testing.T) {
	s := testServer(t)
	code, resp := postQuery(t, s, url.Values{
		"q": {"DELETE FROM com.example.Customer WHERE name == 'bob'"},
	})
	assert.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Deleted)
	assert.Equal(t, 1, *resp.Deleted)

	code, resp = postQuery(t, s, url.Values{
		"q": {"SELECT count() FROM com.example.Customer"},
	})
	assert.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Count)
	assert.Equal(t, 1, *resp.Count)
}

func Test_HTTP_ParseError(t *testing.T) {
	s := testServer(t)
	code, resp := postQuery(t, s, url.Values{"q": {"SELEC bogus"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Error, "cannot parse")
	assert.Equal(t, "SELEC bogus", resp.QueryString)
}

func Test_HTTP_RejectedQuery(t *testing.T) {
	s := testServer(t)
	code, resp := postQuery(t, s, url.Values{
		"q": {"SELECT * FROM com.example.Customer WHERE name == 'a' OR name == 'b'"},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Error, "disjunctions")
}

func Test_HTTP_BadParams(t *testing.T) {
	s := testServer(t)
	code, resp := postQuery(t, s, url.Values{
		"q":      {"SELECT * FROM com.example.Customer"},
		"params": {"{not json"},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Error, "unable to parse params")
}

func Test_HTTP_LastQuery(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	s.lastQuery(w, httptest.NewRequest(http.MethodGet, "/lastQuery", nil), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, resp := postQuery(t, s, url.Values{
		"q": {"SELECT * FROM com.example.Customer WHERE age > 30"},
	})
	require.Empty(t, resp.Error)

	w = httptest.NewRecorder()
	s.lastQuery(w, httptest.NewRequest(http.MethodGet, "/lastQuery", nil), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SCAN Customer WHERE age > 30\n", w.Body.String())
}

func Test_JSONMaterializer(t *testing.T) {
	key := store.NewKey("Customer", "alice", nil)
	rec := &store.Record{
		Key: key,
		Properties: map[string]interface{}{
			"name":   "alice",
			"friend": store.NewKey("Customer", "bob", nil),
		},
	}
	m := jsonMaterializer{}

	whole, err := m.Whole(rec)
	require.NoError(t, err)
	row := whole.(map[string]interface{})
	assert.Equal(t, "Customer:'alice'", row["__key__"])
	// Key-valued properties render in their portable form.
	assert.Equal(t, "Customer:'bob'", row["friend"])

	keyOnly, err := m.KeyOnly(key)
	require.NoError(t, err)
	assert.Equal(t, "Customer:'alice'", keyOnly)
}
