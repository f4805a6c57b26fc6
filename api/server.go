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

// Package api exposes the query engine over HTTP. This is a demo and
// diagnostics surface, not a supported integration point; programs should
// embed the engine directly.
package api

import (
	"encoding/json"
	"net/http"
	_ "net/http/pprof" // enable pprof endpoints
	"strings"

	"github.com/julienschmidt/httprouter"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/ebay/treeline/query"
	"github.com/ebay/treeline/query/compiler"
	"github.com/ebay/treeline/query/exec"
	"github.com/ebay/treeline/query/parser"
	"github.com/ebay/treeline/util/web"
)

// Server serves the HTTP API for one query engine.
type Server struct {
	addr   string
	engine *query.Engine
}

// New returns a Server that will listen on addr.
func New(addr string, engine *query.Engine) *Server {
	return &Server{addr: addr, engine: engine}
}

// Run starts listening for HTTP requests. It blocks until the listener fails.
func (s *Server) Run() error {
	m := httprouter.New()
	m.POST("/q", s.queryHTTP)
	m.GET("/lastQuery", s.lastQuery)
	// prometheus metrics
	m.Handler("GET", "/metrics", promhttp.Handler())

	m.NotFound = http.DefaultServeMux
	logger := func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("[API] %v %v", r.Method, r.URL)
		m.ServeHTTP(w, r)
	}
	return http.ListenAndServe(s.addr, http.HandlerFunc(logger))
}

// queryResponse holds the JSON response for HTTP queries.
type queryResponse struct {
	Error       string        `json:"error,omitempty"`
	QueryString string        `json:"query"`
	Count       *int          `json:"count,omitempty"`
	Deleted     *int          `json:"deleted,omitempty"`
	NumResults  int           `json:"numResults"`
	Results     []interface{} `json:"results,omitempty"`
}

// queryHTTP runs the filter-language query in the "q" form field. Named
// parameters may be bound through a JSON object in the "params" field.
func (s *Server) queryHTTP(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	span, ctx := opentracing.StartSpanFromContext(r.Context(), "api: query")
	defer span.Finish()

	resp := queryResponse{}
	status := http.StatusOK
	// Always write out JSON, even for errors.
	defer func() {
		web.WriteJSON(w, status, resp)
	}()

	if err := r.ParseForm(); err != nil {
		resp.Error = "unable to parse POST data: " + err.Error()
		status = http.StatusBadRequest
		return
	}
	resp.QueryString = r.Form.Get("q")
	parsed, err := parser.Parse(resp.QueryString)
	if err != nil {
		resp.Error = err.Error()
		status = http.StatusBadRequest
		return
	}
	var params compiler.Params
	if raw := r.Form.Get("params"); raw != "" {
		if err := json.NewDecoder(strings.NewReader(raw)).Decode(&params.Named); err != nil {
			resp.Error = "unable to parse params: " + err.Error()
			status = http.StatusBadRequest
			return
		}
	}

	scope := &exec.Scope{}
	defer scope.Flush()
	req := query.NewRequest(parsed.Compilation)
	req.Params = params
	req.FromInclusive = parsed.FromInclusive
	req.ToExclusive = parsed.ToExclusive
	req.Scope = scope
	req.Materializer = jsonMaterializer{}

	result, err := s.engine.Execute(ctx, req)
	if err != nil {
		resp.Error = err.Error()
		status = http.StatusBadRequest
		return
	}
	switch result.Kind {
	case exec.Counted:
		n := result.Count
		resp.Count = &n
		resp.NumResults = n
	case exec.Deleted:
		n := result.Count
		resp.Deleted = &n
		resp.NumResults = n
	case exec.Records:
		n, err := result.Stream.Size()
		if err != nil {
			resp.Error = err.Error()
			status = http.StatusInternalServerError
			return
		}
		resp.NumResults = n
		resp.Results = result.Stream.Loaded()
	}
}

// lastQuery reports the native form of the most recently compiled scan.
func (s *Server) lastQuery(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := s.engine.LastQuery()
	if q == nil {
		web.WriteError(w, http.StatusNotFound, "no scan compiled yet")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(q.String() + "\n"))
}
