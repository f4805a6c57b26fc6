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

// Command treeline runs filter-language queries against an in-memory
// hierarchical store, or serves the query engine over HTTP.
package main

import (
	"context"
	"fmt"
	"os"

	docopt "github.com/docopt/docopt-go"
	opentracing "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ebay/treeline/api"
	"github.com/ebay/treeline/query"
	"github.com/ebay/treeline/query/ast"
	"github.com/ebay/treeline/query/exec"
	"github.com/ebay/treeline/query/parser"
	"github.com/ebay/treeline/store/memstore"
	"github.com/ebay/treeline/util/tracing"
)

var fmtr = message.NewPrinter(language.English)

const usage = `treeline is a command-line front end for the treeline query engine.

Usage:
  treeline [--schema=FILE --data=FILE -v --trace=HOST] query QUERYSTRING
  treeline [--schema=FILE --data=FILE -v --trace=HOST] serve [--http=ADDR]

Options:
  --schema=FILE   JSON file describing the persistent classes [default: schema.json]
  --data=FILE     JSONL file of records to load before running
  --http=ADDR     Listen address for the HTTP API [default: localhost:9988]
  -v, --verbose   Enable debug logging.
  --trace=HOST    Send OpenTracing traces to this collector.

Examples:
  # All customers named starting with "ya", oldest first.
  treeline --schema schema.json --data customers.jsonl \
    query "SELECT * FROM com.example.Customer c WHERE c.name.startsWith('ya') ORDER BY c.age DESC"

  # How many customers are of age?
  treeline --data customers.jsonl query "SELECT count() FROM com.example.Customer WHERE age >= 21"

  # Serve the engine over HTTP.
  treeline --data customers.jsonl serve --http localhost:9988
`

type options struct {
	SchemaFile       string `docopt:"--schema"`
	DataFile         string `docopt:"--data"`
	HTTPAddress      string `docopt:"--http"`
	Verbose          bool   `docopt:"--verbose"`
	TracingCollector string `docopt:"--trace"`

	Query       bool   `docopt:"query"`
	QueryString string `docopt:"QUERYSTRING"`
	Serve       bool   `docopt:"serve"`
}

func parseArgs() *options {
	opts, err := docopt.ParseDoc(usage)
	if err != nil {
		log.Fatalf("Error parsing command-line arguments: %v", err)
	}
	var options options
	err = opts.Bind(&options)
	if err != nil {
		log.Fatalf("Error binding command-line arguments: %v\nfrom: %+v", err, opts)
	}
	return &options
}

func main() {
	options := parseArgs()
	if options.Verbose {
		log.SetLevel(log.DebugLevel)
	}
	ctx := context.Background()

	if options.TracingCollector != "" {
		closer, err := tracing.New("treeline", options.TracingCollector)
		if err != nil {
			log.WithError(err).Warn("Could not initialize OpenTracing tracer")
		} else {
			defer closer.Close()
		}
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "treeline run")
	defer span.Finish()

	registry, err := loadSchema(options.SchemaFile)
	if err != nil {
		log.Fatalf("Error loading schema: %v", err)
	}
	db := memstore.New()
	if options.DataFile != "" {
		if err := loadRecords(db, options.DataFile); err != nil {
			log.Fatalf("Error loading data: %v", err)
		}
	}
	engine := query.New(query.Config{Meta: registry, Store: db})

	switch {
	case options.Query:
		if err := runQuery(ctx, engine, options.QueryString); err != nil {
			log.Fatalf("Error executing query: %v", err)
		}
	case options.Serve:
		log.Infof("Serving HTTP API on %v", options.HTTPAddress)
		if err := api.New(options.HTTPAddress, engine).Run(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}
}

func runQuery(ctx context.Context, engine *query.Engine, text string) error {
	parsed, err := parser.Parse(text)
	if err != nil {
		return err
	}
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("parsed compilation:\n%s", ast.Dump(parsed.Compilation))
	}
	req := query.NewRequest(parsed.Compilation)
	req.FromInclusive = parsed.FromInclusive
	req.ToExclusive = parsed.ToExclusive

	result, err := engine.Execute(ctx, req)
	if err != nil {
		return err
	}
	switch result.Kind {
	case exec.Counted:
		fmtr.Printf("%d\n", result.Count)
	case exec.Deleted:
		fmtr.Printf("deleted %d records\n", result.Count)
	case exec.Records:
		n, err := result.Stream.Size()
		if err != nil {
			return err
		}
		for _, value := range result.Stream.Loaded() {
			fmt.Fprintf(os.Stdout, "%v\n", value)
		}
		fmtr.Printf("%d results\n", n)
	}
	return nil
}
