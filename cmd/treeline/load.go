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

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cheggaaa/pb"

	"github.com/ebay/treeline/meta"
	"github.com/ebay/treeline/store"
	"github.com/ebay/treeline/store/memstore"
)

// schemaClass is the JSON form of one class in the schema file.
type schemaClass struct {
	Name    string         `json:"name"`
	Kind    string         `json:"kind"`
	Members []schemaMember `json:"members"`
}

type schemaMember struct {
	Name       string         `json:"name"`
	Property   string         `json:"property"`
	Type       string         `json:"type"`
	PrimaryKey bool           `json:"primaryKey"`
	ParentKey  bool           `json:"parentKey"`
	Class      string         `json:"class"`
	Members    []schemaMember `json:"members"`
}

var memberTypes = map[string]meta.Type{
	"string": meta.String, "int": meta.Int, "float": meta.Float,
	"bool": meta.Bool, "bytes": meta.Bytes, "decimal": meta.Decimal,
	"char": meta.Char, "enum": meta.Enum, "time": meta.Time,
	"key": meta.KeyType, "embedded": meta.Embedded, "relation": meta.Relation,
}

// loadSchema reads the schema file and registers its classes.
func loadSchema(filename string) (*meta.Registry, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var classes []schemaClass
	if err := json.NewDecoder(f).Decode(&classes); err != nil {
		return nil, fmt.Errorf("%s: %v", filename, err)
	}
	registry := meta.NewRegistry()
	for _, sc := range classes {
		members, err := buildMembers(sc.Name, sc.Members)
		if err != nil {
			return nil, err
		}
		cls := &meta.Class{Name: sc.Name, Kind: sc.Kind, Members: members}
		if err := registry.Register(cls); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildMembers(class string, in []schemaMember) ([]*meta.Member, error) {
	out := make([]*meta.Member, len(in))
	for i, sm := range in {
		t, ok := memberTypes[strings.ToLower(sm.Type)]
		if !ok {
			return nil, fmt.Errorf("class %s member %s: unknown type %q", class, sm.Name, sm.Type)
		}
		nested, err := buildMembers(class, sm.Members)
		if err != nil {
			return nil, err
		}
		out[i] = &meta.Member{
			Name:       sm.Name,
			Property:   sm.Property,
			Type:       t,
			PrimaryKey: sm.PrimaryKey,
			ParentKey:  sm.ParentKey,
			Class:      sm.Class,
			Members:    nested,
		}
	}
	return out, nil
}

// dataRecord is the JSON form of one JSONL line in the data file.
type dataRecord struct {
	Key        string                 `json:"key"`
	Properties map[string]interface{} `json:"properties"`
}

// loadRecords bulk-loads JSONL records into the store, with a progress bar
// since data files can run long.
func loadRecords(db *memstore.Store, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	bar := pb.New(len(lines)).Prefix("Loading ")
	bar.SetMaxWidth(100)
	bar.Start()
	defer bar.Finish()
	for i, line := range lines {
		var dr dataRecord
		if err := json.Unmarshal([]byte(line), &dr); err != nil {
			return fmt.Errorf("%s line %d: %v", filename, i+1, err)
		}
		key, err := store.DecodeKey(dr.Key)
		if err != nil {
			return fmt.Errorf("%s line %d: %v", filename, i+1, err)
		}
		db.Put(&store.Record{Key: key, Properties: dr.Properties})
		bar.Increment()
	}
	return nil
}
