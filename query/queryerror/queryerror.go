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

// Package queryerror defines the query engine's error taxonomy. Operator and
// feature errors mark store limitations; validation errors mark caller or
// schema mistakes; store errors wrap failures surfaced while iterating
// results. All compile-time rejections are raised before any store call.
package queryerror

import "fmt"

// UnsupportedOperator reports an operator the store cannot execute. It
// carries the original query text and the operator's identity.
type UnsupportedOperator struct {
	QueryText string
	Operator  string
	// Msg optionally narrows the complaint, e.g. "only supported against
	// null".
	Msg string
}

func (e *UnsupportedOperator) Error() string {
	s := fmt.Sprintf("problem with query <%s>: the store does not support operator %s",
		e.QueryText, e.Operator)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

// UnsupportedFeature reports a structural shape the store cannot execute:
// a join, grouping, having, disjunction, ancestor sort and the like.
type UnsupportedFeature struct {
	QueryText string
	Reason    string
}

func (e *UnsupportedFeature) Error() string {
	return fmt.Sprintf("problem with query <%s>: %s", e.QueryText, e.Reason)
}

// Validation reports a fatal caller or schema mistake: unresolvable metadata,
// a malformed parameter value, an inexecutable query type. Unlike the
// Unsupported errors it does not indicate a store limitation.
type Validation struct {
	QueryText string
	Msg       string
}

func (e *Validation) Error() string {
	if e.QueryText == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.QueryText, e.Msg)
}

// StoreError wraps a store-communication failure encountered while pulling
// results. Raw store errors never leak past the engine.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during query execution: %v", e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Operatorf builds an UnsupportedOperator.
func Operatorf(queryText, operator, format string, args ...interface{}) error {
	return &UnsupportedOperator{
		QueryText: queryText,
		Operator:  operator,
		Msg:       fmt.Sprintf(format, args...),
	}
}

// Featuref builds an UnsupportedFeature.
func Featuref(queryText, format string, args ...interface{}) error {
	return &UnsupportedFeature{
		QueryText: queryText,
		Reason:    fmt.Sprintf(format, args...),
	}
}

// Validationf builds a Validation error.
func Validationf(queryText, format string, args ...interface{}) error {
	return &Validation{
		QueryText: queryText,
		Msg:       fmt.Sprintf(format, args...),
	}
}
