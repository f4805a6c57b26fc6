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

// Package clocks provides a mockable way to read the current time. The query
// compiler uses it to evaluate CURRENT_TIMESTAMP and CURRENT_DATE operands;
// tests substitute the mock so those operands are deterministic.
package clocks

import (
	"sync"
	"time"
)

// A Source tells the passage of time. This package provides two sources:
// Wall and NewMock.
type Source interface {
	// Now returns the current time.
	Now() time.Time
}

// Wall reads the system clock.
var Wall Source = wall{}

type wall struct{}

func (wall) Now() time.Time { return time.Now() }

// A Mock is a Source whose time only moves when told to. Safe for concurrent
// use.
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMock returns a Mock set to the given time.
func NewMock(now time.Time) *Mock {
	return &Mock{now: now}
}

// Now implements Source.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock time forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set moves the mock time to t.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}
