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

import "sync"

// A Scope ties streaming results to the lifetime of some outer resource,
// typically a managed store connection. Flushing the scope disconnects every
// registered result; anything they already materialized stays readable.
type Scope struct {
	mu      sync.Mutex
	flushed bool
	onFlush []func()
}

// OnFlush registers a callback to run when the scope flushes. If the scope
// has already flushed, the callback runs immediately.
func (s *Scope) OnFlush(f func()) {
	s.mu.Lock()
	flushed := s.flushed
	if !flushed {
		s.onFlush = append(s.onFlush, f)
	}
	s.mu.Unlock()
	if flushed {
		f()
	}
}

// Flush runs the registered callbacks, newest first, and drops them. Further
// Flush calls are no-ops.
func (s *Scope) Flush() {
	s.mu.Lock()
	callbacks := s.onFlush
	s.onFlush = nil
	s.flushed = true
	s.mu.Unlock()
	for i := len(callbacks) - 1; i >= 0; i-- {
		callbacks[i]()
	}
}
