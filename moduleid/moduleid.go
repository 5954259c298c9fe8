/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package moduleid assigns stable numeric ids to module paths within a
// single bundle session. The allocator is threaded as a single shared
// handle into both the graph, which assigns an id to every module it
// inserts, and the serializer, which rewrites require calls and emits its
// offset table from those same ids, so the two always agree.
package moduleid

import "sync"

// Allocator hands out monotonically increasing uint32 ids, one per path,
// for the lifetime of a bundle session. Ids are never reused or
// rederived: once a path has been assigned an id, every later call with
// the same path returns the same value.
type Allocator struct {
	mu   sync.Mutex
	ids  map[string]uint32
	next uint32
}

// NewAllocator creates an empty id allocator.
func NewAllocator() *Allocator {
	return &Allocator{ids: make(map[string]uint32)}
}

// IDOf returns the id for path, assigning the next free id on first call.
func (a *Allocator) IDOf(path string) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.ids[path]; ok {
		return id
	}
	id := a.next
	a.ids[path] = id
	a.next++
	return id
}

// Lookup returns the id already assigned to path, if any, without
// assigning a new one.
func (a *Allocator) Lookup(path string) (uint32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.ids[path]
	return id, ok
}

// Count returns the number of ids assigned so far; the highest assigned
// id is Count()-1.
func (a *Allocator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.ids)
}
