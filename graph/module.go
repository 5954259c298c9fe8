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

// Package graph implements the Dependency Graph (§4.4): an arena of module
// records indexed by path, with bidirectional require edges, a module-id
// allocator threaded through every insertion, and a reachability sweep that
// deletes whatever an entry point no longer transitively reaches.
package graph

import (
	"bundlecore.dev/bundler/moduleid"
	"bundlecore.dev/bundler/set"
)

// Kind tags how a module participates in bundle emission (§3, §4.7).
type Kind int

const (
	KindModule Kind = iota
	KindScript
	KindRequireCall
	KindAsset
	KindComment
)

func (k Kind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindRequireCall:
		return "require-call"
	case KindAsset:
		return "asset"
	case KindComment:
		return "comment"
	default:
		return "module"
	}
}

// Dependency is one resolved require edge, in source order of first
// appearance (the require-before-duplicates rule, §3).
type Dependency struct {
	Request     string // textual request string as it appeared in source
	Path        string // resolved target path
	Blacklisted bool   // resolved but excluded from traversal and the module map (§9)
}

// Module is a single node in the graph (§3).
type Module struct {
	Path                string
	Kind                Kind
	Code                string
	Output              string // raw per-module source-map fragment
	Dependencies        []Dependency
	InverseDependencies set.Set[string]
	OutputID            uint32
}

func newModule(path string, allocator *moduleid.Allocator) *Module {
	return &Module{
		Path:                path,
		InverseDependencies: set.NewSet[string](),
		OutputID:            allocator.IDOf(path),
	}
}
