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

// Package serializer turns a Graph snapshot into the bundle shapes of
// §4.7/§4.8/§6: the plain concatenated bundle, the Indexed RAM binary, the
// File RAM per-module-file layout, an index-style source map, and the
// JSON delta response.
package serializer

import (
	"bundlecore.dev/bundler/graph"
	"bundlecore.dev/bundler/set"
)

// bfsOrder walks every entry point's dependencies breadth-first, in
// source order, matching §4.8's "graph iteration order" rule so the plain
// and Indexed RAM bundles are byte-identical across runs for the same
// source tree.
func bfsOrder(g *graph.Graph) []string {
	seen := set.NewSet[string](g.EntryPoints...)
	queue := append([]string(nil), g.EntryPoints...)
	var order []string

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		order = append(order, path)

		mod, ok := g.Modules[path]
		if !ok {
			continue
		}
		for _, dep := range mod.Dependencies {
			if !seen.Has(dep.Path) {
				seen.Add(dep.Path)
				queue = append(queue, dep.Path)
			}
		}
	}
	return order
}

// byKind partitions bfsOrder's result into the three emission buckets
// §4.7 defines: script (pre-modules, verbatim), module (wrapped,
// registered under a numeric id), require-call (post-modules, a single
// top-level require of their own id). Assets and comment-only files carry
// no executable content and are excluded from every code-stream
// serializer; callers that need asset bytes use the Graph directly.
func byKind(g *graph.Graph) (scripts, modules, requireCalls []*graph.Module) {
	for _, path := range bfsOrder(g) {
		mod, ok := g.Modules[path]
		if !ok {
			continue
		}
		switch mod.Kind {
		case graph.KindScript:
			scripts = append(scripts, mod)
		case graph.KindModule:
			modules = append(modules, mod)
		case graph.KindRequireCall:
			requireCalls = append(requireCalls, mod)
		}
	}
	return scripts, modules, requireCalls
}
