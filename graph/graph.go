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
package graph

import (
	"context"
	"fmt"
	"regexp"

	"bundlecore.dev/bundler/moduleid"
	"bundlecore.dev/bundler/resolver"
	"bundlecore.dev/bundler/set"
)

// TransformError is a permanent-until-source-changes failure from the
// transformer (§7). It does not poison the cache and does not mutate the
// graph: the module, if it previously existed, is left in its prior state.
type TransformError struct {
	Path     string
	Message  string
	Location string // optional; empty when not applicable
}

func (e *TransformError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("transform error in %s at %s: %s", e.Path, e.Location, e.Message)
	}
	return fmt.Sprintf("transform error in %s: %s", e.Path, e.Message)
}

// TransformResult is what a Transformer produces for one module.
type TransformResult struct {
	Code         string
	Output       string
	Dependencies []string // request strings, in source order
	Kind         Kind
}

// Transformer is the graph's sole collaborator for turning source bytes
// into a Module's code/output/dependency-request list. The concrete
// implementation (package transform) fronts the worker pool and the
// transform cache; the graph only depends on this narrow interface so its
// traversal logic can be tested against a fake.
type Transformer interface {
	Transform(ctx context.Context, path string) (TransformResult, error)
}

// Config enumerates the traversal behavior not already owned by the
// Resolver (§6's blacklistRE).
type Config struct {
	BlacklistRE *regexp.Regexp
}

// Graph is the Dependency Graph (§3, §4.4). It is private to one session
// (one bundle build or one long-lived serve session); concurrent access is
// serialized by the caller (the Delta Calculator's single driver goroutine,
// §5), so Graph itself holds no internal lock.
type Graph struct {
	EntryPoints []string
	Modules     map[string]*Module

	resolver    *resolver.Resolver
	transformer Transformer
	allocator   *moduleid.Allocator
	cfg         Config
}

// New creates an empty Graph. allocator must be the same handle later
// threaded into the serializer so ids agree (§4.6).
func New(r *resolver.Resolver, t Transformer, allocator *moduleid.Allocator, cfg Config) *Graph {
	return &Graph{
		Modules:     make(map[string]*Module),
		resolver:    r,
		transformer: t,
		allocator:   allocator,
		cfg:         cfg,
	}
}

// InitialTraverse transforms entryPoints, then breadth-first resolves and
// transforms every newly referenced module (§4.4).
func (g *Graph) InitialTraverse(ctx context.Context, entryPoints []string) ([]string, error) {
	g.EntryPoints = append([]string(nil), entryPoints...)

	var added []string
	queue := append([]string(nil), entryPoints...)
	seen := set.NewSet[string](entryPoints...)

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		// Every dequeued path is transformed exactly once (seen guards the
		// queue), so each one is part of the added set — including targets
		// that transformModule already stubbed while wiring an earlier edge.
		mod, _, err := g.transformModule(ctx, path)
		if err != nil {
			return nil, err
		}
		added = append(added, path)

		for _, dep := range mod.Dependencies {
			if dep.Blacklisted {
				continue
			}
			if !seen.Has(dep.Path) {
				seen.Add(dep.Path)
				queue = append(queue, dep.Path)
			}
		}
	}

	return added, nil
}

// Traverse re-transforms each still-reachable path in dirtyPaths, rewires
// edges, and sweeps away modules no longer reachable from any entry point
// (§4.4). It returns the modules added or changed and the modules deleted.
func (g *Graph) Traverse(ctx context.Context, dirtyPaths []string) (added, deleted []string, err error) {
	touched := set.NewSet[string]()
	queue := make([]string, 0, len(dirtyPaths))

	for _, p := range dirtyPaths {
		if _, ok := g.Modules[p]; !ok {
			// A path that is no longer present (deleted-then-modified
			// coalescing already folds this case away upstream); nothing
			// to re-transform.
			continue
		}
		queue = append(queue, p)
		touched.Add(p)
	}

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		oldDeps := map[string]bool{}
		if existing, ok := g.Modules[path]; ok {
			for _, d := range existing.Dependencies {
				oldDeps[d.Path] = true
			}
		}

		// transformModule stubs new targets into g.Modules, so "new" is
		// judged against the module set as it was before this transform.
		known := make(map[string]bool, len(g.Modules))
		for p := range g.Modules {
			known[p] = true
		}

		mod, _, terr := g.transformModule(ctx, path)
		if terr != nil {
			return nil, nil, terr
		}
		added = append(added, path)

		for _, dep := range mod.Dependencies {
			delete(oldDeps, dep.Path)
			if dep.Blacklisted {
				continue
			}
			if !known[dep.Path] {
				if !touched.Has(dep.Path) {
					touched.Add(dep.Path)
					queue = append(queue, dep.Path)
				}
			}
		}

		// oldDeps now holds edges removed by this re-transform; their
		// targets may have become unreachable, discovered by the sweep
		// below rather than by a per-edge refcount.
		for removedTarget := range oldDeps {
			if target, ok := g.Modules[removedTarget]; ok {
				delete(target.InverseDependencies, path)
			}
		}
	}

	deleted = g.sweep()
	return added, deleted, nil
}

// transformModule resolves and runs the transformer for path, wiring
// dependency edges (and creating target stub entries lazily as they are
// discovered) atomically into the module map.
func (g *Graph) transformModule(ctx context.Context, path string) (*Module, bool, error) {
	result, err := g.transformer.Transform(ctx, path)
	if err != nil {
		return nil, false, &TransformError{Path: path, Message: err.Error()}
	}

	mod, existed := g.Modules[path]
	if !existed {
		mod = newModule(path, g.allocator)
		g.Modules[path] = mod
	}

	mod.Code = result.Code
	mod.Output = result.Output
	mod.Kind = result.Kind

	var deps []Dependency
	for _, request := range result.Dependencies {
		targetPath, rerr := g.resolver.Resolve(path, request)
		if rerr != nil {
			return nil, false, rerr
		}
		if g.cfg.BlacklistRE != nil && g.cfg.BlacklistRE.MatchString(targetPath) {
			// Open question resolved (§9): blacklisted targets are still
			// recorded as resolved edges, just not traversed further. The
			// Blacklisted flag is what keeps the caller's BFS from enqueueing
			// this path and transforming it anyway.
			deps = append(deps, Dependency{Request: request, Path: targetPath, Blacklisted: true})
			continue
		}

		target, ok := g.Modules[targetPath]
		if !ok {
			target = newModule(targetPath, g.allocator)
			g.Modules[targetPath] = target
		}
		target.InverseDependencies.Add(path)
		deps = append(deps, Dependency{Request: request, Path: targetPath})
	}
	mod.Dependencies = deps

	return mod, !existed, nil
}

// sweep recomputes reachability from EntryPoints over current dependency
// edges and deletes every module not reached, transitively. This is the
// mark-and-sweep expression of the reference-counted reachability sweep
// described in the design notes: the end state is identical (only
// transitively-reachable modules survive) without an incrementally
// maintained per-edge counter.
func (g *Graph) sweep() []string {
	reachable := set.NewSet[string]()
	queue := append([]string(nil), g.EntryPoints...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if reachable.Has(p) {
			continue
		}
		reachable.Add(p)
		mod, ok := g.Modules[p]
		if !ok {
			continue
		}
		for _, dep := range mod.Dependencies {
			if !reachable.Has(dep.Path) {
				queue = append(queue, dep.Path)
			}
		}
	}

	var deleted []string
	for path := range g.Modules {
		if !reachable.Has(path) {
			deleted = append(deleted, path)
		}
	}
	for _, path := range deleted {
		delete(g.Modules, path)
	}
	return deleted
}

// Remove deletes path's module node directly, used when the watcher
// reports the file itself was deleted (§4.5). Any module that still lists
// path as a dependency keeps the stale edge until it is next re-transformed
// (self-healing) or until a sweep finds it unreachable.
func (g *Graph) Remove(path string) {
	mod, ok := g.Modules[path]
	if !ok {
		return
	}
	for _, dep := range mod.Dependencies {
		if target, ok := g.Modules[dep.Path]; ok {
			delete(target.InverseDependencies, path)
		}
	}
	delete(g.Modules, path)
}

// MarkAdded records that the watcher observed a previously-unseen path.
// Per §4.4, a standalone add cannot yet be reachable, so this is
// intentionally a no-op: the path only enters the graph once some dirty
// module's re-transform references it.
func (g *Graph) MarkAdded(path string) {}

// requireCallSuffix marks a synthesized require-call node's path. A NUL
// byte can never appear in a resolver-produced path, so appending it rules
// out collision with any real file.
const requireCallSuffix = "\x00require"

// SynthesizeRequireCalls ensures every path in entryPoints that has already
// been transformed into a module has a companion require-call node (§4.7):
// one that shares the entry point's own numeric id (so its
// `require(<id>);` line actually boots the module already registered under
// that id) and is added to g.EntryPoints so the serializers' BFS discovers
// it. Idempotent — entry points that already have one are left alone, so
// it is safe to call again after every InitialTraverse/Traverse.
func (g *Graph) SynthesizeRequireCalls(entryPoints []string) {
	for _, entry := range entryPoints {
		entryMod, ok := g.Modules[entry]
		if !ok {
			continue
		}
		reqPath := entry + requireCallSuffix
		if _, exists := g.Modules[reqPath]; !exists {
			g.Modules[reqPath] = &Module{
				Path:                reqPath,
				Kind:                KindRequireCall,
				OutputID:            entryMod.OutputID,
				InverseDependencies: set.NewSet[string](),
			}
		}
		// InitialTraverse resets g.EntryPoints, so an existing node may
		// need to be re-registered as an entry point.
		isNewEntryPoint := true
		for _, p := range g.EntryPoints {
			if p == reqPath {
				isNewEntryPoint = false
				break
			}
		}
		if isNewEntryPoint {
			g.EntryPoints = append(g.EntryPoints, reqPath)
		}
	}
}
