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
package transform

import (
	"context"
	"fmt"
	"sync"

	"bundlecore.dev/bundler/graph"
	"bundlecore.dev/bundler/internal/platform"
	"bundlecore.dev/bundler/resolver"
	"bundlecore.dev/bundler/transformcache"
	"bundlecore.dev/bundler/workerpool"
)

// cacheKeyComponent versions the transform itself (esbuild pass plus
// dependency extraction) into the cache key, independent of Options, so a
// change to this package's logic invalidates stale entries even when the
// caller's options are unchanged.
const cacheKeyComponent = "transform-v1"

// Engine is the transform package's graph.Transformer: it reads a module's
// source, consults the transform cache, and otherwise schedules the actual
// esbuild+tree-sitter work onto the worker pool (§4.2, §4.3).
type Engine struct {
	fs       platform.FileSystem
	resolver *resolver.Resolver
	pool     *workerpool.Pool
	cache    *transformcache.Cache
	opts     Options

	mu          sync.RWMutex
	entryPoints map[string]bool
}

// New builds an Engine. r is consulted only for Kind classification
// (IsAsset); resolving dependency requests to paths remains the graph's
// job via its own Resolver handle.
func New(fs platform.FileSystem, r *resolver.Resolver, pool *workerpool.Pool, cache *transformcache.Cache, opts Options) *Engine {
	return &Engine{
		fs:          fs,
		resolver:    r,
		pool:        pool,
		cache:       cache,
		opts:        opts,
		entryPoints: map[string]bool{},
	}
}

// Resolver returns the Resolver the Engine classifies asset paths with, so
// callers can reuse the same handle for actual dependency resolution.
func (e *Engine) Resolver() *resolver.Resolver {
	return e.resolver
}

// SetEntryPoints records which paths should be scheduled at the worker
// pool's highest priority (§4.3). Safe to call again after a build's entry
// points change (e.g. a config reload).
func (e *Engine) SetEntryPoints(paths []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entryPoints = make(map[string]bool, len(paths))
	for _, p := range paths {
		e.entryPoints[p] = true
	}
}

func (e *Engine) priorityFor(path string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.entryPoints[path] {
		return 0
	}
	return 1
}

// Transform implements graph.Transformer.
func (e *Engine) Transform(ctx context.Context, path string) (graph.TransformResult, error) {
	source, err := e.fs.ReadFile(path)
	if err != nil {
		return graph.TransformResult{}, fmt.Errorf("reading %s: %w", path, err)
	}

	if e.resolver != nil && e.resolver.IsAsset(path) {
		return graph.TransformResult{
			Code: string(source),
			Kind: graph.KindAsset,
		}, nil
	}

	key, err := transformcache.ComputeKey(source, cacheKeyComponent, e.opts)
	if err != nil {
		return graph.TransformResult{}, fmt.Errorf("computing cache key for %s: %w", path, err)
	}

	if entry, ok := e.cache.Get(key); ok {
		return graph.TransformResult{
			Code:         entry.Code,
			Output:       entry.Map,
			Dependencies: entry.Dependencies,
			Kind:         graph.KindModule,
		}, nil
	}

	value, err := e.pool.Submit(ctx, workerpool.Job{
		Key:      string(key),
		Priority: e.priorityFor(path),
		Run: func(ctx context.Context) (any, error) {
			return transformTypeScript(source, path, e.opts)
		},
	})
	if err != nil {
		return graph.TransformResult{}, err
	}

	result := value.(*Result)
	e.cache.Put(key, transformcache.Entry{
		Code:         result.Code,
		Map:          result.Map,
		Dependencies: result.Dependencies,
	})

	return graph.TransformResult{
		Code:         result.Code,
		Output:       result.Map,
		Dependencies: result.Dependencies,
		Kind:         graph.KindModule,
	}, nil
}
