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
package graph_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bundlecore.dev/bundler/graph"
	"bundlecore.dev/bundler/internal/platform"
	"bundlecore.dev/bundler/moduleid"
	"bundlecore.dev/bundler/resolver"
)

// fakeTransformer returns a canned TransformResult per path, mutable
// between calls so tests can simulate source edits.
type fakeTransformer struct {
	byPath map[string]graph.TransformResult
	errs   map[string]error
}

func (f *fakeTransformer) Transform(ctx context.Context, path string) (graph.TransformResult, error) {
	if err, ok := f.errs[path]; ok {
		return graph.TransformResult{}, err
	}
	return f.byPath[path], nil
}

func newTestResolver() *resolver.Resolver {
	fs := platform.NewMapFS(map[string]string{
		"bundle.js":     "",
		"foo.js":        "",
		"bar.js":        "",
		"baz.js":        "",
		"qux.js":        "",
		"vendor/dep.js": "",
	})
	return resolver.New(fs, resolver.Config{SourceExts: []string{"js"}})
}

func TestInitialTraverseDiscoversTransitiveDependencies(t *testing.T) {
	tr := &fakeTransformer{byPath: map[string]graph.TransformResult{
		"bundle.js": {Code: "bundle", Dependencies: []string{"./foo", "./bar", "./baz"}},
		"foo.js":    {Code: "foo"},
		"bar.js":    {Code: "bar"},
		"baz.js":    {Code: "baz"},
	}}
	g := graph.New(newTestResolver(), tr, moduleid.NewAllocator(), graph.Config{})

	added, err := g.InitialTraverse(context.Background(), []string{"bundle.js"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"bundle.js", "foo.js", "bar.js", "baz.js"}, added)
	assert.Len(t, g.Modules, 4)

	// invariant 1: every dependency target records the source in its
	// InverseDependencies set.
	assert.True(t, g.Modules["foo.js"].InverseDependencies.Has("bundle.js"))
	assert.True(t, g.Modules["bar.js"].InverseDependencies.Has("bundle.js"))
	assert.True(t, g.Modules["baz.js"].InverseDependencies.Has("bundle.js"))
}

func TestTraverseSingleEditOnlyTouchesThatModule(t *testing.T) {
	tr := &fakeTransformer{byPath: map[string]graph.TransformResult{
		"bundle.js": {Code: "bundle", Dependencies: []string{"./foo", "./bar", "./baz"}},
		"foo.js":    {Code: "foo v1"},
		"bar.js":    {Code: "bar"},
		"baz.js":    {Code: "baz"},
	}}
	g := graph.New(newTestResolver(), tr, moduleid.NewAllocator(), graph.Config{})
	_, err := g.InitialTraverse(context.Background(), []string{"bundle.js"})
	require.NoError(t, err)

	tr.byPath["foo.js"] = graph.TransformResult{Code: "foo v2"}
	added, deleted, err := g.Traverse(context.Background(), []string{"foo.js"})
	require.NoError(t, err)

	assert.Equal(t, []string{"foo.js"}, added)
	assert.Empty(t, deleted)
	assert.Equal(t, "foo v2", g.Modules["foo.js"].Code)
	assert.Equal(t, "bar", g.Modules["bar.js"].Code)
}

func TestTraverseAddAndRemoveDependency(t *testing.T) {
	tr := &fakeTransformer{byPath: map[string]graph.TransformResult{
		"bundle.js": {Code: "bundle", Dependencies: []string{"./foo", "./bar", "./baz"}},
		"foo.js":    {Code: "foo v1", Dependencies: nil},
		"bar.js":    {Code: "bar"},
		"baz.js":    {Code: "baz"},
		"qux.js":    {Code: "qux"},
	}}
	g := graph.New(newTestResolver(), tr, moduleid.NewAllocator(), graph.Config{})
	_, err := g.InitialTraverse(context.Background(), []string{"bundle.js"})
	require.NoError(t, err)

	// bundle.js now requires foo and qux only.
	tr.byPath["bundle.js"] = graph.TransformResult{Code: "bundle v2", Dependencies: []string{"./foo", "./qux"}}
	added, deleted, err := g.Traverse(context.Background(), []string{"bundle.js"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"bundle.js", "qux.js"}, added)
	assert.ElementsMatch(t, []string{"bar.js", "baz.js"}, deleted)
	assert.Len(t, g.Modules, 3) // bundle, foo, qux
}

func TestTransformErrorLeavesGraphConsistent(t *testing.T) {
	tr := &fakeTransformer{
		byPath: map[string]graph.TransformResult{
			"bundle.js": {Code: "bundle", Dependencies: []string{"./bar"}},
			"bar.js":    {Code: "bar"},
		},
	}
	g := graph.New(newTestResolver(), tr, moduleid.NewAllocator(), graph.Config{})
	_, err := g.InitialTraverse(context.Background(), []string{"bundle.js"})
	require.NoError(t, err)

	tr.errs = map[string]error{"bar.js": assertErr("syntax error")}
	_, _, err = g.Traverse(context.Background(), []string{"bar.js"})
	require.Error(t, err)

	var terr *graph.TransformError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "bar.js", terr.Path)

	// graph still has bar.js in its prior state
	assert.Equal(t, "bar", g.Modules["bar.js"].Code)
}

func TestRemoveDeletesModuleAndClearsInverseEdges(t *testing.T) {
	tr := &fakeTransformer{byPath: map[string]graph.TransformResult{
		"bundle.js": {Code: "bundle", Dependencies: []string{"./foo"}},
		"foo.js":    {Code: "foo", Dependencies: []string{"./bar"}},
		"bar.js":    {Code: "bar"},
	}}
	g := graph.New(newTestResolver(), tr, moduleid.NewAllocator(), graph.Config{})
	_, err := g.InitialTraverse(context.Background(), []string{"bundle.js"})
	require.NoError(t, err)
	require.True(t, g.Modules["bar.js"].InverseDependencies.Has("foo.js"))

	g.Remove("foo.js")

	_, ok := g.Modules["foo.js"]
	assert.False(t, ok)
	assert.False(t, g.Modules["bar.js"].InverseDependencies.Has("foo.js"))
}

func TestInitialTraverseSkipsBlacklistedTargetButRecordsTheEdge(t *testing.T) {
	tr := &fakeTransformer{byPath: map[string]graph.TransformResult{
		"bundle.js":     {Code: "bundle", Dependencies: []string{"./foo", "./vendor/dep"}},
		"foo.js":        {Code: "foo"},
		"vendor/dep.js": {Code: "should never run"},
	}}
	cfg := graph.Config{BlacklistRE: regexp.MustCompile(`^vendor/`)}
	g := graph.New(newTestResolver(), tr, moduleid.NewAllocator(), cfg)

	added, err := g.InitialTraverse(context.Background(), []string{"bundle.js"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"bundle.js", "foo.js"}, added)

	// the edge is resolved and recorded...
	var blacklistedDep *graph.Dependency
	for i, dep := range g.Modules["bundle.js"].Dependencies {
		if dep.Path == "vendor/dep.js" {
			blacklistedDep = &g.Modules["bundle.js"].Dependencies[i]
		}
	}
	require.NotNil(t, blacklistedDep)
	assert.True(t, blacklistedDep.Blacklisted)

	// ...but the target itself is never transformed, graphed, or enqueued.
	_, ok := g.Modules["vendor/dep.js"]
	assert.False(t, ok)
}

func TestSynthesizeRequireCallsReusesEntryPointID(t *testing.T) {
	tr := &fakeTransformer{byPath: map[string]graph.TransformResult{
		"bundle.js": {Code: "bundle", Dependencies: []string{"./foo"}},
		"foo.js":    {Code: "foo"},
	}}
	g := graph.New(newTestResolver(), tr, moduleid.NewAllocator(), graph.Config{})
	_, err := g.InitialTraverse(context.Background(), []string{"bundle.js"})
	require.NoError(t, err)

	entryID := g.Modules["bundle.js"].OutputID
	g.SynthesizeRequireCalls([]string{"bundle.js"})

	var reqMod *graph.Module
	for _, mod := range g.Modules {
		if mod.Kind == graph.KindRequireCall {
			reqMod = mod
		}
	}
	require.NotNil(t, reqMod)
	assert.Equal(t, entryID, reqMod.OutputID)
	assert.Contains(t, g.EntryPoints, reqMod.Path)

	// calling it again doesn't add a second require-call node.
	g.SynthesizeRequireCalls([]string{"bundle.js"})
	count := 0
	for _, mod := range g.Modules {
		if mod.Kind == graph.KindRequireCall {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
