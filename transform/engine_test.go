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
package transform_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bundlecore.dev/bundler/graph"
	"bundlecore.dev/bundler/internal/platform"
	"bundlecore.dev/bundler/resolver"
	"bundlecore.dev/bundler/transform"
	"bundlecore.dev/bundler/transformcache"
	"bundlecore.dev/bundler/workerpool"
)

func newEngine(files map[string]string) (*transform.Engine, *transformcache.Cache) {
	fs := platform.NewMapFS(files)
	r := resolver.New(fs, resolver.Config{
		SourceExts: []string{"ts", "js"},
		AssetExts:  map[string]struct{}{"png": {}},
	})
	pool := workerpool.New(2)
	cache := transformcache.New(0)
	return transform.New(fs, r, pool, cache, transform.Options{Target: transform.ES2022}), cache
}

func TestTransformEmitsJSAndDependencies(t *testing.T) {
	e, _ := newEngine(map[string]string{
		"index.ts": `import { value } from "./other"; console.log(value);`,
	})

	result, err := e.Transform(context.Background(), "index.ts")
	require.NoError(t, err)

	assert.Equal(t, graph.KindModule, result.Kind)
	assert.Contains(t, result.Code, "console.log")
	assert.Equal(t, []string{"./other"}, result.Dependencies)
}

func TestTransformCachesSecondCall(t *testing.T) {
	e, cache := newEngine(map[string]string{
		"index.ts": `const x: number = 1; console.log(x);`,
	})

	_, err := e.Transform(context.Background(), "index.ts")
	require.NoError(t, err)
	_, err = e.Transform(context.Background(), "index.ts")
	require.NoError(t, err)

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestTransformPassesThroughAssets(t *testing.T) {
	e, _ := newEngine(map[string]string{
		"logo.png": "\x89PNG-bytes",
	})

	result, err := e.Transform(context.Background(), "logo.png")
	require.NoError(t, err)

	assert.Equal(t, graph.KindAsset, result.Kind)
	assert.Equal(t, "\x89PNG-bytes", result.Code)
	assert.Empty(t, result.Dependencies)
}

func TestTransformRejectsInvalidSyntax(t *testing.T) {
	e, _ := newEngine(map[string]string{
		"broken.ts": `const x: = ;;;`,
	})

	_, err := e.Transform(context.Background(), "broken.ts")
	assert.Error(t, err)
}
