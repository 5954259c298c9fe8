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

package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bundlecore.dev/bundler/graph"
	"bundlecore.dev/bundler/internal/platform"
	"bundlecore.dev/bundler/moduleid"
	"bundlecore.dev/bundler/resolver"
	"bundlecore.dev/bundler/serializer"
	"bundlecore.dev/bundler/session"
	"bundlecore.dev/bundler/transformcache"
)

type fakeTransformer struct {
	byPath map[string]graph.TransformResult
}

func (f *fakeTransformer) Transform(ctx context.Context, path string) (graph.TransformResult, error) {
	return f.byPath[path], nil
}

func newTestServer(t *testing.T) (*session.Server, *platform.MockFileWatcher) {
	t.Helper()
	byPath := map[string]graph.TransformResult{
		"bundle.js": {Code: "console.log(1);", Kind: graph.KindModule},
	}
	files := map[string]string{"bundle.js": ""}
	fs := platform.NewMapFS(files)
	r := resolver.New(fs, resolver.Config{SourceExts: []string{"js"}})
	allocator := moduleid.NewAllocator()
	g := graph.New(r, &fakeTransformer{byPath: byPath}, allocator, graph.Config{})
	_, err := g.InitialTraverse(context.Background(), []string{"bundle.js"})
	require.NoError(t, err)

	watcher := platform.NewMockFileWatcher()
	cache := transformcache.New(0)
	s := session.New(fs, watcher, r, g, allocator, cache, []string{"bundle.js"}, nil)
	return s, watcher
}

func TestHandleBundleServesPlainBundle(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/index.bundle")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/javascript", resp.Header.Get("Content-Type"))
}

func TestHandleRAMServesIndexedRAMMagic(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/index.ram")
	require.NoError(t, err)
	defer resp.Body.Close()

	body := make([]byte, 4)
	_, err = resp.Body.Read(body)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xE5, 0xD1, 0x0B, 0xFB}, body)
}

func TestHandleDeltaWithUnknownEpochTriggersReset(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/index.delta?deltaBundleId=stale-epoch")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out serializer.DeltaResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Reset)
}

func TestHandleStatusReportsCacheStats(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out, "cache")
	assert.Contains(t, out, "calculatorState")
}

func TestShutdownClosesWatcher(t *testing.T) {
	s, watcher := newTestServer(t)
	require.NoError(t, s.Watch(context.Background(), nil))
	require.NoError(t, s.Shutdown())

	// A second Add after Close should fail, proving the watcher was closed.
	assert.Error(t, watcher.Add("whatever.js"))
}
