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

package cmd

import (
	"fmt"

	"bundlecore.dev/bundler/config"
	"bundlecore.dev/bundler/graph"
	"bundlecore.dev/bundler/internal/platform"
	"bundlecore.dev/bundler/moduleid"
	"bundlecore.dev/bundler/resolver"
	"bundlecore.dev/bundler/transform"
	"bundlecore.dev/bundler/transformcache"
	"bundlecore.dev/bundler/workerpool"
	"github.com/spf13/viper"
)

// buildEngine wires the Resolver, transform Engine, worker pool, transform
// cache (with its persistent tier warm-started per §10.7 unless
// --reset-cache was given), and an empty Graph from cfg — the shared
// bottom half of both the `bundle` and `serve` subcommands. sourcemap
// picks the transform's source-map mode: inline is more convenient for a
// live `serve` session (no second request needed), external suits a
// `bundle` artifact written to disk alongside its .map file.
func buildEngine(cfg config.Config, sourcemap transform.SourceMapMode) (*transform.Engine, *graph.Graph, *moduleid.Allocator, *transformcache.Cache, error) {
	fs := platform.NewOSFileSystem()

	plat := viper.GetString("platform")
	if len(cfg.Platforms) > 0 {
		allowed := false
		for _, p := range cfg.Platforms {
			if p == plat {
				allowed = true
				break
			}
		}
		if plat != "" && !allowed {
			return nil, nil, nil, nil, fmt.Errorf("platform %q is not in configured platforms %v", plat, cfg.Platforms)
		}
	}
	r := resolver.New(fs, resolver.Config{
		ProjectRoots: cfg.ProjectRoots,
		AssetExts:    cfg.AssetExtSet(),
		SourceExts:   cfg.SourceExts,
		Platform:     plat,
		PathMappings: cfg.ResolverPathMappings(),
	})

	cache := transformcache.New(cfg.CacheMaxBytes)
	if cfg.CacheDir != "" {
		store := transformcache.NewDiskStore(cfg.CacheDir, uint64(cfg.CacheMaxBytes))
		if cfg.ResetCache {
			if err := store.Reset(); err != nil {
				return nil, nil, nil, nil, fmt.Errorf("resetting persistent cache: %w", err)
			}
		}
		cache = cache.WithPersistent(store)
	}

	pool := workerpool.New(int(cfg.MaxWorkers))

	eng := transform.New(fs, r, pool, cache, transform.Options{
		Target:    transform.ESNext,
		Sourcemap: sourcemap,
	})

	blacklist, err := cfg.CompiledBlacklist()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	allocator := moduleid.NewAllocator()
	g := graph.New(r, eng, allocator, graph.Config{BlacklistRE: blacklist})

	return eng, g, allocator, cache, nil
}
