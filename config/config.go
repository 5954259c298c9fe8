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

// Package config is the enumerated configuration surface of §6, loaded
// through viper with flags layered over a project config file layered
// over defaults. PathMapping lets a platform-specific override tree (e.g.
// src/ios/*) take priority over the default source tree ahead of the
// Resolver's extension probing.
package config

import (
	"fmt"
	"regexp"

	"bundlecore.dev/bundler/resolver"
)

// PathMapping rewrites a source-relative request onto an alternate
// filesystem prefix before extension probing. See resolver.PathMapping.
type PathMapping struct {
	Pattern  string `mapstructure:"pattern" yaml:"pattern"`
	Template string `mapstructure:"template" yaml:"template"`
}

// Config enumerates the configuration fields of §6.
type Config struct {
	ConfigFile string `mapstructure:"configFile" yaml:"configFile"`

	// ProjectRoots are the absolute search roots the Resolver probes.
	ProjectRoots []string `mapstructure:"projectRoots" yaml:"projectRoots"`
	// AssetExts are extensions (without leading dot) treated as binary
	// assets rather than transformable source.
	AssetExts []string `mapstructure:"assetExts" yaml:"assetExts"`
	// SourceExts is the ordered extension probe list (without leading dot).
	SourceExts []string `mapstructure:"sourceExts" yaml:"sourceExts"`
	// BlacklistRE excludes matching paths from traversal entirely.
	BlacklistRE string `mapstructure:"blacklistRE" yaml:"blacklistRE"`
	// PathMappings are consulted, in order, before extension probing.
	PathMappings []PathMapping `mapstructure:"pathMappings" yaml:"pathMappings"`

	// MaxWorkers bounds the transform worker pool.
	MaxWorkers uint `mapstructure:"maxWorkers" yaml:"maxWorkers"`

	// CacheVersion is loaded with the rest of the configuration but is not
	// part of the transform cache key: changing it does not invalidate
	// previously cached transforms.
	CacheVersion string `mapstructure:"cacheVersion" yaml:"cacheVersion"`
	// TransformerKey is loaded with the rest of the configuration but is not
	// part of the transform cache key; transform.Engine keys entries by its
	// own fixed transformer identity plus its Options instead.
	TransformerKey string `mapstructure:"transformerKey" yaml:"transformerKey"`
	// ResetCache discards the persistent cache tier on startup.
	ResetCache bool `mapstructure:"resetCache" yaml:"resetCache"`
	// CacheDir roots the persistent on-disk cache tier (§10.7); empty
	// disables the persistent tier and keeps only the in-memory LRU.
	CacheDir string `mapstructure:"cacheDir" yaml:"cacheDir"`
	// CacheMaxBytes bounds the in-memory LRU tier; <= 0 means unbounded.
	CacheMaxBytes int64 `mapstructure:"cacheMaxBytes" yaml:"cacheMaxBytes"`

	// Platforms is the set of allowed platform query-parameter values.
	Platforms []string `mapstructure:"platforms" yaml:"platforms"`

	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
}

// BundleConfig is the `bundle` subcommand's configuration (§10.1): one
// shot, entry points in, a serialized bundle out.
type BundleConfig struct {
	Config `mapstructure:",squash" yaml:",inline"`

	EntryPoints  []string `mapstructure:"entryPoints" yaml:"entryPoints"`
	Platform     string   `mapstructure:"platform" yaml:"platform"`
	Dev          bool     `mapstructure:"dev" yaml:"dev"`
	Format       string   `mapstructure:"format" yaml:"format"` // "plain", "indexed-ram", "file-ram"
	Out          string   `mapstructure:"out" yaml:"out"`
	SourceMapURL string   `mapstructure:"sourceMapUrl" yaml:"sourceMapUrl"`
}

// ServeConfig is the `serve` subcommand's configuration (§10.3): a
// long-lived HTTP+WebSocket dev session.
type ServeConfig struct {
	Config `mapstructure:",squash" yaml:",inline"`

	EntryPoints []string `mapstructure:"entryPoints" yaml:"entryPoints"`
	Addr        string   `mapstructure:"addr" yaml:"addr"`
}

// AssetExtSet returns AssetExts as the set shape resolver.Config expects.
func (c Config) AssetExtSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.AssetExts))
	for _, ext := range c.AssetExts {
		set[ext] = struct{}{}
	}
	return set
}

// ResolverPathMappings adapts PathMappings to resolver.PathMapping.
func (c Config) ResolverPathMappings() []resolver.PathMapping {
	out := make([]resolver.PathMapping, 0, len(c.PathMappings))
	for _, m := range c.PathMappings {
		out = append(out, resolver.PathMapping{Prefix: m.Pattern, Replacement: m.Template})
	}
	return out
}

// CompiledBlacklist compiles BlacklistRE, returning nil (no exclusion) if
// it is empty.
func (c Config) CompiledBlacklist() (*regexp.Regexp, error) {
	if c.BlacklistRE == "" {
		return nil, nil
	}
	return regexp.Compile(c.BlacklistRE)
}

// Validate checks the fields the rest of the pipeline assumes are sane:
// at least one project root, a compilable blacklist, and a positive
// worker count.
func (c Config) Validate() error {
	if len(c.ProjectRoots) == 0 {
		return fmt.Errorf("config: projectRoots must not be empty")
	}
	if _, err := c.CompiledBlacklist(); err != nil {
		return fmt.Errorf("config: invalid blacklistRE: %w", err)
	}
	if c.MaxWorkers == 0 {
		return fmt.Errorf("config: maxWorkers must be > 0")
	}
	return nil
}

// Clone returns a deep copy so a loaded Config can be safely mutated
// per-request (e.g. a platform override) without racing other readers.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.ProjectRoots = append([]string(nil), c.ProjectRoots...)
	clone.AssetExts = append([]string(nil), c.AssetExts...)
	clone.SourceExts = append([]string(nil), c.SourceExts...)
	clone.Platforms = append([]string(nil), c.Platforms...)
	clone.PathMappings = append([]PathMapping(nil), c.PathMappings...)
	return &clone
}

// Defaults returns the configuration baseline applied before flags and
// the project config file are layered on top (§10.1).
func Defaults() Config {
	return Config{
		AssetExts:      []string{"png", "jpg", "jpeg", "gif", "webp", "svg", "ttf", "otf", "woff", "woff2"},
		SourceExts:     []string{"ts", "tsx", "js", "jsx"},
		MaxWorkers:     4,
		CacheVersion:   "1",
		TransformerKey: "esbuild-v1",
		CacheMaxBytes:  64 << 20,
	}
}
