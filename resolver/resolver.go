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

// Package resolver maps a (fromFile, requestString, platform) triple to a
// concrete source file path, the way a platform-override source tree is
// resolved in a mobile bundler: platform-suffixed files win over their
// plain counterparts, and a configured list of source extensions is probed
// in order.
package resolver

import (
	"fmt"
	"path/filepath"
	"strings"

	"bundlecore.dev/bundler/internal/platform"
)

// Unresolved is returned when no candidate path exists for a request.
type Unresolved struct {
	From       string
	Request    string
	Candidates []string
}

func (u *Unresolved) Error() string {
	return fmt.Sprintf("unresolved module %q from %q (tried: %s)", u.Request, u.From, strings.Join(u.Candidates, ", "))
}

// PathMapping rewrites a source-relative request onto an alternate
// filesystem prefix before extension probing, so a platform-specific
// override tree (e.g. src/ios/*) takes priority over the default tree.
type PathMapping struct {
	Prefix      string // path prefix to match against the resolved directory
	Replacement string // directory to substitute when Prefix matches
}

// Config enumerates the Resolver's configuration surface (§6).
type Config struct {
	ProjectRoots []string
	AssetExts    map[string]struct{}
	SourceExts   []string // probe order, without leading dot
	Platform     string   // e.g. "ios", "android"; empty means no suffix probing
	PathMappings []PathMapping
}

// Resolver implements the Resolver component (§4.1).
type Resolver struct {
	fs  platform.FileSystem
	cfg Config
}

// New creates a Resolver backed by fs using cfg.
func New(fs platform.FileSystem, cfg Config) *Resolver {
	if cfg.AssetExts == nil {
		cfg.AssetExts = map[string]struct{}{}
	}
	return &Resolver{fs: fs, cfg: cfg}
}

// IsAsset reports whether path's extension is in the configured asset
// extension set.
func (r *Resolver) IsAsset(path string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	_, ok := r.cfg.AssetExts[ext]
	return ok
}

// IsTracked reports whether path's extension is one this Resolver would
// ever resolve a request to: a configured source extension or asset
// extension. A dev session's file watcher uses this to ignore changes to
// files outside the bundled tree (READMEs, lockfiles, dotfiles) rather
// than triggering a rebuild for every one of them.
func (r *Resolver) IsTracked(path string) bool {
	if r.IsAsset(path) {
		return true
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	for _, sourceExt := range r.cfg.SourceExts {
		if ext == sourceExt {
			return true
		}
	}
	return false
}

// Resolve maps (fromPath, request) to a concrete file path, or returns
// *Unresolved when no candidate exists.
func (r *Resolver) Resolve(fromPath, request string) (string, error) {
	base := r.requestBaseDir(fromPath, request)
	if base == "" {
		return "", &Unresolved{From: fromPath, Request: request}
	}

	if mapped, ok := r.applyPathMapping(base); ok {
		base = mapped
	}

	var candidates []string

	// Asset extensions are accepted without platform-suffix probing: the
	// bare name wins a tie against a source-extension probe of the same
	// name (§4.1).
	if ext := strings.TrimPrefix(filepath.Ext(base), "."); ext != "" {
		if _, isAsset := r.cfg.AssetExts[ext]; isAsset {
			candidates = append(candidates, base)
			if r.existsAsFile(base) {
				return base, nil
			}
		}
	}

	if path, tried, ok := r.probe(base); ok {
		return path, nil
	} else {
		candidates = append(candidates, tried...)
	}

	// Directory hit: retry against <base>/index.
	indexBase := filepath.Join(base, "index")
	if path, tried, ok := r.probe(indexBase); ok {
		return path, nil
	} else {
		candidates = append(candidates, tried...)
	}

	return "", &Unresolved{From: fromPath, Request: request, Candidates: candidates}
}

// requestBaseDir interprets request as relative, absolute, or bare, and
// returns the filesystem path (without extension) to probe.
func (r *Resolver) requestBaseDir(fromPath, request string) string {
	switch {
	case strings.HasPrefix(request, "./") || strings.HasPrefix(request, "../"):
		return filepath.Join(filepath.Dir(fromPath), request)
	case filepath.IsAbs(request):
		return request
	default:
		// bare package-style request: probed against each project root.
		for _, root := range r.cfg.ProjectRoots {
			candidate := filepath.Join(root, request)
			if r.fs.Exists(candidate) {
				return candidate
			}
			for _, ext := range r.extensionOrder() {
				if r.fs.Exists(candidate + "." + ext) {
					return candidate
				}
			}
		}
		if len(r.cfg.ProjectRoots) > 0 {
			return filepath.Join(r.cfg.ProjectRoots[0], request)
		}
		return request
	}
}

// probe attempts, in configured extension order, the platform-suffixed
// path before the plain one (foo.ios.js before foo.js), and also checks
// base verbatim (already-complete paths, e.g. assets without suffix
// probing). It returns the candidates it tried for error reporting.
func (r *Resolver) probe(base string) (resolved string, tried []string, ok bool) {
	if r.existsAsFile(base) {
		tried = append(tried, base)
		return base, tried, true
	}
	for _, ext := range r.extensionOrder() {
		if r.cfg.Platform != "" {
			platformPath := fmt.Sprintf("%s.%s.%s", base, r.cfg.Platform, ext)
			tried = append(tried, platformPath)
			if r.fs.Exists(platformPath) {
				return platformPath, tried, true
			}
		}
		plainPath := base + "." + ext
		tried = append(tried, plainPath)
		if r.fs.Exists(plainPath) {
			return plainPath, tried, true
		}
	}
	return "", tried, false
}

// existsAsFile reports whether path exists and is a regular file (not a
// directory); directory hits must fall through to index probing.
func (r *Resolver) existsAsFile(path string) bool {
	info, err := r.fs.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func (r *Resolver) extensionOrder() []string {
	if len(r.cfg.SourceExts) > 0 {
		return r.cfg.SourceExts
	}
	return []string{"js", "jsx", "ts", "tsx", "json"}
}

// applyPathMapping rewrites base's directory against the first matching
// PathMapping prefix, ahead of extension probing.
func (r *Resolver) applyPathMapping(base string) (string, bool) {
	dir, file := filepath.Split(base)
	for _, m := range r.cfg.PathMappings {
		if strings.HasPrefix(dir, m.Prefix) {
			rewritten := filepath.Join(m.Replacement, strings.TrimPrefix(dir, m.Prefix), file)
			return rewritten, true
		}
	}
	return "", false
}
