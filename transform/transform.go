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

// Package transform is the Transformer (§4.3, §7): it turns one module's
// source bytes into JavaScript plus a source-map fragment plus the list of
// request strings it depends on. It fronts esbuild for the TS/JSX-to-JS
// pass and a pooled tree-sitter-typescript parser for dependency
// extraction, and implements graph.Transformer so a Graph can drive it.
package transform

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Loader selects the esbuild loader for a module's source.
type Loader string

const (
	LoaderTS  Loader = "ts"
	LoaderTSX Loader = "tsx"
	LoaderJS  Loader = "js"
	LoaderJSX Loader = "jsx"
)

// LoaderForPath infers the Loader from a path's extension. Paths with an
// unrecognized extension default to LoaderJS, since an esbuild loader must
// be picked for every non-asset module reaching the transformer.
func LoaderForPath(path string) Loader {
	switch {
	case strings.HasSuffix(path, ".tsx"):
		return LoaderTSX
	case strings.HasSuffix(path, ".ts"):
		return LoaderTS
	case strings.HasSuffix(path, ".jsx"):
		return LoaderJSX
	default:
		return LoaderJS
	}
}

// Target is the ECMAScript output level.
type Target string

const (
	ES2015 Target = "es2015"
	ES2016 Target = "es2016"
	ES2017 Target = "es2017"
	ES2018 Target = "es2018"
	ES2019 Target = "es2019"
	ES2020 Target = "es2020"
	ES2021 Target = "es2021"
	ES2022 Target = "es2022"
	ES2023 Target = "es2023"
	ESNext Target = "esnext"
)

// SourceMapMode controls how esbuild emits source maps for a transform.
type SourceMapMode string

const (
	SourceMapInline   SourceMapMode = "inline"
	SourceMapExternal SourceMapMode = "external"
	SourceMapNone     SourceMapMode = "none"
)

// Options configures every transform run by an Engine. These are the
// inputs folded into the transform cache key (§4.2) alongside the source
// bytes, so a change here invalidates every cached entry.
type Options struct {
	Target      Target
	Sourcemap   SourceMapMode
	TsconfigRaw string
}

// Result is one module's transform output: JS code, an optional source-map
// fragment, and the request strings its source referenced.
type Result struct {
	Code         string
	Map          string
	Dependencies []string
}

// transformTypeScript runs source through esbuild and tree-sitter. It is
// the synchronous core an Engine schedules onto the worker pool.
func transformTypeScript(source []byte, sourcefile string, opts Options) (*Result, error) {
	target := api.ES2020
	switch opts.Target {
	case ES2015:
		target = api.ES2015
	case ES2016:
		target = api.ES2016
	case ES2017:
		target = api.ES2017
	case ES2018:
		target = api.ES2018
	case ES2019:
		target = api.ES2019
	case ES2021:
		target = api.ES2021
	case ES2022:
		target = api.ES2022
	case ES2023:
		target = api.ES2023
	case ESNext:
		target = api.ESNext
	}

	sourcemap := api.SourceMapInline
	switch opts.Sourcemap {
	case SourceMapExternal:
		sourcemap = api.SourceMapExternal
	case SourceMapNone:
		sourcemap = api.SourceMapNone
	}

	tsconfigRaw := opts.TsconfigRaw
	if tsconfigRaw == "" {
		tsconfigRaw = `{"compilerOptions":{"importHelpers":false}}`
	}

	// CommonJS: the serializer's module wrapping rewrites require() calls
	// to numeric ids and wraps each module in a registration factory, which
	// presumes require()/module.exports rather than native import/export.
	result := api.Transform(string(source), api.TransformOptions{
		Loader:      loaderFor(LoaderForPath(sourcefile)),
		Target:      target,
		Format:      api.FormatCommonJS,
		Sourcemap:   sourcemap,
		Sourcefile:  sourcefile,
		TsconfigRaw: tsconfigRaw,
	})

	if len(result.Errors) > 0 {
		var b strings.Builder
		b.WriteString("transform failed:\n")
		for _, e := range result.Errors {
			fmt.Fprintf(&b, "  %s\n", e.Text)
		}
		return nil, fmt.Errorf("%s", b.String())
	}

	deps := extractDependencies(source)

	return &Result{
		Code:         result.Code,
		Map:          result.Map,
		Dependencies: deps,
	}, nil
}

func loaderFor(l Loader) api.Loader {
	switch l {
	case LoaderTSX:
		return api.LoaderTSX
	case LoaderJS:
		return api.LoaderJS
	case LoaderJSX:
		return api.LoaderJSX
	default:
		return api.LoaderTS
	}
}
