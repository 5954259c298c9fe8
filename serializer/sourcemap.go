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
package serializer

import (
	"encoding/json"
	"strings"

	"bundlecore.dev/bundler/graph"
)

type sourceMapOffset struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type sourceMapSection struct {
	Offset sourceMapOffset `json:"offset"`
	Map    json.RawMessage `json:"map"`
}

// IndexSourceMap is the index-style source map §4.8 describes: one
// section per module's own per-module map fragment, positioned at the
// (line, column) where that module's code begins in the plain bundle.
type IndexSourceMap struct {
	Version  int                `json:"version"`
	File     string             `json:"file,omitempty"`
	Sections []sourceMapSection `json:"sections"`
}

// offsetTracker advances a (line, column) cursor by counting line breaks
// and trailing-line characters in each appended segment, mirroring the
// exact text Plain emits so section offsets line up with the real bundle.
type offsetTracker struct {
	line, column int
}

func (t *offsetTracker) advance(s string) {
	for {
		idx := strings.IndexByte(s, '\n')
		if idx < 0 {
			t.column += len(s)
			return
		}
		t.line++
		t.column = 0
		s = s[idx+1:]
	}
}

// SourceMap builds the index-style source map for g's plain bundle
// layout. file is the optional "file" field naming the bundle.
func SourceMap(g *graph.Graph, file string) ([]byte, error) {
	scripts, modules, requireCalls := byKind(g)

	tracker := &offsetTracker{}
	var sections []sourceMapSection

	appendSection := func(mod *graph.Module, segment string) {
		if mod.Output != "" {
			sections = append(sections, sourceMapSection{
				Offset: sourceMapOffset{Line: tracker.line, Column: tracker.column},
				Map:    json.RawMessage(mod.Output),
			})
		}
		tracker.advance(segment)
		tracker.advance("\n")
	}

	for _, mod := range scripts {
		appendSection(mod, rewriteRequires(g, mod))
	}
	for _, mod := range modules {
		appendSection(mod, wrapModule(g, mod))
	}
	for _, mod := range requireCalls {
		appendSection(mod, requireCallLine(mod))
	}

	return json.Marshal(IndexSourceMap{Version: 3, File: file, Sections: sections})
}
