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
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tstypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// dependencyQuery captures the source string of every static import,
// re-export, require() call, and dynamic import() call. Kept inline as a
// Go string constant (rather than a loaded .scm file) since this module
// has no query-file directory of its own to embed.
const dependencyQuery = `
(import_statement source: (string) @dep)

(export_statement source: (string) @dep)

(call_expression
  function: (identifier) @fn
  arguments: (arguments (string) @dep)
  (#eq? @fn "require"))

(call_expression
  function: (import)
  arguments: (arguments (string) @dep))
`

var typescriptLanguage = ts.NewLanguage(tstypescript.LanguageTypescript())

var dependencyQueryCompiled = func() *ts.Query {
	q, err := ts.NewQuery(typescriptLanguage, dependencyQuery)
	if err != nil {
		panic("transform: invalid dependency query: " + err.Error())
	}
	return q
}()

// parserPool pools one tree-sitter parser per language rather than
// allocating one per parse.
var parserPool = sync.Pool{
	New: func() any {
		parser := ts.NewParser()
		if err := parser.SetLanguage(typescriptLanguage); err != nil {
			panic("transform: failed to set typescript language: " + err.Error())
		}
		return parser
	},
}

func retrieveParser() *ts.Parser {
	return parserPool.Get().(*ts.Parser)
}

func putParser(p *ts.Parser) {
	p.Reset()
	parserPool.Put(p)
}

// extractDependencies returns the raw request strings (quotes stripped,
// in source order) referenced by source. Resolving them against the
// project's files is the Resolver's job, not this package's: a bare
// specifier like "lit" is returned exactly as a relative one like "./a"
// would be.
func extractDependencies(source []byte) []string {
	parser := retrieveParser()
	defer putParser(parser)

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil
	}
	defer tree.Close()

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	var deps []string
	matches := cursor.Matches(dependencyQueryCompiled, tree.RootNode(), source)
	for {
		m := matches.Next()
		if m == nil {
			break
		}
		for _, capture := range m.Captures {
			name := dependencyQueryCompiled.CaptureNames()[capture.Index]
			if name != "dep" {
				continue
			}
			deps = append(deps, unquote(capture.Node.Utf8Text(source)))
		}
	}
	return deps
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
