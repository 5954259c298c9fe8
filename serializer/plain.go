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
	"fmt"
	"strings"

	"bundlecore.dev/bundler/graph"
)

// Plain concatenates, in order, pre-modules (script), modules (BFS order,
// each wrapped under its numeric id), then post-modules (require-call),
// per §4.8. The result is byte-identical across runs for a fixed source
// tree and configuration.
func Plain(g *graph.Graph) string {
	scripts, modules, requireCalls := byKind(g)

	var b strings.Builder
	for _, mod := range scripts {
		b.WriteString(rewriteRequires(g, mod))
		b.WriteString("\n")
	}
	for _, mod := range modules {
		b.WriteString(wrapModule(g, mod))
		b.WriteString("\n")
	}
	for _, mod := range requireCalls {
		b.WriteString(requireCallLine(mod))
		b.WriteString("\n")
	}
	return b.String()
}

// PlainWithSourceMapURL appends a //# sourceMappingURL= trailer pointing
// at url, per §4.8.
func PlainWithSourceMapURL(g *graph.Graph, url string) string {
	return fmt.Sprintf("%s//# sourceMappingURL=%s\n", Plain(g), url)
}
