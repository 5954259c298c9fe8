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
	"strconv"
	"strings"

	"bundlecore.dev/bundler/graph"
)

// rewriteRequires rewrites every require("request")/require('request')
// call in mod's code to its resolved target's numeric id (§4.7). esbuild's
// CommonJS output always emits require calls as a plain call with a single
// string-literal argument, so a textual substitution per resolved
// dependency is sufficient and avoids re-parsing already-transformed code.
func rewriteRequires(g *graph.Graph, mod *graph.Module) string {
	code := mod.Code
	for _, dep := range mod.Dependencies {
		target, ok := g.Modules[dep.Path]
		if !ok {
			continue
		}
		id := strconv.FormatUint(uint64(target.OutputID), 10)
		for _, quote := range []byte{'"', '\'', '`'} {
			literal := string(quote) + dep.Request + string(quote)
			code = strings.ReplaceAll(code, "require("+literal+")", "require("+id+")")
		}
	}
	return code
}

// wrapModule produces the registered-factory form of a module-typed
// module's code: it registers under its numeric id and exposes a factory
// receiving a local require function, per §4.7.
func wrapModule(g *graph.Graph, mod *graph.Module) string {
	code := rewriteRequires(g, mod)

	depIDs := make([]string, 0, len(mod.Dependencies))
	for _, dep := range mod.Dependencies {
		if target, ok := g.Modules[dep.Path]; ok {
			depIDs = append(depIDs, strconv.FormatUint(uint64(target.OutputID), 10))
		}
	}

	return fmt.Sprintf(
		"__d(function(global, require, module, exports) {\n%s\n}, %d, [%s]);",
		code, mod.OutputID, strings.Join(depIDs, ", "),
	)
}

// requireCallLine is the single top-level require a require-call-typed
// module emits once all modules have registered.
func requireCallLine(mod *graph.Module) string {
	return fmt.Sprintf("require(%d);", mod.OutputID)
}
