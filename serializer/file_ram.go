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
	"bytes"
	"encoding/binary"
	"fmt"

	"bundlecore.dev/bundler/graph"
)

// FileRAM returns the File RAM bundle's contents as a path→bytes map: a
// 4-byte UNBUNDLE sentinel, one js-modules/<id>.js per wrapped module, and
// js-modules/UNBUNDLE.js holding the startup code (§6).
func FileRAM(g *graph.Graph) map[string][]byte {
	files := make(map[string][]byte)

	var sentinel bytes.Buffer
	binary.Write(&sentinel, binary.LittleEndian, ramMagic)
	files["UNBUNDLE"] = sentinel.Bytes()

	scripts, modules, requireCalls := byKind(g)

	var startup bytes.Buffer
	for _, mod := range scripts {
		startup.WriteString(rewriteRequires(g, mod))
		startup.WriteString("\n")
	}
	for _, mod := range requireCalls {
		startup.WriteString(requireCallLine(mod))
		startup.WriteString("\n")
	}
	files["js-modules/UNBUNDLE.js"] = startup.Bytes()

	for _, mod := range modules {
		files[fmt.Sprintf("js-modules/%d.js", mod.OutputID)] = []byte(wrapModule(g, mod))
	}

	return files
}
