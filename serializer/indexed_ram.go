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

	"bundlecore.dev/bundler/graph"
)

// ramMagic is the 0xFB0BD1E5 sentinel shared by the Indexed RAM preface
// and the File RAM UNBUNDLE sentinel (§6).
const ramMagic uint32 = 0xFB0BD1E5

// EncodeIndexedRAM lays out the Indexed RAM binary (§6, byte-exact): a
// 12-byte preface, an N-pair little-endian uint32 offset/length table
// (one pair per id from 0 to maxID), the NUL-terminated startup segment,
// then each present module's NUL-terminated code in id order.
//
// Per the format's worked example, a pair's length counts the trailing
// NUL (not, as the prose alone would suggest, excluding it); this
// resolves in favor of the byte-exact example over the ambiguous prose.
func EncodeIndexedRAM(modules map[uint32]string, maxID uint32, startup string) []byte {
	n := int(maxID) + 1

	startupBytes := append([]byte(startup), 0)
	headerSizeBytes := uint32(8 * n)

	preface := 12
	startupStart := preface + int(headerSizeBytes)

	offsets := make([]uint32, n)
	lengths := make([]uint32, n)
	cursor := startupStart + len(startupBytes)
	for id := 0; id < n; id++ {
		code, ok := modules[uint32(id)]
		if !ok {
			continue
		}
		offsets[id] = uint32(cursor)
		lengths[id] = uint32(len(code) + 1)
		cursor += len(code) + 1
	}

	buf := new(bytes.Buffer)
	buf.Grow(cursor)
	binary.Write(buf, binary.LittleEndian, ramMagic)
	binary.Write(buf, binary.LittleEndian, headerSizeBytes)
	binary.Write(buf, binary.LittleEndian, uint32(len(startupBytes)))
	for id := 0; id < n; id++ {
		binary.Write(buf, binary.LittleEndian, offsets[id])
		binary.Write(buf, binary.LittleEndian, lengths[id])
	}
	buf.Write(startupBytes)
	for id := 0; id < n; id++ {
		code, ok := modules[uint32(id)]
		if !ok {
			continue
		}
		buf.WriteString(code)
		buf.WriteByte(0)
	}

	return buf.Bytes()
}

// IndexedRAM builds the Indexed RAM binary for a Graph snapshot: module-
// typed modules are wrapped and indexed by id; script and require-call
// modules are folded into the startup segment; assets are excluded from
// the index entirely (written as separate files by the caller).
func IndexedRAM(g *graph.Graph) []byte {
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

	var maxID uint32
	codeByID := make(map[uint32]string, len(modules))
	for _, mod := range modules {
		codeByID[mod.OutputID] = wrapModule(g, mod)
		if mod.OutputID > maxID {
			maxID = mod.OutputID
		}
	}

	return EncodeIndexedRAM(codeByID, maxID, startup.String())
}
