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

	"bundlecore.dev/bundler/graph"
	"bundlecore.dev/bundler/moduleid"
)

// deltaPair is one [id, code|null] entry. code is nil for a deletion.
type deltaPair [2]any

// DeltaResponse is the JSON delta wire format of §4.8: pre/post mirror the
// plain bundle's script/require-call sections in full on every response
// (they are cheap and order-dependent), while delta carries only what
// changed since the client's last-seen epoch.
type DeltaResponse struct {
	ID    string      `json:"id"`
	Pre   []deltaPair `json:"pre"`
	Post  []deltaPair `json:"post"`
	Delta []deltaPair `json:"delta"`
	Reset bool        `json:"reset"`
}

// Delta builds the JSON delta response for one getDelta answer. allocator
// must be the same handle threaded through the Graph, since deleted paths
// are no longer present in g.Modules by the time this runs and their ids
// can only be recovered from the allocator (ids are never reclaimed, so
// Lookup still answers for a path that was just removed).
func Delta(g *graph.Graph, allocator *moduleid.Allocator, epochID string, added, deleted []string, reset bool) ([]byte, error) {
	scripts, _, requireCalls := byKind(g)

	pre := make([]deltaPair, 0, len(scripts))
	for _, mod := range scripts {
		pre = append(pre, deltaPair{mod.OutputID, rewriteRequires(g, mod)})
	}

	post := make([]deltaPair, 0, len(requireCalls))
	for _, mod := range requireCalls {
		post = append(post, deltaPair{mod.OutputID, requireCallLine(mod)})
	}

	deltaPairs := make([]deltaPair, 0, len(added)+len(deleted))
	for _, path := range added {
		mod, ok := g.Modules[path]
		if !ok || mod.Kind != graph.KindModule {
			continue
		}
		deltaPairs = append(deltaPairs, deltaPair{mod.OutputID, wrapModule(g, mod)})
	}
	for _, path := range deleted {
		id, ok := allocator.Lookup(path)
		if !ok {
			continue
		}
		deltaPairs = append(deltaPairs, deltaPair{id, nil})
	}

	return json.Marshal(DeltaResponse{
		ID:    epochID,
		Pre:   pre,
		Post:  post,
		Delta: deltaPairs,
		Reset: reset,
	})
}
