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

// Package session is the long-lived HTTP + WebSocket dev server of §10.3:
// one delta.Calculator shared by every watched project root, fronted by
// GET /index.bundle, GET /index.delta, GET /index.ram, and a WS /hot
// broadcast that tells connected clients when a new delta is ready.
package session

import "net/http"

// Logger is the minimal leveled logger the session needs; satisfied by
// *internal/logging.Logger.
type Logger interface {
	Info(format string, args ...any)
	Warning(format string, args ...any)
	Error(format string, args ...any)
	Debug(format string, args ...any)
}

// UpdateMessage is broadcast over /hot whenever a new delta is published,
// telling connected clients to re-fetch GET /index.delta.
type UpdateMessage struct {
	Type string `json:"type"` // "update"
	ID   string `json:"id"`   // the new epoch id, echoed back as deltaBundleId
}

// ShutdownMessage is broadcast once, right before the session stops
// accepting connections during graceful shutdown.
type ShutdownMessage struct {
	Type   string `json:"type"` // "shutdown"
	Reason string `json:"reason"`
}

// Broadcaster manages the WS /hot connection registry.
type Broadcaster interface {
	ConnectionCount() int
	Broadcast(message []byte) error
	BroadcastShutdown() error
	HandleConnection(w http.ResponseWriter, r *http.Request)
	CloseAll() error
}
