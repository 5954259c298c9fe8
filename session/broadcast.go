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

package session

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const maxWebSocketReadSize = 64 * 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin:     isLocalOrigin,
}

// isLocalOrigin allows only same-origin or localhost WebSocket connections,
// restricting the dev session's /hot endpoint to the machine running it
// (or the browser tab the session itself served).
func isLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	originHost := originURL.Hostname()

	requestHost := r.Host
	if idx := strings.IndexByte(requestHost, ':'); idx != -1 {
		requestHost = requestHost[:idx]
	}
	if originHost == requestHost {
		return true
	}
	if originHost == "localhost" || originHost == "127.0.0.1" || originHost == "::1" {
		return true
	}
	if strings.HasSuffix(originHost, ".localhost") {
		return true
	}
	if strings.HasPrefix(originHost, "127.") {
		parts := strings.Split(originHost, ".")
		if len(parts) == 4 && parts[0] == "127" {
			return true
		}
	}
	return false
}

type connWrapper struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// wsBroadcaster implements Broadcaster: a connection registry plus
// per-connection write mutex fanning one untargeted /hot channel out to
// every connected client.
type wsBroadcaster struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]*connWrapper
	logger      Logger
}

// NewBroadcaster creates an empty WebSocket broadcast manager.
func NewBroadcaster(logger Logger) Broadcaster {
	return &wsBroadcaster{
		connections: make(map[*websocket.Conn]*connWrapper),
		logger:      logger,
	}
}

func (b *wsBroadcaster) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.connections)
}

func (b *wsBroadcaster) Broadcast(message []byte) error {
	b.mu.RLock()
	snapshot := make([]*connWrapper, 0, len(b.connections))
	for _, w := range b.connections {
		snapshot = append(snapshot, w)
	}
	b.mu.RUnlock()

	var dead []*websocket.Conn
	for _, w := range snapshot {
		w.mu.Lock()
		err := w.conn.WriteMessage(websocket.TextMessage, message)
		w.mu.Unlock()
		if err != nil {
			dead = append(dead, w.conn)
		}
	}
	b.reap(dead)
	return nil
}

func (b *wsBroadcaster) BroadcastShutdown() error {
	msg := []byte(`{"type":"shutdown","reason":"server-shutdown"}`)

	b.mu.RLock()
	snapshot := make([]*connWrapper, 0, len(b.connections))
	for _, w := range b.connections {
		snapshot = append(snapshot, w)
	}
	b.mu.RUnlock()

	var dead []*websocket.Conn
	for _, w := range snapshot {
		w.mu.Lock()
		_ = w.conn.SetWriteDeadline(time.Now().Add(time.Second))
		err := w.conn.WriteMessage(websocket.TextMessage, msg)
		w.mu.Unlock()
		if err != nil {
			dead = append(dead, w.conn)
		}
	}
	b.reap(dead)
	return nil
}

func (b *wsBroadcaster) CloseAll() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for conn, w := range b.connections {
		w.mu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(500 * time.Millisecond))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down"))
		w.mu.Unlock()
		_ = conn.Close()
	}
	b.connections = make(map[*websocket.Conn]*connWrapper)
	return nil
}

func (b *wsBroadcaster) reap(dead []*websocket.Conn) {
	if len(dead) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, conn := range dead {
		delete(b.connections, conn)
		_ = conn.Close()
	}
}

func (b *wsBroadcaster) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if b.logger != nil {
			b.logger.Error("hot reload upgrade failed: %v", err)
		}
		return
	}
	conn.SetReadLimit(maxWebSocketReadSize)

	wrapper := &connWrapper{conn: conn}
	b.mu.Lock()
	b.connections[conn] = wrapper
	count := len(b.connections)
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Debug("hot reload client connected (total: %d)", count)
	}

	defer func() {
		b.mu.Lock()
		delete(b.connections, conn)
		b.mu.Unlock()
		_ = conn.Close()
		if b.logger != nil {
			b.logger.Debug("hot reload client disconnected (total: %d)", b.ConnectionCount())
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
