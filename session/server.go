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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"bundlecore.dev/bundler/delta"
	"bundlecore.dev/bundler/graph"
	"bundlecore.dev/bundler/internal/platform"
	"bundlecore.dev/bundler/moduleid"
	"bundlecore.dev/bundler/resolver"
	"bundlecore.dev/bundler/serializer"
	"bundlecore.dev/bundler/transformcache"
)

// Server is one HTTP+WebSocket dev session (§10.3): one delta.Calculator
// and graph.Graph per watched project, fronting the bundle/delta/RAM
// endpoints and a /hot broadcast that fires whenever a new delta is ready.
type Server struct {
	fs          platform.FileSystem
	watcher     platform.FileWatcher
	resolver    *resolver.Resolver
	graph       *graph.Graph
	allocator   *moduleid.Allocator
	calc        *delta.Calculator
	cache       *transformcache.Cache
	broadcaster Broadcaster
	logger      Logger

	entryPoints []string

	mu        sync.Mutex
	epochSeq  uint64
	epoch     string
	watchDone chan struct{}
	closeOnce sync.Once
}

// New creates a Server. Its Delta Calculator starts in the Fresh state, so
// the first rebuild runs g.InitialTraverse over entryPoints (again, if the
// caller already built g) and answers with the full module set.
func New(fs platform.FileSystem, watcher platform.FileWatcher, r *resolver.Resolver, g *graph.Graph, allocator *moduleid.Allocator, cache *transformcache.Cache, entryPoints []string, logger Logger) *Server {
	s := &Server{
		fs:          fs,
		watcher:     watcher,
		resolver:    r,
		graph:       g,
		allocator:   allocator,
		calc:        delta.New(g, entryPoints),
		cache:       cache,
		broadcaster: NewBroadcaster(logger),
		logger:      logger,
		entryPoints: append([]string(nil), entryPoints...),
		watchDone:   make(chan struct{}),
	}
	s.epoch = s.nextEpoch()
	return s
}

func (s *Server) nextEpoch() string {
	return strconv.FormatUint(atomic.AddUint64(&s.epochSeq, 1), 10)
}

// Handler returns the net/http handler exposing the bundle/delta/ram/hot
// surface of §10.3, plus a /status diagnostic endpoint (§10.7).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.bundle", s.handleBundle)
	mux.HandleFunc("/index.delta", s.handleDelta)
	mux.HandleFunc("/index.ram", s.handleRAM)
	mux.HandleFunc("/hot", s.broadcaster.HandleConnection)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	if _, err := s.rebuild(r.Context(), false); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	w.Write([]byte(serializer.Plain(s.graph)))
}

func (s *Server) handleRAM(w http.ResponseWriter, r *http.Request) {
	if _, err := s.rebuild(r.Context(), false); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(serializer.IndexedRAM(s.graph))
}

// handleDelta answers GET /index.delta?deltaBundleId=... (§4.8, §6): a
// client whose deltaBundleId doesn't match the session's current epoch is
// out of sync and gets a reset (the full reachable set) instead of an
// incremental delta.
func (s *Server) handleDelta(w http.ResponseWriter, r *http.Request) {
	clientEpoch := r.URL.Query().Get("deltaBundleId")

	s.mu.Lock()
	reset := clientEpoch != "" && clientEpoch != s.epoch
	s.mu.Unlock()

	result, err := s.rebuild(r.Context(), reset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	body, err := serializer.Delta(s.graph, s.allocator, epoch, result.Added, result.Deleted, result.Reset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// statusResponse is the /status diagnostic payload (§10.7): cache
// statistics, connection count, and the calculator's current state.
type statusResponse struct {
	Epoch           string               `json:"epoch"`
	HotConnections  int                  `json:"hotConnections"`
	Cache           transformcache.Stats `json:"cache"`
	CalculatorState string               `json:"calculatorState"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	resp := statusResponse{
		Epoch:           epoch,
		HotConnections:  s.broadcaster.ConnectionCount(),
		Cache:           s.cache.Stats(),
		CalculatorState: s.calc.State().String(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// rebuild asks the Delta Calculator for the next delta and, on success,
// rolls the session epoch forward so subsequent /index.delta requests
// observe the new state.
func (s *Server) rebuild(ctx context.Context, reset bool) (delta.Result, error) {
	result, err := s.calc.GetDelta(ctx, reset)
	if err != nil {
		return delta.Result{}, err
	}
	s.mu.Lock()
	// A Fresh build re-runs InitialTraverse, which resets g.EntryPoints;
	// re-synthesizing keeps each entry's require-call node registered so
	// the serialized bundle still boots its entry points.
	s.graph.SynthesizeRequireCalls(s.entryPoints)
	s.epoch = s.nextEpoch()
	s.mu.Unlock()
	return result, nil
}

// Watch starts the filesystem watch loop: every project root is added to
// the watcher, and every event is folded into the Delta Calculator's
// pending change set, then a rebuild is kicked off and its epoch broadcast
// over /hot so clients know to re-fetch /index.delta.
func (s *Server) Watch(ctx context.Context, projectRoots []string) error {
	for _, root := range projectRoots {
		if err := s.watcher.Add(root); err != nil {
			return fmt.Errorf("session: watch %s: %w", root, err)
		}
	}

	go func() {
		for {
			select {
			case ev, ok := <-s.watcher.Events():
				if !ok {
					return
				}
				s.handleWatchEvent(ctx, ev)
			case err, ok := <-s.watcher.Errors():
				if !ok {
					return
				}
				if s.logger != nil {
					s.logger.Warning("watch error: %v", err)
				}
			case <-s.watchDone:
				return
			}
		}
	}()
	return nil
}

func (s *Server) handleWatchEvent(ctx context.Context, ev platform.FileWatchEvent) {
	path := filepath.Clean(ev.Name)
	if s.resolver != nil && ev.Op&platform.Remove == 0 && !s.resolver.IsTracked(path) {
		return
	}
	switch {
	case ev.Op&platform.Remove != 0:
		s.calc.OnDelete(path)
	case ev.Op&platform.Create != 0:
		s.calc.OnAdd(path)
		s.calc.OnChange(path)
	default:
		s.calc.OnChange(path)
	}

	if _, err := s.rebuild(ctx, false); err != nil {
		if s.logger != nil {
			s.logger.Warning("rebuild after %s: %v", path, err)
		}
		return
	}

	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	msg, err := json.Marshal(UpdateMessage{Type: "update", ID: epoch})
	if err != nil {
		return
	}
	if err := s.broadcaster.Broadcast(msg); err != nil && s.logger != nil {
		s.logger.Warning("broadcast failed: %v", err)
	}
}

// Shutdown stops the watch loop, ends the Delta Calculator, and gracefully
// closes every /hot connection after broadcasting a shutdown notice
// (§10.7's graceful-shutdown sequence).
func (s *Server) Shutdown() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.watchDone)
		s.calc.End()
		_ = s.broadcaster.BroadcastShutdown()
		err = s.broadcaster.CloseAll()
		err2 := s.watcher.Close()
		if err == nil {
			err = err2
		}
	})
	return err
}
