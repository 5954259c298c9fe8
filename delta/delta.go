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

// Package delta implements the Delta Calculator (§4.5): the
// Fresh/Clean/Dirty/Building state machine that sits between a file
// watcher and a Graph, coalescing watcher events into incremental
// getDelta answers.
package delta

import (
	"context"
	"errors"
	"sync"

	"bundlecore.dev/bundler/graph"
)

// ErrEnded is returned by GetDelta once End has been called.
var ErrEnded = errors.New("delta: calculator has ended")

// State is one node of the §4.5 state machine.
type State int

const (
	Fresh State = iota
	Clean
	Dirty
	Building
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Building:
		return "building"
	default:
		return "fresh"
	}
}

// Result is one getDelta answer: the modules that were (re)built and the
// modules that are no longer reachable. Reset indicates the caller should
// discard whatever it previously knew and treat Added as the complete set.
type Result struct {
	Added   []string
	Deleted []string
	Reset   bool
}

// Calculator drives one Graph session through the state machine. It is
// safe for concurrent use: watcher callbacks and getDelta callers may run
// on different goroutines.
type Calculator struct {
	mu          sync.Mutex
	g           *graph.Graph
	entryPoints []string
	state       State
	dirty       map[string]struct{}
	deleted     map[string]struct{}
	inflight    chan struct{}
	lastResult  Result
	lastErr     error
	ended       bool

	cancel context.CancelFunc
	runCtx context.Context
}

// New creates a Calculator in the Fresh state; nothing is transformed
// until the first GetDelta call.
func New(g *graph.Graph, entryPoints []string) *Calculator {
	runCtx, cancel := context.WithCancel(context.Background())
	return &Calculator{
		g:           g,
		entryPoints: append([]string(nil), entryPoints...),
		state:       Fresh,
		dirty:       map[string]struct{}{},
		deleted:     map[string]struct{}{},
		runCtx:      runCtx,
		cancel:      cancel,
	}
}

// State reports the calculator's current state, mostly for diagnostics.
func (c *Calculator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnChange marks path dirty: a modification to a tracked file.
func (c *Calculator) OnChange(path string) {
	c.markDirty(path, false)
}

// OnDelete marks path deleted. If path was already dirty, the dirty mark is
// replaced: the next build treats it as gone, not as needing re-transform.
func (c *Calculator) OnDelete(path string) {
	c.markDirty(path, true)
}

// OnAdd forwards a previously-unseen path to the graph. Per §4.4/§4.5 a
// standalone add cannot yet be reachable, so this never changes state.
func (c *Calculator) OnAdd(path string) {
	c.g.MarkAdded(path)
}

func (c *Calculator) markDirty(path string, isDelete bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return
	}
	if isDelete {
		c.deleted[path] = struct{}{}
		delete(c.dirty, path)
	} else {
		// Deleted-then-added coalescing (§4.5): a subsequent change wins
		// over a pending delete, scheduled as one re-transform from disk.
		c.dirty[path] = struct{}{}
		delete(c.deleted, path)
	}
	if c.state == Clean {
		c.state = Dirty
	}
}

// End aborts any in-flight traversal and fails every future GetDelta call.
// The underlying Graph is left intact for late observers.
func (c *Calculator) End() {
	c.mu.Lock()
	c.ended = true
	c.mu.Unlock()
	c.cancel()
}

// GetDelta runs (or joins) the next build for this session (§4.5). At most
// one traversal is ever in flight; concurrent callers that arrive while a
// build is running share its result rather than starting their own.
func (c *Calculator) GetDelta(ctx context.Context, reset bool) (Result, error) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return Result{}, ErrEnded
	}

	if c.state == Building {
		ch := c.inflight
		c.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
		c.mu.Lock()
		result, err := c.lastResult, c.lastErr
		c.mu.Unlock()
		return result, err
	}

	switch {
	case c.state == Fresh:
		return c.runFresh()
	case reset:
		return c.runReset()
	case c.state == Dirty:
		return c.runDirty()
	default: // Clean, reset=false: nothing changed
		c.mu.Unlock()
		return Result{}, nil
	}
}

// runFresh must be called with c.mu held; it unlocks before returning.
func (c *Calculator) runFresh() (Result, error) {
	entryPoints := append([]string(nil), c.entryPoints...)
	ch := make(chan struct{})
	c.inflight = ch
	c.state = Building
	c.mu.Unlock()

	added, err := c.g.InitialTraverse(c.runCtx, entryPoints)

	var result Result
	if err == nil {
		result = Result{Added: added, Reset: true}
	}
	// A failed first build retries InitialTraverse wholesale, not a dirty
	// re-transform of an empty set, so recovery returns to Fresh rather
	// than the generic Dirty row in §4.5's table.
	c.finishBuild(result, err, ch, Fresh, nil)
	return result, err
}

// runReset must be called with c.mu held; it unlocks before returning.
func (c *Calculator) runReset() (Result, error) {
	prior := c.state
	ch := make(chan struct{})
	c.inflight = ch
	c.state = Building

	paths := make([]string, 0, len(c.g.Modules))
	for p := range c.g.Modules {
		paths = append(paths, p)
	}
	c.mu.Unlock()

	result := Result{Added: paths, Reset: true}
	c.finishBuild(result, nil, ch, prior, nil)
	return result, nil
}

// runDirty must be called with c.mu held; it unlocks before returning.
func (c *Calculator) runDirty() (Result, error) {
	dirtySnapshot := c.dirty
	deletedSnapshot := c.deleted
	c.dirty = map[string]struct{}{}
	c.deleted = map[string]struct{}{}

	dirtyPaths := make([]string, 0, len(dirtySnapshot))
	for p := range dirtySnapshot {
		dirtyPaths = append(dirtyPaths, p)
	}
	deletedPaths := make([]string, 0, len(deletedSnapshot))
	for p := range deletedSnapshot {
		deletedPaths = append(deletedPaths, p)
	}

	ch := make(chan struct{})
	c.inflight = ch
	c.state = Building
	c.mu.Unlock()

	for _, p := range deletedPaths {
		c.g.Remove(p)
	}
	added, swept, err := c.g.Traverse(c.runCtx, dirtyPaths)

	var result Result
	if err == nil {
		result = Result{Added: added, Deleted: mergeUnique(deletedPaths, swept)}
	}

	restore := func() {
		for p := range dirtySnapshot {
			c.dirty[p] = struct{}{}
		}
		for p := range deletedSnapshot {
			c.deleted[p] = struct{}{}
		}
	}
	c.finishBuild(result, err, ch, Dirty, restore)
	return result, err
}

// finishBuild commits a build's outcome, transitions state, wakes any
// callers waiting on ch, and re-enters Dirty immediately if events
// accumulated while the build was running.
func (c *Calculator) finishBuild(result Result, err error, ch chan struct{}, errorState State, restoreOnError func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if restoreOnError != nil {
			restoreOnError()
		}
		c.state = errorState
		c.lastResult = Result{}
		c.lastErr = err
	} else {
		c.lastResult = result
		c.lastErr = nil
		if len(c.dirty) > 0 || len(c.deleted) > 0 {
			c.state = Dirty
		} else {
			c.state = Clean
		}
	}
	c.inflight = nil
	close(ch)
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
