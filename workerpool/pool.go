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

// Package workerpool runs transform jobs across a bounded set of
// goroutines, coalescing concurrent requests for the same cache key via
// golang.org/x/sync/singleflight, and queueing fairly (FIFO within a
// priority tier; entry-point modules run at priority 0, everything else at
// priority 1).
package workerpool

import (
	"container/heap"
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrPoolClosed is returned by Submit once the pool has been closed.
var ErrPoolClosed = errors.New("workerpool: pool is closed")

// Job is the unit of work the pool executes. Run must be safe to call
// concurrently across distinct Jobs.
type Job struct {
	Key      string // single-flight coalescing key (the transform cache key)
	Priority int    // lower runs first; entry points use 0, others 1
	Run      func(ctx context.Context) (any, error)
}

type task struct {
	job   Job
	ctx   context.Context
	reply chan result
	seq   int
}

type result struct {
	value any
	err   error
}

// priorityQueue orders queued tasks by (Priority, arrival order).
type priorityQueue []*task

func (q priorityQueue) Len() int { return len(q) }
func (q priorityQueue) Less(i, j int) bool {
	if q[i].job.Priority != q[j].job.Priority {
		return q[i].job.Priority < q[j].job.Priority
	}
	return q[i].seq < q[j].seq
}
func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *priorityQueue) Push(x any)    { *q = append(*q, x.(*task)) }
func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Pool bounds parallelism across Submit callers and coalesces identical
// in-flight keys.
type Pool struct {
	mu       sync.Mutex
	queue    priorityQueue
	notEmpty chan struct{}
	sem      chan struct{}
	group    singleflight.Group
	seq      int
	closed   bool
	closeCh  chan struct{}
	closeOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Pool with maxWorkers concurrent goroutines. maxWorkers <= 0
// is treated as 1.
func New(maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	p := &Pool{
		sem:      make(chan struct{}, maxWorkers),
		notEmpty: make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
	}
	for i := 0; i < maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit runs job, sharing the result with any other in-flight Submit
// carrying the same job.Key, and returns once that shared execution
// completes or ctx is cancelled.
func (p *Pool) Submit(ctx context.Context, job Job) (any, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()

	type sfResult struct {
		val any
		err error
	}

	ch := p.group.DoChan(job.Key, func() (any, error) {
		t := &task{job: job, ctx: ctx, reply: make(chan result, 1)}
		p.mu.Lock()
		p.seq++
		t.seq = p.seq
		heap.Push(&p.queue, t)
		p.mu.Unlock()
		p.signal()

		select {
		case r := <-t.reply:
			return r.value, r.err
		case <-p.closeCh:
			return nil, ErrPoolClosed
		}
	})

	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closeCh:
		return nil, ErrPoolClosed
	}
}

func (p *Pool) signal() {
	select {
	case p.notEmpty <- struct{}{}:
	default:
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for p.queue.Len() == 0 && !p.closed {
			p.mu.Unlock()
			select {
			case <-p.notEmpty:
			case <-p.closeCh:
				return
			}
			p.mu.Lock()
		}
		if p.closed && p.queue.Len() == 0 {
			p.mu.Unlock()
			return
		}
		t := heap.Pop(&p.queue).(*task)
		p.mu.Unlock()

		p.sem <- struct{}{}
		value, err := func() (v any, e error) {
			defer func() { <-p.sem }()
			if t.ctx.Err() != nil {
				return nil, t.ctx.Err()
			}
			return t.job.Run(t.ctx)
		}()
		t.reply <- result{value: value, err: err}
	}
}

// Close stops accepting new work, abandons queued and in-flight jobs (their
// results are discarded; no side effects are applied after Close returns
// from the caller's perspective), and waits for worker goroutines to exit.
// Close is idempotent.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.closeCh)
	})
	p.wg.Wait()
}
