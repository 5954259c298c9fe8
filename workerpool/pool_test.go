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
package workerpool_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bundlecore.dev/bundler/workerpool"
)

func TestSubmitRunsJobAndReturnsResult(t *testing.T) {
	p := workerpool.New(2)
	defer p.Close()

	v, err := p.Submit(context.Background(), workerpool.Job{
		Key: "a",
		Run: func(ctx context.Context) (any, error) {
			return 42, nil
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestSubmitCoalescesSameKey(t *testing.T) {
	p := workerpool.New(1)
	defer p.Close()

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	job := workerpool.Job{
		Key: "shared",
		Run: func(ctx context.Context) (any, error) {
			atomic.AddInt32(&calls, 1)
			close(started)
			<-release
			return "done", nil
		},
	}

	results := make(chan any, 2)
	go func() {
		v, _ := p.Submit(context.Background(), job)
		results <- v
	}()

	<-started

	go func() {
		v, _ := p.Submit(context.Background(), job)
		results <- v
	}()

	time.Sleep(10 * time.Millisecond)
	close(release)

	r1 := <-results
	r2 := <-results

	assert.Equal(t, "done", r1)
	assert.Equal(t, "done", r2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCloseRejectsFurtherSubmit(t *testing.T) {
	p := workerpool.New(1)
	p.Close()

	_, err := p.Submit(context.Background(), workerpool.Job{
		Key: "x",
		Run: func(ctx context.Context) (any, error) { return nil, nil },
	})

	assert.ErrorIs(t, err, workerpool.ErrPoolClosed)
}

func TestSubmitHonorsContextCancellation(t *testing.T) {
	p := workerpool.New(1)
	defer p.Close()

	block := make(chan struct{})
	defer close(block)

	// occupy the single worker so the next job queues
	go p.Submit(context.Background(), workerpool.Job{
		Key: "busy",
		Run: func(ctx context.Context) (any, error) {
			<-block
			return nil, nil
		},
	})
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Submit(ctx, workerpool.Job{
		Key: "queued",
		Run: func(ctx context.Context) (any, error) { return nil, nil },
	})

	assert.Error(t, err)
}
