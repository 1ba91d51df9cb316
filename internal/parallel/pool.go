package parallel

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Stats is a snapshot of the pool occupancy.
type Stats struct {
	Size    int
	Busy    int
	Waiting int
}

// Pool owns a fixed number of execution slots. Callers which find all slots
// busy wait in arrival order, the first one to arrive gets the first slot
// released. The pool holds no state beyond memory; waiting callers are lost
// with the process.
type Pool struct {
	size    int
	sem     *semaphore.Weighted
	busy    atomic.Int64
	waiting atomic.Int64

	mx      sync.Mutex // orders snapshots delivered to observe
	observe func(Stats)
}

func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		size: size,
		sem:  semaphore.NewWeighted(int64(size)),
	}
}

// WithObserver registers fn to be called with fresh Stats on every change.
// It must be set before the pool is used.
func (p *Pool) WithObserver(fn func(Stats)) *Pool {
	p.observe = fn
	if fn != nil {
		fn(p.Stats())
	}
	return p
}

func (p *Pool) Stats() Stats {
	return Stats{
		Size:    p.size,
		Busy:    int(p.busy.Load()),
		Waiting: int(p.waiting.Load()),
	}
}

// notify takes the snapshot under mx, so the last call to observe always
// carries the latest counters.
func (p *Pool) notify() {
	if p.observe == nil {
		return
	}
	p.mx.Lock()
	defer p.mx.Unlock()
	p.observe(p.Stats())
}

// Do runs fn in a pool slot, waiting for one to be free. If ctx is done
// while waiting, fn is never called and ctx.Err() is returned.
func Do[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	p.waiting.Add(1)
	p.notify()
	err := p.sem.Acquire(ctx, 1)
	p.waiting.Add(-1)
	if err != nil {
		p.notify()
		var zero T
		return zero, err
	}

	p.busy.Add(1)
	p.notify()
	defer func() {
		p.busy.Add(-1)
		p.sem.Release(1)
		p.notify()
	}()
	return fn(ctx)
}
