package weave

import (
	"context"

	"github.com/specs-feup/weaver/internal/model"
	"github.com/specs-feup/weaver/internal/parallel"
)

// Dispatcher runs jobs on a fixed size pool. Jobs submitted while every slot
// is busy wait in arrival order.
type Dispatcher struct {
	pool     *parallel.Pool
	executor *Executor
}

func NewDispatcher(pool *parallel.Pool, executor *Executor) *Dispatcher {
	return &Dispatcher{
		pool:     pool,
		executor: executor,
	}
}

// Submit blocks until the job finished. An invalid request is rejected
// before it queues for a slot. When ctx is done before a slot is free the
// job never runs and ctx.Err() is returned. Once running, ctx cancellation
// kills the tool; the session is released either way.
func (d *Dispatcher) Submit(ctx context.Context, req model.JobRequest) (model.JobResult, error) {
	if err := d.executor.Validate(req); err != nil {
		return model.JobResult{}, err
	}
	return parallel.Do(ctx, d.pool, func(ctx context.Context) (model.JobResult, error) {
		return d.executor.ExecuteJob(ctx, req)
	})
}
