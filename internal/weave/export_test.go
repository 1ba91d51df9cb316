package weave

import (
	"context"

	"github.com/specs-feup/weaver/internal/service"
)

// SetRunFunc replaces the subprocess runner of e.
func SetRunFunc(e *Executor, fn func(context.Context, service.Command, service.StderrFunc) service.Result) {
	e.run = fn
}
