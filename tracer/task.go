package tracer

import "context"

// Task is polled by long running operations to detect cancellation requests.
type Task interface {
	Cancelled() bool
}

// A task that is never cancelled.
var Background Task = backgroundTask{}

type backgroundTask struct{}

func (backgroundTask) Cancelled() bool { return false }

type contextTask struct {
	ctx context.Context
}

// Adapt a context to the Task interface. The task is cancelled once the
// context is done.
func ContextTask(ctx context.Context) Task {
	return contextTask{ctx: ctx}
}

func (t contextTask) Cancelled() bool {
	return t.ctx.Err() != nil
}

// A Task backed by a function.
type TaskFunc func() bool

func (f TaskFunc) Cancelled() bool { return f() }
