// Package local dispatches tasks to workers running in the same process.
package local

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/transport"
)

var errUnknownWorker = errors.New("unknown worker")

type Handler interface {
	Handle(ctx context.Context, task fl.Task) (fl.Result, error)
}

type HandlerFunc func(ctx context.Context, task fl.Task) (fl.Result, error)

func (f HandlerFunc) Handle(ctx context.Context, task fl.Task) (fl.Result, error) {
	return f(ctx, task)
}

var _ transport.Dispatcher = (*Dispatcher)(nil)

type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
	}
}

func (d *Dispatcher) Register(workerID string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[workerID] = h
}

func (d *Dispatcher) Send(ctx context.Context, worker fl.WorkerHandle, task fl.Task) (fl.Result, error) {
	d.mu.RLock()
	h, ok := d.handlers[worker.ID]
	d.mu.RUnlock()
	if !ok {
		return fl.Result{}, fmt.Errorf("%w: %w %s", transport.ErrTransport, errUnknownWorker, worker.ID)
	}

	type reply struct {
		res fl.Result
		err error
	}
	ch := make(chan reply, 1)

	go func() {
		res, err := h.Handle(ctx, task)
		ch <- reply{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return fl.Result{}, transport.Classify(ctx, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return fl.Result{}, transport.Classify(ctx, r.err)
		}

		return r.res, nil
	}
}
