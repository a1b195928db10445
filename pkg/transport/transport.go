// Package transport defines how the coordinator reaches workers. Concrete
// transports live in subpackages; all of them classify failures with the
// errors below so the coordinator can tell a slow worker from a broken one.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/absmach/flround/pkg/fl"
)

var (
	ErrTimeout   = errors.New("worker did not answer before the deadline")
	ErrMalformed = errors.New("malformed message from worker")
	ErrTransport = errors.New("transport failure")
)

type Dispatcher interface {
	Send(ctx context.Context, worker fl.WorkerHandle, task fl.Task) (fl.Result, error)
}

type DispatcherFunc func(ctx context.Context, worker fl.WorkerHandle, task fl.Task) (fl.Result, error)

func (f DispatcherFunc) Send(ctx context.Context, worker fl.WorkerHandle, task fl.Task) (fl.Result, error) {
	return f(ctx, worker, task)
}

// Classify maps a raw failure onto ErrTimeout, ErrMalformed or ErrTransport.
// Errors already carrying one of those kinds are returned unchanged.
func Classify(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrMalformed), errors.Is(err, ErrTransport):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, fl.ErrMalformedResult), errors.Is(err, fl.ErrProtocolMismatch):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
}

// Retryable reports whether a failed send is worth repeating.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransport) && !errors.Is(err, context.Canceled)
}
