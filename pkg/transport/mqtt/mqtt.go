// Package mqtt dispatches tasks over an MQTT broker. Tasks are published to
// each worker's task topic and answers are correlated by task id on the
// shared results topic.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/absmach/flround/pkg/fl"
	pkgmqtt "github.com/absmach/flround/pkg/mqtt"
	"github.com/absmach/flround/pkg/transport"
)

var (
	errDuplicateTask = errors.New("task already in flight")
	errWorkerFailed  = errors.New("worker failed the task")
)

type reply struct {
	res fl.Result
	err error
}

// taskRef is the part of a result needed to route it back to its sender.
type taskRef struct {
	TaskID string `json:"task_id" cbor:"task_id"`
}

var _ transport.Dispatcher = (*Dispatcher)(nil)

type Dispatcher struct {
	pubsub pkgmqtt.PubSub
	topics pkgmqtt.Topics
	codec  fl.Codec
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]chan reply
}

// NewDispatcher subscribes to the results of all workers under topics.
func NewDispatcher(ctx context.Context, pubsub pkgmqtt.PubSub, topics pkgmqtt.Topics, codec fl.Codec, logger *slog.Logger) (*Dispatcher, error) {
	if codec == nil {
		codec = fl.JSON
	}
	d := &Dispatcher{
		pubsub:  pubsub,
		topics:  topics,
		codec:   codec,
		logger:  logger,
		pending: make(map[string]chan reply),
	}

	if err := pubsub.Subscribe(ctx, topics.AllResults(), d.handleResult); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topics.AllResults(), err)
	}

	return d, nil
}

func (d *Dispatcher) Send(ctx context.Context, worker fl.WorkerHandle, task fl.Task) (fl.Result, error) {
	ch := make(chan reply, 1)

	d.mu.Lock()
	if _, ok := d.pending[task.ID]; ok {
		d.mu.Unlock()

		return fl.Result{}, fmt.Errorf("%w: %w %s", transport.ErrTransport, errDuplicateTask, task.ID)
	}
	d.pending[task.ID] = ch
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.pending, task.ID)
		d.mu.Unlock()
	}()

	data, err := d.codec.Marshal(task)
	if err != nil {
		return fl.Result{}, fmt.Errorf("%w: %w", transport.ErrTransport, err)
	}

	if err := d.pubsub.Publish(ctx, d.topics.Tasks(worker.ID), data); err != nil {
		return fl.Result{}, transport.Classify(ctx, err)
	}

	select {
	case <-ctx.Done():
		return fl.Result{}, transport.Classify(ctx, ctx.Err())
	case rep := <-ch:
		return rep.res, rep.err
	}
}

func (d *Dispatcher) Close(ctx context.Context) error {
	return d.pubsub.Unsubscribe(ctx, d.topics.AllResults())
}

func (d *Dispatcher) handleResult(topic string, payload []byte) error {
	var res fl.Result
	if err := d.codec.Unmarshal(payload, &res); err != nil {
		err = fmt.Errorf("%w: %w", transport.ErrMalformed, err)

		var ref taskRef
		if d.codec.Unmarshal(payload, &ref) == nil && d.deliver(ref.TaskID, reply{err: err}) {
			return err
		}
		d.logger.Warn("discarding undecodable result",
			slog.String("topic", topic),
			slog.Any("error", err),
		)

		return err
	}

	rep := reply{res: res}
	if res.Error != "" {
		rep = reply{err: fmt.Errorf("%w: %w: worker %s: %s", transport.ErrTransport, errWorkerFailed, res.WorkerID, res.Error)}
	}

	if !d.deliver(res.TaskID, rep) {
		d.logger.Warn("discarding result for unknown task",
			slog.String("topic", topic),
			slog.String("task_id", res.TaskID),
			slog.Uint64("round", res.Round),
		)
	}

	return nil
}

// deliver hands rep to the Send waiting on taskID. It reports false when no
// Send is waiting.
func (d *Dispatcher) deliver(taskID string, rep reply) bool {
	d.mu.Lock()
	ch, ok := d.pending[taskID]
	d.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case ch <- rep:
	default:
		d.logger.Warn("discarding duplicate result", slog.String("task_id", taskID))
	}

	return true
}
