package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/mqtt"
)

var (
	errEmptyID       = errors.New("worker id is required to listen for tasks")
	errMalformedTask = errors.New("malformed task")
)

type statusMessage struct {
	Status    string    `json:"status"`
	WorkerID  string    `json:"worker_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Run listens for tasks on the worker's task topic and publishes every result
// to its results topic until ctx is cancelled.
func Run(ctx context.Context, rt *Runtime, pubsub mqtt.PubSub, topics mqtt.Topics, codec fl.Codec, logger *slog.Logger) error {
	if rt.ID() == "" {
		return errEmptyID
	}
	if codec == nil {
		codec = fl.JSON
	}

	var wg sync.WaitGroup
	handler := func(topic string, payload []byte) error {
		var task fl.Task
		if err := codec.Unmarshal(payload, &task); err != nil {
			return fmt.Errorf("%w: %w", errMalformedTask, err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			handleTask(ctx, rt, pubsub, topics, codec, task, logger)
		}()

		return nil
	}

	tasksTopic := topics.Tasks(rt.ID())
	if err := pubsub.Subscribe(ctx, tasksTopic, handler); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", tasksTopic, err)
	}
	publishStatus(ctx, pubsub, topics, rt.ID(), "online", logger)
	logger.Info("Worker listening for tasks", slog.String("worker_id", rt.ID()), slog.String("topic", tasksTopic))

	<-ctx.Done()

	// ctx is done, so the teardown messages get a fresh deadline.
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := pubsub.Unsubscribe(stopCtx, tasksTopic)
	wg.Wait()
	publishStatus(stopCtx, pubsub, topics, rt.ID(), "offline", logger)

	return err
}

func handleTask(ctx context.Context, rt *Runtime, pubsub mqtt.PubSub, topics mqtt.Topics, codec fl.Codec, task fl.Task, logger *slog.Logger) {
	res, err := rt.Handle(ctx, task)
	if err != nil {
		logger.Error("Failed to handle task",
			slog.String("task_id", task.ID),
			slog.Uint64("round", task.Round),
			slog.Any("error", err),
		)
		res = fl.Result{
			TaskID:   task.ID,
			Round:    task.Round,
			WorkerID: rt.ID(),
			Error:    err.Error(),
		}
	}

	data, err := codec.Marshal(res)
	if err != nil {
		logger.Error("Failed to encode result", slog.String("task_id", task.ID), slog.Any("error", err))

		return
	}

	if err := pubsub.Publish(ctx, topics.Results(rt.ID()), data); err != nil {
		logger.Error("Failed to publish result", slog.String("task_id", task.ID), slog.Any("error", err))
	}
}

func publishStatus(ctx context.Context, pubsub mqtt.PubSub, topics mqtt.Topics, id, status string, logger *slog.Logger) {
	msg := statusMessage{
		Status:    status,
		WorkerID:  id,
		Timestamp: time.Now().UTC(),
	}
	if err := pubsub.Publish(ctx, topics.Status(id), msg); err != nil {
		logger.Warn("Failed to publish worker status", slog.String("status", status), slog.Any("error", err))
	}
}
