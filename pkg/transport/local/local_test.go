package local_test

import (
	"context"
	"testing"
	"time"

	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/transport"
	"github.com/absmach/flround/pkg/transport/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(_ context.Context, task fl.Task) (fl.Result, error) {
	return fl.Result{TaskID: task.ID, Round: task.Round, WorkerID: task.WorkerID, Payload: task.Params}, nil
}

func TestDispatcherSend(t *testing.T) {
	t.Parallel()

	d := local.NewDispatcher()
	d.Register("0", local.HandlerFunc(echo))

	task := fl.Task{ID: "t", Round: 1, WorkerID: "0", Params: map[string][]float64{"w": {3}}}
	res, err := d.Send(context.Background(), fl.WorkerHandle{ID: "0"}, task)
	require.NoError(t, err)
	assert.Equal(t, "t", res.TaskID)
	assert.Equal(t, []float64{3}, res.Payload["w"])
}

func TestDispatcherUnknownWorker(t *testing.T) {
	t.Parallel()

	d := local.NewDispatcher()
	_, err := d.Send(context.Background(), fl.WorkerHandle{ID: "9"}, fl.Task{})
	assert.ErrorIs(t, err, transport.ErrTransport)
}

func TestDispatcherTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	d := local.NewDispatcher()
	d.Register("0", local.HandlerFunc(func(_ context.Context, _ fl.Task) (fl.Result, error) {
		<-release

		return fl.Result{}, nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.Send(ctx, fl.WorkerHandle{ID: "0"}, fl.Task{})
	assert.ErrorIs(t, err, transport.ErrTimeout)
}

func TestDispatcherHandlerError(t *testing.T) {
	t.Parallel()

	d := local.NewDispatcher()
	d.Register("0", local.HandlerFunc(func(_ context.Context, _ fl.Task) (fl.Result, error) {
		return fl.Result{}, fl.ErrMalformedResult
	}))

	_, err := d.Send(context.Background(), fl.WorkerHandle{ID: "0"}, fl.Task{})
	assert.ErrorIs(t, err, transport.ErrMalformed)
}
