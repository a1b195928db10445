package mqtt_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/absmach/flround/pkg/fl"
	pkgmqtt "github.com/absmach/flround/pkg/mqtt"
	"github.com/absmach/flround/pkg/mqtt/mocks"
	"github.com/absmach/flround/pkg/transport"
	"github.com/absmach/flround/pkg/transport/mqtt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// serveWorker answers tasks on the worker's topic by echoing the round.
func serveWorker(t *testing.T, broker *mocks.Broker, topics pkgmqtt.Topics, codec fl.Codec, id string) {
	t.Helper()

	err := broker.Subscribe(context.Background(), topics.Tasks(id), func(_ string, payload []byte) error {
		var task fl.Task
		if err := codec.Unmarshal(payload, &task); err != nil {
			return err
		}
		res := fl.Result{
			TaskID:   task.ID,
			Round:    task.Round,
			WorkerID: id,
			Payload:  map[string][]float64{"level": {float64(task.Round)}},
		}
		data, err := codec.Marshal(res)
		if err != nil {
			return err
		}

		return broker.Publish(context.Background(), topics.Results(id), data)
	})
	require.NoError(t, err)
}

func TestDispatcherSend(t *testing.T) {
	topics := pkgmqtt.NewTopics("")

	for _, codec := range []fl.Codec{fl.JSON, fl.CBOR} {
		t.Run(codec.ContentType(), func(t *testing.T) {
			broker := mocks.NewBroker()
			serveWorker(t, broker, topics, codec, "1")

			d, err := mqtt.NewDispatcher(context.Background(), broker, topics, codec, logger)
			require.NoError(t, err)
			assert.True(t, broker.Subscribed(topics.AllResults()))

			res, err := d.Send(context.Background(), fl.WorkerHandle{ID: "1"}, fl.Task{ID: "a", Round: 2, WorkerID: "1"})
			require.NoError(t, err)
			assert.Equal(t, "a", res.TaskID)
			assert.Equal(t, []float64{2}, res.Payload["level"])

			require.NoError(t, d.Close(context.Background()))
			assert.False(t, broker.Subscribed(topics.AllResults()))
		})
	}
}

func TestDispatcherSilentWorker(t *testing.T) {
	topics := pkgmqtt.NewTopics("")
	broker := mocks.NewBroker()

	d, err := mqtt.NewDispatcher(context.Background(), broker, topics, fl.JSON, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = d.Send(ctx, fl.WorkerHandle{ID: "0"}, fl.Task{ID: "a", Round: 1})
	assert.ErrorIs(t, err, transport.ErrTimeout)
}

func TestDispatcherFailedReplies(t *testing.T) {
	topics := pkgmqtt.NewTopics("")

	cases := []struct {
		desc  string
		reply func(task fl.Task) []byte
		err   error
	}{
		{
			desc: "worker reports an error",
			reply: func(task fl.Task) []byte {
				data, _ := fl.JSON.Marshal(fl.Result{TaskID: task.ID, Round: task.Round, WorkerID: "0", Error: "compute failed"})

				return data
			},
			err: transport.ErrTransport,
		},
		{
			desc: "undecodable result",
			reply: func(task fl.Task) []byte {
				return []byte(`{"task_id": "` + task.ID + `", "round": "one"}`)
			},
			err: transport.ErrMalformed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			broker := mocks.NewBroker()
			err := broker.Subscribe(context.Background(), topics.Tasks("0"), func(_ string, payload []byte) error {
				var task fl.Task
				if err := fl.JSON.Unmarshal(payload, &task); err != nil {
					return err
				}

				return broker.Publish(context.Background(), topics.Results("0"), tc.reply(task))
			})
			require.NoError(t, err)

			d, err := mqtt.NewDispatcher(context.Background(), broker, topics, fl.JSON, logger)
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			_, err = d.Send(ctx, fl.WorkerHandle{ID: "0"}, fl.Task{ID: "a", Round: 1, WorkerID: "0"})
			assert.ErrorIs(t, err, tc.err)
			assert.NotErrorIs(t, err, transport.ErrTimeout)
			assert.NoError(t, ctx.Err())
		})
	}
}

func TestDispatcherPublishFailure(t *testing.T) {
	topics := pkgmqtt.NewTopics("")
	ps := new(mocks.MockPubSub)
	ps.On("Subscribe", mock.Anything, topics.AllResults(), mock.Anything).Return(nil)
	ps.On("Publish", mock.Anything, topics.Tasks("0"), mock.Anything).Return(errors.New("not connected"))

	d, err := mqtt.NewDispatcher(context.Background(), ps, topics, fl.JSON, logger)
	require.NoError(t, err)

	_, err = d.Send(context.Background(), fl.WorkerHandle{ID: "0"}, fl.Task{ID: "a", Round: 1})
	assert.ErrorIs(t, err, transport.ErrTransport)
	ps.AssertExpectations(t)
}

func TestDispatcherSubscribeFailure(t *testing.T) {
	topics := pkgmqtt.NewTopics("")
	ps := new(mocks.MockPubSub)
	ps.On("Subscribe", mock.Anything, topics.AllResults(), mock.Anything).Return(errors.New("denied"))

	_, err := mqtt.NewDispatcher(context.Background(), ps, topics, fl.JSON, logger)
	assert.Error(t, err)
}
