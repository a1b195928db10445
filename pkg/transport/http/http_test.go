package http_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/transport"
	transporthttp "github.com/absmach/flround/pkg/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workerServer(t *testing.T, handler func(w http.ResponseWriter, task fl.Task, codec fl.Codec)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, transporthttp.TaskPath, r.URL.Path)

		codec, err := fl.CodecFor(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var task fl.Task
		require.NoError(t, codec.Unmarshal(body, &task))
		handler(w, task, codec)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestDispatcherSend(t *testing.T) {
	for _, codec := range []fl.Codec{fl.JSON, fl.CBOR} {
		t.Run(codec.ContentType(), func(t *testing.T) {
			srv := workerServer(t, func(w http.ResponseWriter, task fl.Task, codec fl.Codec) {
				data, err := codec.Marshal(fl.Result{
					TaskID:   task.ID,
					Round:    task.Round,
					WorkerID: task.WorkerID,
					Payload:  task.Params,
					Metrics:  map[string]float64{"sum": 1},
				})
				require.NoError(t, err)
				w.Header().Set("Content-Type", codec.ContentType())
				_, _ = w.Write(data)
			})

			d := transporthttp.NewDispatcher(map[string]string{"0": srv.URL + "/"}, codec, srv.Client())
			task := fl.Task{ID: "t", Round: 4, WorkerID: "0", Params: map[string][]float64{"level": {1, 2}}}

			res, err := d.Send(context.Background(), fl.WorkerHandle{ID: "0"}, task)
			require.NoError(t, err)
			assert.Equal(t, uint64(4), res.Round)
			assert.Equal(t, []float64{1, 2}, res.Payload["level"])
			assert.Equal(t, 1.0, res.Metrics["sum"])
		})
	}
}

func TestDispatcherErrors(t *testing.T) {
	cases := []struct {
		desc    string
		handler func(w http.ResponseWriter, task fl.Task, codec fl.Codec)
		timeout time.Duration
		kind    error
	}{
		{
			desc: "server error",
			handler: func(w http.ResponseWriter, _ fl.Task, _ fl.Codec) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			kind: transport.ErrTransport,
		},
		{
			desc: "rejected task",
			handler: func(w http.ResponseWriter, _ fl.Task, _ fl.Codec) {
				http.Error(w, "bad task", http.StatusUnprocessableEntity)
			},
			kind: transport.ErrMalformed,
		},
		{
			desc: "garbage body",
			handler: func(w http.ResponseWriter, _ fl.Task, _ fl.Codec) {
				w.Header().Set("Content-Type", fl.ContentTypeJSON)
				_, _ = w.Write([]byte("{not json"))
			},
			kind: transport.ErrMalformed,
		},
		{
			desc: "slow worker",
			handler: func(_ http.ResponseWriter, _ fl.Task, _ fl.Codec) {
				time.Sleep(200 * time.Millisecond)
			},
			timeout: 20 * time.Millisecond,
			kind:    transport.ErrTimeout,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			srv := workerServer(t, tc.handler)
			d := transporthttp.NewDispatcher(map[string]string{"0": srv.URL}, fl.JSON, srv.Client())

			ctx := context.Background()
			if tc.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tc.timeout)
				defer cancel()
			}

			_, err := d.Send(ctx, fl.WorkerHandle{ID: "0"}, fl.Task{ID: "t", Round: 1, WorkerID: "0"})
			assert.ErrorIs(t, err, tc.kind)
		})
	}
}

func TestDispatcherUnknownWorker(t *testing.T) {
	d := transporthttp.NewDispatcher(nil, nil, nil)

	_, err := d.Send(context.Background(), fl.WorkerHandle{ID: "3"}, fl.Task{})
	assert.ErrorIs(t, err, transport.ErrTransport)
}
