package fl_test

import (
	"math"
	"strings"
	"testing"

	"github.com/absmach/flround/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskCheck(t *testing.T) {
	task := fl.Task{ID: "t1", Round: 3, WorkerID: "0"}

	cases := []struct {
		desc   string
		result fl.Result
		err    error
	}{
		{
			desc:   "matching result",
			result: fl.Result{TaskID: "t1", Round: 3, WorkerID: "0", Payload: map[string][]float64{"w": {1}}},
		},
		{
			desc:   "ids omitted",
			result: fl.Result{Round: 3},
		},
		{
			desc:   "stale round",
			result: fl.Result{TaskID: "t1", Round: 2, WorkerID: "0"},
			err:    fl.ErrProtocolMismatch,
		},
		{
			desc:   "foreign task",
			result: fl.Result{TaskID: "t2", Round: 3, WorkerID: "0"},
			err:    fl.ErrProtocolMismatch,
		},
		{
			desc:   "foreign worker",
			result: fl.Result{TaskID: "t1", Round: 3, WorkerID: "1"},
			err:    fl.ErrProtocolMismatch,
		},
		{
			desc:   "non-finite payload",
			result: fl.Result{Round: 3, Payload: map[string][]float64{"w": {math.Inf(1)}}},
			err:    fl.ErrMalformedResult,
		},
		{
			desc:   "non-finite metric",
			result: fl.Result{Round: 3, Metrics: map[string]float64{"sum": math.NaN()}},
			err:    fl.ErrMalformedResult,
		},
		{
			desc:   "negative samples",
			result: fl.Result{Round: 3, NumSamples: -1},
			err:    fl.ErrMalformedResult,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			err := task.Check(tc.result)
			if tc.err == nil {
				assert.NoError(t, err)

				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestDeriveCopiesState(t *testing.T) {
	state := fl.NewGlobalState(map[string][]float64{"w": {1, 2}, "level": {4}})
	hyper := map[string]any{"lr": 0.1}

	task := state.Derive("id", 1, fl.WorkerHandle{ID: "2"}, hyper, map[string][]float64{"level": {9}})
	task.Params["w"][0] = 100
	task.Hyperparams["lr"] = 1.0

	assert.Equal(t, []float64{1, 2}, state.Params["w"])
	assert.Equal(t, []float64{4}, state.Params["level"])
	assert.Equal(t, []float64{9}, task.Params["level"])
	assert.Equal(t, 0.1, hyper["lr"])
	assert.Equal(t, "2", task.WorkerID)
	assert.Equal(t, uint64(1), task.Round)
}

func TestLoadState(t *testing.T) {
	state, err := fl.LoadState(strings.NewReader(`{"fibonacci_level": [10]}`))
	require.NoError(t, err)
	assert.Equal(t, []float64{10}, state.Params["fibonacci_level"])
	assert.Zero(t, state.Round)

	_, err = fl.LoadState(strings.NewReader(`{"fibonacci_level": 10}`))
	assert.ErrorIs(t, err, fl.ErrInvalidState)

	_, err = fl.LoadState(strings.NewReader(`{"": [1]}`))
	assert.ErrorIs(t, err, fl.ErrInvalidState)
}

func TestCodecs(t *testing.T) {
	task := fl.Task{
		ID:          "t1",
		Round:       2,
		WorkerID:    "1",
		Params:      map[string][]float64{"level": {4}},
		Hyperparams: map[string]any{"mode": "fast"},
	}

	for _, codec := range []fl.Codec{fl.JSON, fl.CBOR} {
		data, err := codec.Marshal(task)
		require.NoError(t, err)

		var got fl.Task
		require.NoError(t, codec.Unmarshal(data, &got))
		assert.Equal(t, task, got, codec.ContentType())

		c, err := fl.CodecFor(codec.ContentType() + "; charset=utf-8")
		require.NoError(t, err)
		assert.Equal(t, codec.ContentType(), c.ContentType())
	}

	_, err := fl.CodecFor("text/plain")
	assert.ErrorIs(t, err, fl.ErrUnknownStrategy)
}

func TestRoundRecordJSON(t *testing.T) {
	rec := fl.RoundRecord{
		Round:    2,
		State:    fl.GlobalState{Round: 2, Params: map[string][]float64{"level": {2}}},
		Metric:   math.NaN(),
		Accepted: 3,
	}

	data, err := fl.JSON.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"metric":null`)

	var got fl.RoundRecord
	require.NoError(t, fl.JSON.Unmarshal(data, &got))
	assert.True(t, math.IsNaN(got.Metric))
	assert.Equal(t, rec.State, got.State)
	assert.Equal(t, 3, got.Accepted)

	rec.Metric = 6
	data, err = fl.JSON.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, fl.JSON.Unmarshal(data, &got))
	assert.Equal(t, 6.0, got.Metric)
}
