package sdk_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/absmach/flround/coordinator"
	"github.com/absmach/flround/coordinator/api"
	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/sdk"
	"github.com/absmach/flround/pkg/storage"
	"github.com/absmach/flround/pkg/transport/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func levelWorker(_ context.Context, task fl.Task) (fl.Result, error) {
	level := float64(task.Round)

	return fl.Result{
		TaskID:     task.ID,
		Round:      task.Round,
		WorkerID:   task.WorkerID,
		Payload:    map[string][]float64{"level": {level}},
		Metrics:    map[string]float64{"sum": level},
		NumSamples: 1,
	}, nil
}

func newCoordinator(t *testing.T) coordinator.Service {
	t.Helper()

	workers := fl.NewWorkerSet(3)
	d := local.NewDispatcher()
	for _, w := range workers {
		d.Register(w.ID, local.HandlerFunc(levelWorker))
	}

	svc, err := coordinator.NewService(coordinator.Config{RoundTimeout: time.Second}, d, storage.NewInMemoryRepository(), nil, logger)
	require.NoError(t, err)

	return svc
}

func TestSDK(t *testing.T) {
	svc := newCoordinator(t)
	ts := httptest.NewServer(api.MakeHandler(svc, logger, "sdk-test"))
	defer ts.Close()

	client := sdk.NewSDK(sdk.Config{CoordinatorURL: ts.URL + "/"})

	_, err := client.Best()
	assert.ErrorIs(t, err, sdk.ErrNotFound)

	_, err = svc.RunRounds(context.Background(), fl.NewGlobalState(nil), 2, fl.NewWorkerSet(3), "sum")
	require.NoError(t, err)

	page, err := client.ListRounds(0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), page.Total)
	require.Len(t, page.Rounds, 2)
	assert.Equal(t, uint64(1), page.Rounds[0].Round)

	page, err = client.ListRounds(1, 1)
	require.NoError(t, err)
	require.Len(t, page.Rounds, 1)
	assert.Equal(t, uint64(2), page.Rounds[0].Round)

	rec, err := client.Round(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, rec.State.Params["level"])
	assert.Equal(t, 1.0, rec.Metric)

	_, err = client.Round(9)
	assert.ErrorIs(t, err, sdk.ErrNotFound)

	best, err := client.Best()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), best.Round)
	assert.Equal(t, []float64{2}, best.State.Params["level"])

	info, err := client.Health()
	require.NoError(t, err)
	assert.Equal(t, "pass", info.Status)
	assert.Equal(t, "sdk-test", info.InstanceID)
}
