package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/absmach/flround"
	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Level 10 yields the first 55 fibonacci numbers.
const level10Sum = 225851433716

var logger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func TestSimulate(t *testing.T) {
	cfg, err := flround.DefaultConfig()
	require.NoError(t, err)
	cfg.Coordinator.NumClients = 3
	cfg.Coordinator.NumRounds = 2
	cfg.Storage = storage.Config{Type: storage.TypeFile, FileDir: t.TempDir()}

	sel, err := Simulate(context.Background(), cfg, logger)
	require.NoError(t, err)
	require.Len(t, sel.History, 2)

	for i, rec := range sel.History {
		assert.Equal(t, uint64(i+1), rec.Round)
		assert.Equal(t, 3, rec.Accepted)
		assert.Equal(t, float64(level10Sum), rec.Metric)
		assert.Equal(t, []float64{flround.DefaultLevel}, rec.State.Params["fibonacci_level"])
		assert.Len(t, rec.State.Params["numpy_key"], 55)
	}

	// Every round ties, so the earliest wins.
	assert.Equal(t, uint64(1), sel.Best.Round)

	repo, err := storage.New(cfg.Storage)
	require.NoError(t, err)
	defer repo.Close()

	best, err := repo.Best(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), best.Round)
	assert.Equal(t, float64(level10Sum), best.Metric)
	require.NoError(t, repo.Close())

	// A second run on the same directory replaces the first run's rounds.
	cfg.Coordinator.NumRounds = 1
	sel, err = Simulate(context.Background(), cfg, logger)
	require.NoError(t, err)
	require.Len(t, sel.History, 1)

	repo, err = storage.New(cfg.Storage)
	require.NoError(t, err)
	defer repo.Close()

	_, total, err := repo.List(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
}

func TestSimulateErrors(t *testing.T) {
	cases := []struct {
		desc   string
		modify func(cfg *flround.Config)
		err    error
	}{
		{
			desc:   "no workers",
			modify: func(cfg *flround.Config) { cfg.Coordinator.NumClients = 0 },
			err:    fl.ErrInvalidConfig,
		},
		{
			desc:   "no rounds",
			modify: func(cfg *flround.Config) { cfg.Coordinator.NumRounds = 0 },
			err:    fl.ErrInvalidConfig,
		},
		{
			desc:   "unknown storage",
			modify: func(cfg *flround.Config) { cfg.Storage.Type = "tape" },
			err:    storage.ErrUnsupported,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg, err := flround.DefaultConfig()
			require.NoError(t, err)
			tc.modify(&cfg)

			_, err = Simulate(context.Background(), cfg, logger)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestSimulateCmd(t *testing.T) {
	cmd := NewSimulateCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--clients", "2", "--rounds", "2", "--log-level", "error"})

	require.NoError(t, cmd.Execute())
	assert.Empty(t, errOut.String())
	assert.Contains(t, out.String(), "225851433716")
	assert.Contains(t, out.String(), "numpy_key")
}

func TestSimulateCmdLevel(t *testing.T) {
	cmd := NewSimulateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	// Level 4 yields ten numbers summing to 88.
	cmd.SetArgs([]string{"--clients", "1", "--rounds", "1", "--level", "4", "--log-level", "error"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "88")
}

func TestNamedWorkers(t *testing.T) {
	workers := namedWorkers([]string{"0", "1", "2"})

	require.Len(t, workers, 3)
	for i, w := range workers {
		assert.Equal(t, []string{"0", "1", "2"}[i], w.ID)
		assert.NotEmpty(t, w.Name)
	}
}
