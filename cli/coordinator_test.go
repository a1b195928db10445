package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCoordinatorConfig(t *testing.T) {
	t.Setenv("FL_COORDINATOR_TRANSPORT", "http")
	t.Setenv("FL_COORDINATOR_WORKER_ADDRESSES", "1=http://worker-1:9020,0=http://worker-0:9020")
	t.Setenv("FL_COORDINATOR_NUM_ROUNDS", "3")
	t.Setenv("FL_COORDINATOR_QUORUM", "1")
	t.Setenv("FL_COORDINATOR_STORAGE_TYPE", "sqlite")

	cfg, err := LoadCoordinatorConfig()
	require.NoError(t, err)

	assert.Equal(t, TransportHTTP, cfg.Transport)
	assert.Equal(t, map[string]string{"0": "http://worker-0:9020", "1": "http://worker-1:9020"}, cfg.WorkerAddresses)
	assert.Equal(t, uint64(3), cfg.Coordinator.NumRounds)
	assert.Equal(t, 1, cfg.Coordinator.Quorum)
	assert.Equal(t, "sum", cfg.Coordinator.MetricKey)
	assert.Equal(t, storage.TypeSQLite, cfg.Storage.Type)
	assert.Equal(t, defCoordinatorPort, cfg.Server.Port)
	assert.Equal(t, "info", cfg.LogLevel)

	workers, dispatcher, notifier, closeFn, err := newTransport(context.Background(), cfg, fl.JSON, logger)
	require.NoError(t, err)
	defer closeFn()

	assert.NotNil(t, dispatcher)
	assert.Nil(t, notifier)
	require.Len(t, workers, 2)
	assert.Equal(t, "0", workers[0].ID)
	assert.Equal(t, "1", workers[1].ID)
}

func TestNewTransportErrors(t *testing.T) {
	cases := []struct {
		desc string
		cfg  CoordinatorConfig
		err  error
	}{
		{
			desc: "unknown transport",
			cfg:  CoordinatorConfig{Transport: "carrier-pigeon"},
			err:  errUnknownTransport,
		},
		{
			desc: "http without addresses",
			cfg:  CoordinatorConfig{Transport: TransportHTTP},
			err:  fl.ErrInvalidConfig,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, _, _, _, err := newTransport(context.Background(), tc.cfg, fl.JSON, logger)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestLoadExperiment(t *testing.T) {
	dir := t.TempDir()

	statePath := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte(`{"fibonacci_level": [6]}`), 0o600))

	expPath := filepath.Join(dir, "experiment.toml")
	exp := `
[experiment.initial_state]
fibonacci_level = [3.0]

[coordinator]
num_rounds = 7

[storage]
type = "file"
`
	require.NoError(t, os.WriteFile(expPath, []byte(exp), 0o600))

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{"fibonacci_level": "six"}`), 0o600))

	cases := []struct {
		desc   string
		cfg    CoordinatorConfig
		state  map[string][]float64
		rounds uint64
		store  string
		err    error
	}{
		{
			desc:  "defaults",
			state: map[string][]float64{"fibonacci_level": {10}},
		},
		{
			desc:  "state file",
			cfg:   CoordinatorConfig{StateFile: statePath},
			state: map[string][]float64{"fibonacci_level": {6}},
		},
		{
			desc:   "experiment file replaces coordinator and storage",
			cfg:    CoordinatorConfig{ExperimentFile: expPath, StateFile: statePath},
			state:  map[string][]float64{"fibonacci_level": {3}},
			rounds: 7,
			store:  storage.TypeFile,
		},
		{
			desc: "malformed state file",
			cfg:  CoordinatorConfig{StateFile: badPath},
			err:  fl.ErrInvalidState,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := tc.cfg
			state, err := loadExperiment(&cfg)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.state, state.Params)
			if tc.rounds != 0 {
				assert.Equal(t, tc.rounds, cfg.Coordinator.NumRounds)
			}
			if tc.store != "" {
				assert.Equal(t, tc.store, cfg.Storage.Type)
			}
		})
	}
}
