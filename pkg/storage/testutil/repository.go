// Package testutil holds behaviour shared by every Repository backend test.
package testutil

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Record(round uint64, metric float64) fl.RoundRecord {
	return fl.RoundRecord{
		Round: round,
		State: fl.GlobalState{
			Round:  round,
			Params: map[string][]float64{"level": {float64(round)}, "w": {0.5, -1.25}},
		},
		Metric:      metric,
		Accepted:    3,
		Rejected:    1,
		Attempts:    1,
		CompletedAt: time.Date(2025, 3, 1, 12, 0, int(round), 0, time.UTC),
	}
}

func assertRecord(t *testing.T, want, got fl.RoundRecord) {
	t.Helper()

	assert.Equal(t, want.Round, got.Round)
	assert.Equal(t, want.State, got.State)
	if math.IsNaN(want.Metric) {
		assert.True(t, math.IsNaN(got.Metric))
	} else {
		assert.Equal(t, want.Metric, got.Metric)
	}
	assert.Equal(t, want.Accepted, got.Accepted)
	assert.Equal(t, want.Rejected, got.Rejected)
	assert.Equal(t, want.Attempts, got.Attempts)
	assert.True(t, want.CompletedAt.Equal(got.CompletedAt), "completed at %s, want %s", got.CompletedAt, want.CompletedAt)
}

// RunRepositoryTests checks repo, which must be empty, against the
// Repository contract.
func RunRepositoryTests(t *testing.T, repo storage.Repository) {
	t.Helper()
	ctx := context.Background()

	_, err := repo.Best(ctx)
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repo.Get(ctx, 1)
	require.ErrorIs(t, err, storage.ErrNotFound)

	records, total, err := repo.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, total)

	// Stored out of order on purpose.
	for _, round := range []uint64{3, 1, 2, 10} {
		require.NoError(t, repo.Save(ctx, Record(round, float64(round)*2)))
	}
	require.NoError(t, repo.Save(ctx, Record(4, math.NaN())))

	err = repo.Save(ctx, Record(2, 99))
	require.ErrorIs(t, err, storage.ErrConflict)

	got, err := repo.Get(ctx, 2)
	require.NoError(t, err)
	assertRecord(t, Record(2, 4), got)

	got, err = repo.Get(ctx, 4)
	require.NoError(t, err)
	assertRecord(t, Record(4, math.NaN()), got)

	cases := []struct {
		desc   string
		offset uint64
		limit  uint64
		rounds []uint64
	}{
		{desc: "all", offset: 0, limit: 10, rounds: []uint64{1, 2, 3, 4, 10}},
		{desc: "first page", offset: 0, limit: 2, rounds: []uint64{1, 2}},
		{desc: "second page", offset: 2, limit: 2, rounds: []uint64{3, 4}},
		{desc: "past the end", offset: 7, limit: 2, rounds: nil},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			records, total, err := repo.List(ctx, tc.offset, tc.limit)
			require.NoError(t, err)
			assert.Equal(t, uint64(5), total)

			rounds := make([]uint64, 0, len(records))
			for _, rec := range records {
				rounds = append(rounds, rec.Round)
			}
			assert.ElementsMatch(t, tc.rounds, rounds)
			if len(tc.rounds) > 0 {
				assert.Equal(t, tc.rounds, rounds)
			}
		})
	}

	require.NoError(t, repo.SaveBest(ctx, Record(3, 6)))
	require.NoError(t, repo.SaveBest(ctx, Record(10, 20)))

	best, err := repo.Best(ctx)
	require.NoError(t, err)
	assertRecord(t, Record(10, 20), best)

	require.NoError(t, repo.Reset(ctx))

	_, err = repo.Best(ctx)
	require.ErrorIs(t, err, storage.ErrNotFound)

	records, total, err = repo.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, total)

	// Round numbers are free again after a reset.
	require.NoError(t, repo.Save(ctx, Record(1, 7)))
	got, err = repo.Get(ctx, 1)
	require.NoError(t, err)
	assertRecord(t, Record(1, 7), got)
}
