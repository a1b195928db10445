package fl_test

import (
	"math"
	"testing"

	"github.com/absmach/flround/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector(t *testing.T) {
	cases := []struct {
		desc       string
		comparator fl.Comparator
		tieBreak   fl.TieBreak
		metrics    []float64
		bestRound  uint64
	}{
		{
			desc:      "max picks largest",
			metrics:   []float64{1, 5, 3},
			bestRound: 2,
		},
		{
			desc:       "min picks smallest",
			comparator: fl.Min,
			metrics:    []float64{4, 2, 9},
			bestRound:  2,
		},
		{
			desc:      "tie resolves to earliest round",
			metrics:   []float64{1, 7, 7, 7},
			bestRound: 2,
		},
		{
			desc:      "tie resolves to latest round when configured",
			tieBreak:  fl.Latest,
			metrics:   []float64{1, 7, 7, 7},
			bestRound: 4,
		},
		{
			desc:      "best may stay on first round",
			metrics:   []float64{9, 1, 2},
			bestRound: 1,
		},
		{
			desc:      "NaN never beats a real metric",
			metrics:   []float64{2, math.NaN(), 1},
			bestRound: 1,
		},
		{
			desc:      "real metric replaces NaN",
			metrics:   []float64{math.NaN(), 1},
			bestRound: 2,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			sel, err := fl.NewSelector(tc.comparator, tc.tieBreak)
			require.NoError(t, err)

			for i, m := range tc.metrics {
				sel.Consider(fl.RoundRecord{Round: uint64(i + 1), Metric: m})
			}

			best, err := sel.Best()
			require.NoError(t, err)
			assert.Equal(t, tc.bestRound, best.Round)
		})
	}
}

func TestSelectorUninitialized(t *testing.T) {
	sel, err := fl.NewSelector(fl.Max, fl.Earliest)
	require.NoError(t, err)

	_, err = sel.Best()
	assert.ErrorIs(t, err, fl.ErrUninitializedSelector)
}

func TestNewSelectorInvalid(t *testing.T) {
	_, err := fl.NewSelector("median", fl.Earliest)
	assert.ErrorIs(t, err, fl.ErrUnknownStrategy)

	_, err = fl.NewSelector(fl.Max, "random")
	assert.ErrorIs(t, err, fl.ErrUnknownStrategy)
}

func TestReduceMetric(t *testing.T) {
	results := []fl.Result{
		{Metrics: map[string]float64{"sum": 2}},
		{Metrics: map[string]float64{"sum": 6}},
		{Metrics: map[string]float64{"loss": 1}},
	}

	cases := []struct {
		desc       string
		combinator fl.MetricCombinator
		value      float64
	}{
		{desc: "default is mean", value: 4},
		{desc: "sum", combinator: fl.MetricSum, value: 8},
		{desc: "max", combinator: fl.MetricMax, value: 6},
		{desc: "min", combinator: fl.MetricMin, value: 2},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			v, n := fl.ReduceMetric("sum", tc.combinator, results)
			assert.Equal(t, tc.value, v)
			assert.Equal(t, 2, n)
		})
	}

	v, n := fl.ReduceMetric("accuracy", fl.MetricMean, results)
	assert.True(t, math.IsNaN(v))
	assert.Zero(t, n)
}
