package worker_test

import (
	"context"
	"math"
	"testing"

	"github.com/absmach/flround/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFibonacci(t *testing.T) {
	cases := []struct {
		desc  string
		level float64
		want  []float64
		count int
		sum   float64
		err   bool
	}{
		{desc: "level zero keeps the seeds", level: 0, want: []float64{0, 1}},
		{desc: "level one keeps the seeds", level: 1, want: []float64{0, 1}},
		{desc: "level two", level: 2, want: []float64{0, 1, 1}},
		{desc: "level three", level: 3, want: []float64{0, 1, 1, 2, 3, 5}},
		{desc: "level four", level: 4, count: 10, sum: 88},
		{desc: "fractional level is truncated", level: 4.7, count: 10, sum: 88},
		{desc: "level ten", level: 10, count: 55, sum: 225851433716},
		{desc: "negative level", level: -1, err: true},
		{desc: "level above maximum", level: 51, err: true},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			values, err := worker.Fibonacci{}.Compute(context.Background(), tc.level)
			if tc.err {
				assert.Error(t, err)

				return
			}
			require.NoError(t, err)

			if tc.want != nil {
				assert.Equal(t, tc.want, values)

				return
			}
			assert.Len(t, values, tc.count)

			metrics, err := worker.Sum{}.Evaluate(context.Background(), values)
			require.NoError(t, err)
			assert.Equal(t, tc.sum, metrics["sum"])
		})
	}
}

func TestFibonacciMaxLevelIsFinite(t *testing.T) {
	values, err := worker.Fibonacci{}.Compute(context.Background(), 50)
	require.NoError(t, err)
	assert.Len(t, values, 1275)

	metrics, err := worker.Sum{}.Evaluate(context.Background(), values)
	require.NoError(t, err)
	assert.False(t, math.IsInf(metrics["sum"], 0))
}

func TestSumEmpty(t *testing.T) {
	metrics, err := worker.Sum{}.Evaluate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"sum": 0}, metrics)
}
