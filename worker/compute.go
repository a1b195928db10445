package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// maxLevel is the largest pyramid whose numbers are all finite float64s.
const maxLevel = 50

var errInvalidLevel = errors.New("invalid fibonacci level")

var (
	_ Computer  = Fibonacci{}
	_ Evaluator = Sum{}
)

// Fibonacci computes the numbers of a Fibonacci pyramid with param lines:
// n(n+1)/2 numbers, and never fewer than the two seeds 0 and 1.
type Fibonacci struct{}

func (Fibonacci) Compute(ctx context.Context, param float64) ([]float64, error) {
	if math.IsNaN(param) || param < 0 || param > maxLevel {
		return nil, fmt.Errorf("%w: %v", errInvalidLevel, param)
	}
	lines := int(param)
	total := lines * (lines + 1) / 2

	series := []float64{0, 1}
	for len(series) < total {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		series = append(series, series[len(series)-1]+series[len(series)-2])
	}

	return series, nil
}

// Sum reports the total of the computed values under the "sum" metric.
type Sum struct{}

func (Sum) Evaluate(_ context.Context, values []float64) (map[string]float64, error) {
	var total float64
	for _, v := range values {
		total += v
	}

	return map[string]float64{"sum": total}, nil
}
