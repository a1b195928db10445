package fl

import (
	"fmt"
	"math"
)

type MetricCombinator string

const (
	MetricMean MetricCombinator = "mean"
	MetricSum  MetricCombinator = "sum"
	MetricMax  MetricCombinator = "max"
	MetricMin  MetricCombinator = "min"
)

func (c MetricCombinator) Validate() error {
	switch c {
	case "", MetricMean, MetricSum, MetricMax, MetricMin:
		return nil
	default:
		return fmt.Errorf("%w: metric combinator %q", ErrUnknownStrategy, c)
	}
}

// ReduceMetric combines the metric named key across results. Results that do
// not report the metric are skipped; NaN is returned when none do.
func ReduceMetric(key string, combinator MetricCombinator, results []Result) (float64, int) {
	values := make([]float64, 0, len(results))
	for _, res := range results {
		if v, ok := res.Metrics[key]; ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return math.NaN(), 0
	}

	switch combinator {
	case MetricSum:
		return sortedSum(values), len(values)
	case MetricMax:
		best := values[0]
		for _, v := range values[1:] {
			best = math.Max(best, v)
		}

		return best, len(values)
	case MetricMin:
		best := values[0]
		for _, v := range values[1:] {
			best = math.Min(best, v)
		}

		return best, len(values)
	default:
		return sortedSum(values) / float64(len(values)), len(values)
	}
}
