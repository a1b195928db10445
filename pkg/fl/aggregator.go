package fl

import (
	"fmt"
	"maps"
	"slices"
)

type AggregationStrategy string

const (
	Mean     AggregationStrategy = "mean"
	Sum      AggregationStrategy = "sum"
	Weighted AggregationStrategy = "weighted"
)

type Aggregator interface {
	Aggregate(previous GlobalState, results []Result) (GlobalState, error)
}

type elementwiseAggregator struct {
	strategy AggregationStrategy
}

func NewAggregator(strategy AggregationStrategy) (Aggregator, error) {
	switch strategy {
	case "":
		strategy = Mean
	case Mean, Sum, Weighted:
	default:
		return nil, fmt.Errorf("%w: aggregation %q", ErrUnknownStrategy, strategy)
	}

	return &elementwiseAggregator{strategy: strategy}, nil
}

func (a *elementwiseAggregator) Aggregate(previous GlobalState, results []Result) (GlobalState, error) {
	if len(results) == 0 {
		return GlobalState{}, ErrNoResults
	}

	next := previous.Clone()
	next.Round = previous.Round + 1

	for _, key := range resultKeys(results) {
		values, err := a.aggregateKey(key, results)
		if err != nil {
			return GlobalState{}, err
		}
		next.Params[key] = values
	}

	return next, nil
}

func (a *elementwiseAggregator) aggregateKey(key string, results []Result) ([]float64, error) {
	var (
		terms   [][]float64
		weights []float64
		width   = -1
	)

	for _, res := range results {
		values := res.Payload[key]
		if len(values) == 0 {
			continue
		}
		if width >= 0 && len(values) != width {
			return nil, fmt.Errorf("%w: key %q has lengths %d and %d", ErrShapeMismatch, key, width, len(values))
		}
		if width < 0 {
			width = len(values)
			terms = make([][]float64, width)
		}

		weight := 1.0
		if a.strategy == Weighted {
			if res.NumSamples < 0 {
				return nil, fmt.Errorf("%w: negative sample count from worker %s", ErrMalformedResult, res.WorkerID)
			}
			weight = float64(res.NumSamples)
		}
		weights = append(weights, weight)

		for i, v := range values {
			terms[i] = append(terms[i], v*weight)
		}
	}

	denominator := float64(len(weights))
	if a.strategy == Weighted {
		denominator = sortedSum(weights)
		if denominator == 0 {
			return nil, fmt.Errorf("%w: key %q", ErrZeroWeight, key)
		}
	}

	out := make([]float64, width)
	for i := range out {
		total := sortedSum(terms[i])
		if a.strategy == Sum {
			out[i] = total

			continue
		}
		out[i] = total / denominator
	}

	return out, nil
}

func resultKeys(results []Result) []string {
	keys := make(map[string]struct{})
	for _, res := range results {
		for k, v := range res.Payload {
			if len(v) > 0 {
				keys[k] = struct{}{}
			}
		}
	}

	return slices.Sorted(maps.Keys(keys))
}

// sortedSum sums in ascending order so the result is identical for every
// permutation of the input.
func sortedSum(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var total float64
	for _, v := range sorted {
		total += v
	}

	return total
}
