package fl

import (
	"fmt"
	"maps"
	"math"
)

// Check reports whether res is an acceptable answer to t.
func (t Task) Check(res Result) error {
	if res.Round != t.Round {
		return fmt.Errorf("%w: expected round %d, got %d", ErrProtocolMismatch, t.Round, res.Round)
	}
	if res.TaskID != "" && res.TaskID != t.ID {
		return fmt.Errorf("%w: expected task %s, got %s", ErrProtocolMismatch, t.ID, res.TaskID)
	}
	if res.WorkerID != "" && res.WorkerID != t.WorkerID {
		return fmt.Errorf("%w: expected worker %s, got %s", ErrProtocolMismatch, t.WorkerID, res.WorkerID)
	}
	if res.NumSamples < 0 {
		return fmt.Errorf("%w: negative sample count %d", ErrMalformedResult, res.NumSamples)
	}
	for key, values := range res.Payload {
		if key == "" {
			return fmt.Errorf("%w: empty payload key", ErrMalformedResult)
		}
		if !finite(values) {
			return fmt.Errorf("%w: payload %q holds a non-finite value", ErrMalformedResult, key)
		}
	}
	for name, v := range res.Metrics {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: metric %q is not finite", ErrMalformedResult, name)
		}
	}

	return nil
}

// Derive builds the task a worker receives for round r. Every task gets its
// own copy of the parameters; overrides replace state keys of the same name.
func (s GlobalState) Derive(id string, round uint64, worker WorkerHandle, hyperparams map[string]any, overrides map[string][]float64) Task {
	params := cloneParams(s.Params)
	maps.Copy(params, cloneParams(overrides))

	return Task{
		ID:          id,
		Round:       round,
		WorkerID:    worker.ID,
		Params:      params,
		Hyperparams: maps.Clone(hyperparams),
	}
}
