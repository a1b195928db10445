package fl

import (
	"encoding/json"
	"maps"
	"math"
	"slices"
	"strconv"
	"time"
)

// GlobalState is the coordinator-owned model passed into every round.
// A value is never edited after it has been handed out; use Clone to derive
// a new one.
type GlobalState struct {
	Round  uint64               `json:"round"  cbor:"round"`
	Params map[string][]float64 `json:"params" cbor:"params"`
}

func NewGlobalState(params map[string][]float64) GlobalState {
	return GlobalState{
		Params: cloneParams(params),
	}
}

func (s GlobalState) Clone() GlobalState {
	return GlobalState{
		Round:  s.Round,
		Params: cloneParams(s.Params),
	}
}

func (s GlobalState) Keys() []string {
	return slices.Sorted(maps.Keys(s.Params))
}

type Task struct {
	ID          string               `json:"task_id"               cbor:"task_id"`
	Round       uint64               `json:"round"                 cbor:"round"`
	WorkerID    string               `json:"worker_id"             cbor:"worker_id"`
	Params      map[string][]float64 `json:"params"                cbor:"params"`
	Hyperparams map[string]any       `json:"hyperparams,omitempty" cbor:"hyperparams,omitempty"`
}

type Result struct {
	TaskID     string               `json:"task_id"               cbor:"task_id"`
	Round      uint64               `json:"round"                 cbor:"round"`
	WorkerID   string               `json:"worker_id"             cbor:"worker_id"`
	Payload    map[string][]float64 `json:"payload"               cbor:"payload"`
	Metrics    map[string]float64   `json:"metrics"               cbor:"metrics"`
	NumSamples int                  `json:"num_samples"           cbor:"num_samples"`
	ReceivedAt time.Time            `json:"received_at,omitempty" cbor:"received_at,omitempty"`
	// Error is set, in place of a payload, when the worker failed the task.
	Error string `json:"error,omitempty" cbor:"error,omitempty"`
}

type RoundRecord struct {
	Round       uint64      `json:"round"`
	State       GlobalState `json:"state"`
	Metric      float64     `json:"metric"`
	Accepted    int         `json:"accepted"`
	Rejected    int         `json:"rejected"`
	Attempts    int         `json:"attempts"`
	CompletedAt time.Time   `json:"completed_at"`
}

// MarshalJSON writes a NaN metric, recorded when no worker reported it, as null.
func (r RoundRecord) MarshalJSON() ([]byte, error) {
	type alias RoundRecord
	aux := struct {
		alias
		Metric *float64 `json:"metric"`
	}{alias: alias(r)}
	if !math.IsNaN(r.Metric) && !math.IsInf(r.Metric, 0) {
		aux.Metric = &r.Metric
	}

	return json.Marshal(aux)
}

func (r *RoundRecord) UnmarshalJSON(data []byte) error {
	type alias RoundRecord
	aux := struct {
		*alias
		Metric *float64 `json:"metric"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.Metric = math.NaN()
	if aux.Metric != nil {
		r.Metric = *aux.Metric
	}

	return nil
}

type WorkerHandle struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// NewWorkerSet returns handles with ids "0".."n-1".
func NewWorkerSet(n int) []WorkerHandle {
	workers := make([]WorkerHandle, n)
	for i := range workers {
		id := strconv.Itoa(i)
		workers[i] = WorkerHandle{ID: id, Name: "worker-" + id}
	}

	return workers
}

type Selection struct {
	Best    RoundRecord   `json:"best"`
	History []RoundRecord `json:"history"`
}

func cloneParams(params map[string][]float64) map[string][]float64 {
	out := make(map[string][]float64, len(params))
	for k, v := range params {
		out[k] = slices.Clone(v)
	}

	return out
}
