// Package worker runs the local side of a round: it turns a task into a
// result by computing over the task parameter and evaluating the output.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/absmach/flround/pkg/fl"
)

const (
	DefaultParamKey  = "fibonacci_level"
	DefaultOutputKey = "numpy_key"
	DefaultParam     = 4
)

var (
	ErrCompute  = errors.New("failed to compute")
	ErrEvaluate = errors.New("failed to evaluate")
)

type State uint32

const (
	Idle State = iota
	Computing
	Evaluating
)

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Computing:
		return "computing"
	case Evaluating:
		return "evaluating"
	default:
		return "unknown"
	}
}

type Computer interface {
	Compute(ctx context.Context, param float64) ([]float64, error)
}

type ComputeFunc func(ctx context.Context, param float64) ([]float64, error)

func (f ComputeFunc) Compute(ctx context.Context, param float64) ([]float64, error) {
	return f(ctx, param)
}

type Evaluator interface {
	Evaluate(ctx context.Context, values []float64) (map[string]float64, error)
}

type EvaluateFunc func(ctx context.Context, values []float64) (map[string]float64, error)

func (f EvaluateFunc) Evaluate(ctx context.Context, values []float64) (map[string]float64, error) {
	return f(ctx, values)
}

// Service is what the worker transports serve.
type Service interface {
	Handle(ctx context.Context, task fl.Task) (fl.Result, error)
	State() State
}

var _ Service = (*Runtime)(nil)

type Config struct {
	ID           string  `env:"ID"            envDefault:""                toml:"id"`
	ParamKey     string  `env:"PARAM_KEY"     envDefault:"fibonacci_level" toml:"param_key"`
	DefaultParam float64 `env:"DEFAULT_PARAM" envDefault:"4"               toml:"default_param"`
	OutputKey    string  `env:"OUTPUT_KEY"    envDefault:"numpy_key"       toml:"output_key"`
}

type Runtime struct {
	cfg       Config
	computer  Computer
	evaluator Evaluator
	logger    *slog.Logger

	mu    sync.Mutex
	state atomic.Uint32
}

// NewRuntime wires a computer and an evaluator into a runtime. Empty keys in
// cfg fall back to the package defaults.
func NewRuntime(cfg Config, computer Computer, evaluator Evaluator, logger *slog.Logger) *Runtime {
	if cfg.ParamKey == "" {
		cfg.ParamKey = DefaultParamKey
	}
	if cfg.OutputKey == "" {
		cfg.OutputKey = DefaultOutputKey
	}

	return &Runtime{
		cfg:       cfg,
		computer:  computer,
		evaluator: evaluator,
		logger:    logger,
	}
}

func (rt *Runtime) ID() string {
	return rt.cfg.ID
}

func (rt *Runtime) State() State {
	return State(rt.state.Load())
}

// Handle runs one task to completion. Calls are serialized.
func (rt *Runtime) Handle(ctx context.Context, task fl.Task) (fl.Result, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	defer rt.state.Store(uint32(Idle))

	rt.logger.Info("Received task",
		slog.String("task_id", task.ID),
		slog.Uint64("round", task.Round),
		slog.Any("params", task.Params),
	)

	param, source := rt.param(task)
	rt.logger.Info("Using parameter",
		slog.String("key", rt.cfg.ParamKey),
		slog.Float64("value", param),
		slog.String("source", source),
	)

	rt.state.Store(uint32(Computing))
	values, err := rt.computer.Compute(ctx, param)
	if err != nil {
		return fl.Result{}, fmt.Errorf("%w: %w", ErrCompute, err)
	}

	rt.state.Store(uint32(Evaluating))
	metrics, err := rt.evaluator.Evaluate(ctx, values)
	if err != nil {
		return fl.Result{}, fmt.Errorf("%w: %w", ErrEvaluate, err)
	}

	if err := ctx.Err(); err != nil {
		return fl.Result{}, err
	}

	workerID := task.WorkerID
	if workerID == "" {
		workerID = rt.cfg.ID
	}

	rt.logger.Info("Finished round",
		slog.String("task_id", task.ID),
		slog.Uint64("round", task.Round),
		slog.Int("values", len(values)),
		slog.Any("metrics", metrics),
	)

	return fl.Result{
		TaskID:     task.ID,
		Round:      task.Round,
		WorkerID:   workerID,
		Payload:    map[string][]float64{rt.cfg.OutputKey: values},
		Metrics:    metrics,
		NumSamples: len(values),
	}, nil
}

// param picks the scalar parameter from the task params, then the
// hyperparams, then the configured default.
func (rt *Runtime) param(task fl.Task) (float64, string) {
	if values := task.Params[rt.cfg.ParamKey]; len(values) > 0 {
		return values[0], "params"
	}

	if raw, ok := task.Hyperparams[rt.cfg.ParamKey]; ok {
		if v, ok := toFloat(raw); ok {
			return v, "hyperparams"
		}
		rt.logger.Warn("Ignoring non-numeric hyperparameter",
			slog.String("key", rt.cfg.ParamKey),
			slog.Any("value", raw),
		)
	}

	return rt.cfg.DefaultParam, "default"
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)

		return f, err == nil
	default:
		return 0, false
	}
}
