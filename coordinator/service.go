package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/storage"
	"github.com/absmach/flround/pkg/transport"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defLimit = 100

type service struct {
	cfg        Config
	dispatcher transport.Dispatcher
	aggregator fl.Aggregator
	rounds     storage.Repository
	notifier   Notifier
	logger     *slog.Logger

	mu       sync.RWMutex
	running  bool
	selector *fl.Selector
}

// NewService returns a coordinator that reaches workers through dispatcher
// and appends every completed round to rounds. notifier may be nil.
func NewService(cfg Config, dispatcher transport.Dispatcher, rounds storage.Repository, notifier Notifier, logger *slog.Logger) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	aggregator, err := fl.NewAggregator(cfg.AggregationStrategy)
	if err != nil {
		return nil, err
	}

	return &service{
		cfg:        cfg,
		dispatcher: dispatcher,
		aggregator: aggregator,
		rounds:     rounds,
		notifier:   notifier,
		logger:     logger,
	}, nil
}

func (svc *service) RunRounds(ctx context.Context, initial fl.GlobalState, numRounds uint64, workers []fl.WorkerHandle, metricKey string) (fl.Selection, error) {
	if numRounds == 0 {
		return fl.Selection{}, fmt.Errorf("%w: at least one round is required", fl.ErrInvalidConfig)
	}
	if len(workers) == 0 {
		return fl.Selection{}, fmt.Errorf("%w: no workers", fl.ErrInvalidConfig)
	}
	if err := initial.Validate(); err != nil {
		return fl.Selection{}, err
	}
	quorum, err := svc.cfg.quorum(len(workers))
	if err != nil {
		return fl.Selection{}, err
	}
	if metricKey == "" {
		metricKey = svc.cfg.MetricKey
	}

	selector, err := fl.NewSelector(svc.cfg.Comparator, svc.cfg.TieBreak)
	if err != nil {
		return fl.Selection{}, err
	}

	svc.mu.Lock()
	if svc.running {
		svc.mu.Unlock()

		return fl.Selection{}, ErrRunInProgress
	}
	svc.running = true
	svc.selector = selector
	svc.mu.Unlock()

	defer func() {
		svc.mu.Lock()
		svc.running = false
		svc.mu.Unlock()
	}()

	if err := svc.rounds.Reset(ctx); err != nil {
		return fl.Selection{}, fmt.Errorf("failed to reset round log: %w", err)
	}

	state := initial.Clone()
	history := make([]fl.RoundRecord, 0, numRounds)

	for r := uint64(1); r <= numRounds; r++ {
		if err := ctx.Err(); err != nil {
			return fl.Selection{History: history}, err
		}

		rec, err := svc.runRound(ctx, state, r, workers, quorum, metricKey)
		if err != nil {
			return fl.Selection{History: history}, err
		}

		if err := svc.rounds.Save(ctx, rec); err != nil {
			return fl.Selection{History: history}, fmt.Errorf("failed to record round %d: %w", r, err)
		}
		selector.Consider(rec)
		history = append(history, rec)
		state = rec.State

		args := []any{
			slog.Uint64("round", r),
			slog.Int("accepted", rec.Accepted),
			slog.Int("rejected", rec.Rejected),
			slog.Int("attempts", rec.Attempts),
		}
		if !math.IsNaN(rec.Metric) {
			args = append(args, slog.Float64("metric", rec.Metric))
		}
		svc.logger.Info("Round completed", args...)

		if svc.notifier != nil {
			if err := svc.notifier.NotifyRound(ctx, rec, r == numRounds); err != nil {
				svc.logger.Warn("Failed to publish round notification",
					slog.Uint64("round", r),
					slog.Any("error", err),
				)
			}
		}
	}

	best, err := selector.Best()
	if err != nil {
		return fl.Selection{History: history}, err
	}

	return fl.Selection{Best: best, History: history}, nil
}

func (svc *service) Rounds(ctx context.Context, offset, limit uint64) (RoundPage, error) {
	if limit == 0 {
		limit = defLimit
	}

	records, total, err := svc.rounds.List(ctx, offset, limit)
	if err != nil {
		return RoundPage{}, err
	}

	return RoundPage{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Rounds: records,
	}, nil
}

func (svc *service) Round(ctx context.Context, round uint64) (fl.RoundRecord, error) {
	return svc.rounds.Get(ctx, round)
}

// Best reports the best round of the current or last run. A coordinator that
// has not run yet falls back to the persisted best round.
func (svc *service) Best(ctx context.Context) (fl.RoundRecord, error) {
	svc.mu.RLock()
	selector := svc.selector
	svc.mu.RUnlock()

	if selector != nil {
		if rec, err := selector.Best(); err == nil {
			return rec, nil
		}
	}

	rec, err := svc.rounds.Best(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return fl.RoundRecord{}, fl.ErrUninitializedSelector
	}

	return rec, err
}

// runRound repeats attempts of round r until quorum is met or the retry
// budget is spent, then aggregates the accepted results.
func (svc *service) runRound(ctx context.Context, state fl.GlobalState, r uint64, workers []fl.WorkerHandle, quorum int, metricKey string) (fl.RoundRecord, error) {
	var (
		attempts int
		accepted []fl.Result
		rejected int
	)

	op := func() error {
		attempts++
		acc, rej, err := svc.attempt(ctx, state, r, workers, quorum)
		if err != nil {
			return backoff.Permanent(err)
		}
		if len(acc) < quorum {
			return fmt.Errorf("%w: round %d accepted %d of %d required results", fl.ErrQuorumNotMet, r, len(acc), quorum)
		}
		accepted, rejected = acc, rej

		return nil
	}

	notify := func(err error, next time.Duration) {
		svc.logger.Warn("Round attempt failed, retrying",
			slog.Uint64("round", r),
			slog.Int("attempt", attempts),
			slog.String("delay", next.String()),
			slog.Any("error", err),
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(svc.cfg.RetryPolicy.backOff(), uint64(svc.cfg.RetryPolicy.MaxRetries)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return fl.RoundRecord{}, err
	}

	next, err := svc.aggregator.Aggregate(state, accepted)
	if err != nil {
		return fl.RoundRecord{}, fmt.Errorf("round %d: %w", r, err)
	}
	next.Round = r

	metric, reported := fl.ReduceMetric(metricKey, svc.cfg.MetricCombinator, accepted)
	if reported == 0 {
		svc.logger.Warn("No accepted result reported the key metric",
			slog.Uint64("round", r),
			slog.String("metric_key", metricKey),
		)
	}

	return fl.RoundRecord{
		Round:       r,
		State:       next,
		Metric:      metric,
		Accepted:    len(accepted),
		Rejected:    rejected,
		Attempts:    attempts,
		CompletedAt: time.Now().UTC(),
	}, nil
}

// attempt dispatches one task per worker and collects the accepted results.
// Failed and rejected workers only reduce the accepted count; the returned
// error is reserved for cancellation of ctx.
func (svc *service) attempt(ctx context.Context, state fl.GlobalState, r uint64, workers []fl.WorkerHandle, quorum int) ([]fl.Result, int, error) {
	var (
		actx   context.Context
		cancel context.CancelFunc
	)
	if svc.cfg.RoundTimeout > 0 {
		actx, cancel = context.WithTimeout(ctx, svc.cfg.RoundTimeout)
	} else {
		actx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	slots := make([]*fl.Result, len(workers))
	var (
		acceptedCount atomic.Int64
		rejectedCount atomic.Int64
		quorumReached atomic.Bool
	)

	var g errgroup.Group
	if svc.cfg.MaxConcurrency > 0 {
		g.SetLimit(svc.cfg.MaxConcurrency)
	}

	for i, w := range workers {
		task := state.Derive(uuid.NewString(), r, w, svc.cfg.Hyperparams, svc.cfg.WorkerOverrides[w.ID])

		g.Go(func() error {
			res, err := svc.send(actx, w, task)
			if err != nil {
				if quorumReached.Load() && errors.Is(err, context.Canceled) {
					svc.logger.Debug("Straggler cancelled after quorum",
						slog.Uint64("round", r),
						slog.String("worker_id", w.ID),
					)

					return nil
				}
				if errors.Is(err, transport.ErrMalformed) {
					rejectedCount.Add(1)
				}
				svc.logger.Warn("Worker failed to answer",
					slog.Uint64("round", r),
					slog.String("worker_id", w.ID),
					slog.String("task_id", task.ID),
					slog.Any("error", err),
				)

				return nil
			}

			if err := task.Check(res); err != nil {
				rejectedCount.Add(1)
				svc.logger.Warn("Discarding result",
					slog.Uint64("round", r),
					slog.String("worker_id", w.ID),
					slog.String("task_id", task.ID),
					slog.Any("error", err),
				)

				return nil
			}

			if res.ReceivedAt.IsZero() {
				res.ReceivedAt = time.Now().UTC()
			}
			slots[i] = &res

			if svc.cfg.ProceedOnQuorum && acceptedCount.Add(1) >= int64(quorum) && quorumReached.CompareAndSwap(false, true) {
				cancel()
			}

			return nil
		})
	}

	// Workers never fail the group; errors are accounted for per slot.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	accepted := make([]fl.Result, 0, len(workers))
	for _, res := range slots {
		if res != nil {
			accepted = append(accepted, *res)
		}
	}

	return accepted, int(rejectedCount.Load()), nil
}

// send delivers task to w, resending on transport failures while ctx allows.
func (svc *service) send(ctx context.Context, w fl.WorkerHandle, task fl.Task) (fl.Result, error) {
	var res fl.Result
	op := func() error {
		var err error
		res, err = svc.dispatcher.Send(ctx, w, task)
		if err != nil && !transport.Retryable(err) {
			return backoff.Permanent(err)
		}

		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(svc.cfg.RetryPolicy.backOff(), uint64(svc.cfg.RetryPolicy.MaxRetries)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return fl.Result{}, transport.Classify(ctx, err)
	}

	return res, nil
}
