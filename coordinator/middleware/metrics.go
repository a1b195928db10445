package middleware

import (
	"context"
	"time"

	"github.com/absmach/flround/coordinator"
	"github.com/absmach/flround/pkg/fl"
	"github.com/go-kit/kit/metrics"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) RunRounds(ctx context.Context, initial fl.GlobalState, numRounds uint64, workers []fl.WorkerHandle, metricKey string) (fl.Selection, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "run-rounds").Add(1)
		mm.latency.With("method", "run-rounds").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.RunRounds(ctx, initial, numRounds, workers, metricKey)
}

func (mm *metricsMiddleware) Rounds(ctx context.Context, offset, limit uint64) (coordinator.RoundPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-rounds").Add(1)
		mm.latency.With("method", "list-rounds").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Rounds(ctx, offset, limit)
}

func (mm *metricsMiddleware) Round(ctx context.Context, round uint64) (fl.RoundRecord, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "view-round").Add(1)
		mm.latency.With("method", "view-round").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Round(ctx, round)
}

func (mm *metricsMiddleware) Best(ctx context.Context) (fl.RoundRecord, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "view-best").Add(1)
		mm.latency.With("method", "view-best").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Best(ctx)
}
