package middleware

import (
	"context"

	"github.com/absmach/flround/coordinator"
	"github.com/absmach/flround/pkg/fl"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) RunRounds(ctx context.Context, initial fl.GlobalState, numRounds uint64, workers []fl.WorkerHandle, metricKey string) (sel fl.Selection, err error) {
	ctx, span := tm.tracer.Start(ctx, "run-rounds", trace.WithAttributes(
		attribute.Int64("num_rounds", int64(numRounds)),
		attribute.Int("workers", len(workers)),
		attribute.String("metric_key", metricKey),
		attribute.StringSlice("keys", initial.Keys()),
	))
	defer func() {
		span.SetAttributes(attribute.Int("completed_rounds", len(sel.History)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int64("best_round", int64(sel.Best.Round)))
		}
		span.End()
	}()

	return tm.svc.RunRounds(ctx, initial, numRounds, workers, metricKey)
}

func (tm *tracing) Rounds(ctx context.Context, offset, limit uint64) (coordinator.RoundPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-rounds", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.Rounds(ctx, offset, limit)
}

func (tm *tracing) Round(ctx context.Context, round uint64) (fl.RoundRecord, error) {
	ctx, span := tm.tracer.Start(ctx, "view-round", trace.WithAttributes(
		attribute.Int64("round", int64(round)),
	))
	defer span.End()

	return tm.svc.Round(ctx, round)
}

func (tm *tracing) Best(ctx context.Context) (fl.RoundRecord, error) {
	ctx, span := tm.tracer.Start(ctx, "view-best")
	defer span.End()

	return tm.svc.Best(ctx)
}
