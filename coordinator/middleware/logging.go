package middleware

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/absmach/flround/coordinator"
	"github.com/absmach/flround/pkg/fl"
)

var _ coordinator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) RunRounds(ctx context.Context, initial fl.GlobalState, numRounds uint64, workers []fl.WorkerHandle, metricKey string) (sel fl.Selection, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("num_rounds", numRounds),
			slog.Int("workers", len(workers)),
			slog.String("metric_key", metricKey),
			slog.Int("completed_rounds", len(sel.History)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Run rounds failed", args...)

			return
		}
		args = append(args, recordGroup("best", sel.Best))
		lm.logger.Info("Run rounds completed successfully", args...)
	}(time.Now())

	return lm.svc.RunRounds(ctx, initial, numRounds, workers, metricKey)
}

func (lm *loggingMiddleware) Rounds(ctx context.Context, offset, limit uint64) (page coordinator.RoundPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List rounds failed", args...)

			return
		}
		lm.logger.Info("List rounds completed successfully", args...)
	}(time.Now())

	return lm.svc.Rounds(ctx, offset, limit)
}

func (lm *loggingMiddleware) Round(ctx context.Context, round uint64) (rec fl.RoundRecord, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("round", round),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("View round failed", args...)

			return
		}
		lm.logger.Info("View round completed successfully", args...)
	}(time.Now())

	return lm.svc.Round(ctx, round)
}

func (lm *loggingMiddleware) Best(ctx context.Context) (rec fl.RoundRecord, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("View best round failed", args...)

			return
		}
		args = append(args, recordGroup("best", rec))
		lm.logger.Info("View best round completed successfully", args...)
	}(time.Now())

	return lm.svc.Best(ctx)
}

func recordGroup(name string, rec fl.RoundRecord) slog.Attr {
	attrs := []any{slog.Uint64("round", rec.Round)}
	if !math.IsNaN(rec.Metric) {
		attrs = append(attrs, slog.Float64("metric", rec.Metric))
	}

	return slog.Group(name, attrs...)
}
