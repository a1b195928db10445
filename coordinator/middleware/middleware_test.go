package middleware_test

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/absmach/flround/coordinator"
	"github.com/absmach/flround/coordinator/middleware"
	"github.com/absmach/flround/coordinator/mocks"
	"github.com/absmach/flround/pkg/fl"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/generic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

// methodCounter counts Add calls per "method" label value.
type methodCounter struct {
	mu     *sync.Mutex
	counts map[string]float64
	method string
}

func newMethodCounter() *methodCounter {
	return &methodCounter{mu: &sync.Mutex{}, counts: map[string]float64{}}
}

func (c *methodCounter) With(labelValues ...string) metrics.Counter {
	next := *c
	for i := 0; i+1 < len(labelValues); i += 2 {
		if labelValues[i] == "method" {
			next.method = labelValues[i+1]
		}
	}

	return &next
}

func (c *methodCounter) Add(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts[c.method] += delta
}

func TestMiddlewareChain(t *testing.T) {
	best := fl.RoundRecord{Round: 2, Metric: 6}
	workers := fl.NewWorkerSet(3)

	svc := new(mocks.MockService)
	svc.On("RunRounds", mock.Anything, mock.Anything, uint64(2), workers, "sum").
		Return(fl.Selection{Best: best, History: []fl.RoundRecord{{Round: 1, Metric: math.NaN()}, best}}, nil)
	svc.On("Best", mock.Anything).Return(fl.RoundRecord{}, fl.ErrUninitializedSelector)
	svc.On("Round", mock.Anything, uint64(2)).Return(best, nil)
	svc.On("Rounds", mock.Anything, uint64(0), uint64(10)).Return(coordinator.RoundPage{Total: 2}, nil)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	counter := newMethodCounter()
	latency := generic.NewHistogram("latency", 10)

	wrapped := middleware.Logging(logger, svc)
	wrapped = middleware.Metrics(counter, latency, wrapped)
	wrapped = middleware.Tracing(noop.NewTracerProvider().Tracer("test"), wrapped)

	ctx := context.Background()
	sel, err := wrapped.RunRounds(ctx, fl.NewGlobalState(nil), 2, workers, "sum")
	require.NoError(t, err)
	assert.Equal(t, best, sel.Best)

	_, err = wrapped.Best(ctx)
	assert.ErrorIs(t, err, fl.ErrUninitializedSelector)

	rec, err := wrapped.Round(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.Round)

	page, err := wrapped.Rounds(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), page.Total)

	assert.Equal(t, map[string]float64{"run-rounds": 1, "view-best": 1, "view-round": 1, "list-rounds": 1}, counter.counts)
	assert.Contains(t, buf.String(), "Run rounds completed successfully")
	assert.Contains(t, buf.String(), "View best round failed")
	svc.AssertExpectations(t)
}
