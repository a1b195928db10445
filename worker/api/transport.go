package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/absmach/flround/pkg/api"
	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/worker"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TaskPath matches the path the HTTP dispatcher posts tasks to.
const TaskPath = "/task"

const maxTaskSize = 32 * 1024 * 1024

var (
	errMalformedTask          = errors.New("malformed task")
	errMissingTaskID          = errors.New("missing task id")
	errUnsupportedContentType = errors.New("unsupported content type")
)

func MakeHandler(svc worker.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(api.LoggingErrorEncoder(logger, encodeError)),
	}

	mux.Post(TaskPath, otelhttp.NewHandler(kithttp.NewServer(
		handleTaskEndpoint(svc),
		decodeTaskReq,
		encodeTaskRes,
		opts...,
	), "handle-task").ServeHTTP)

	mux.Get("/state", otelhttp.NewHandler(kithttp.NewServer(
		viewStateEndpoint(svc),
		kithttp.NopRequestDecoder,
		api.EncodeResponse,
		opts...,
	), "view-state").ServeHTTP)

	mux.Get("/health", api.Health("worker", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeTaskReq(_ context.Context, r *http.Request) (any, error) {
	codec, err := fl.CodecFor(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, errors.Join(errUnsupportedContentType, err)
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxTaskSize))
	if err != nil {
		return nil, err
	}

	var task fl.Task
	if err := codec.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedTask, err)
	}

	return taskReq{task: task, codec: codec}, nil
}

func encodeTaskRes(_ context.Context, w http.ResponseWriter, response any) error {
	res, ok := response.(taskRes)
	if !ok {
		return api.EncodeResponse(context.Background(), w, response)
	}

	data, err := res.codec.Marshal(res.result)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", res.codec.ContentType())
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(data)

	return err
}

func encodeError(ctx context.Context, err error, w http.ResponseWriter) {
	switch {
	case errors.Is(err, errUnsupportedContentType):
		writeError(w, http.StatusUnsupportedMediaType, err)
	case errors.Is(err, errMalformedTask):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		api.EncodeError(ctx, err, w)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, err.Error())
}
