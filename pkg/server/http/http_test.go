package http_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/absmach/flround/pkg/server"
	httpserver "github.com/absmach/flround/pkg/server/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerStopsOnCancel(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())

	hs := httpserver.NewServer(ctx, cancel, "test", server.Config{Host: "127.0.0.1", Port: "0"}, http.NotFoundHandler(), logger)

	done := make(chan error, 1)
	go func() {
		done <- hs.Start()
	}()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(server.StopWaitTime + time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStopSignalHandlerReturnsOnDone(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, server.StopSignalHandler(ctx, cancel, logger, "test"))
}
