// Package http dispatches tasks to workers exposing the POST /task endpoint.
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/transport"
	"github.com/go-kit/kit/endpoint"
	kithttp "github.com/go-kit/kit/transport/http"
)

const TaskPath = "/task"

var (
	errUnknownWorker = errors.New("no address configured for worker")
	errStatus        = errors.New("unexpected response status")
)

var _ transport.Dispatcher = (*Dispatcher)(nil)

type Dispatcher struct {
	client *http.Client
	codec  fl.Codec

	mu        sync.Mutex
	addresses map[string]string
	endpoints map[string]endpoint.Endpoint
}

// NewDispatcher maps worker ids to base URLs such as http://worker-0:9020.
func NewDispatcher(addresses map[string]string, codec fl.Codec, client *http.Client) *Dispatcher {
	if codec == nil {
		codec = fl.JSON
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &Dispatcher{
		client:    client,
		codec:     codec,
		addresses: addresses,
		endpoints: make(map[string]endpoint.Endpoint),
	}
}

func (d *Dispatcher) Send(ctx context.Context, worker fl.WorkerHandle, task fl.Task) (fl.Result, error) {
	ep, err := d.endpoint(worker.ID)
	if err != nil {
		return fl.Result{}, fmt.Errorf("%w: %w", transport.ErrTransport, err)
	}

	resp, err := ep(ctx, task)
	if err != nil {
		return fl.Result{}, transport.Classify(ctx, err)
	}

	res, ok := resp.(fl.Result)
	if !ok {
		return fl.Result{}, fmt.Errorf("%w: unexpected response type %T", transport.ErrMalformed, resp)
	}

	return res, nil
}

func (d *Dispatcher) endpoint(workerID string) (endpoint.Endpoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ep, ok := d.endpoints[workerID]; ok {
		return ep, nil
	}

	addr, ok := d.addresses[workerID]
	if !ok {
		return nil, fmt.Errorf("%w %s", errUnknownWorker, workerID)
	}
	u, err := url.Parse(strings.TrimSuffix(addr, "/") + TaskPath)
	if err != nil {
		return nil, err
	}

	ep := kithttp.NewClient(
		http.MethodPost,
		u,
		encodeTask(d.codec),
		decodeResult,
		kithttp.SetClient(d.client),
	).Endpoint()
	d.endpoints[workerID] = ep

	return ep, nil
}

func encodeTask(codec fl.Codec) kithttp.EncodeRequestFunc {
	return func(_ context.Context, r *http.Request, request any) error {
		data, err := codec.Marshal(request)
		if err != nil {
			return err
		}
		r.Header.Set("Content-Type", codec.ContentType())
		r.Header.Set("Accept", codec.ContentType())
		r.ContentLength = int64(len(data))
		r.Body = io.NopCloser(bytes.NewReader(data))

		return nil
	}
}

func decodeResult(_ context.Context, resp *http.Response) (any, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if resp.StatusCode == http.StatusUnprocessableEntity {
			return nil, fmt.Errorf("%w: %s", transport.ErrMalformed, msg)
		}

		return nil, fmt.Errorf("%w %s: %s", errStatus, resp.Status, msg)
	}

	codec, err := fl.CodecFor(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transport.ErrMalformed, err)
	}

	var res fl.Result
	if err := codec.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("%w: %w", transport.ErrMalformed, err)
	}

	return res, nil
}
