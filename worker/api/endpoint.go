package api

import (
	"context"
	"errors"

	"github.com/absmach/flround/pkg/api"
	pkgerrors "github.com/absmach/flround/pkg/errors"
	"github.com/absmach/flround/worker"
	"github.com/go-kit/kit/endpoint"
)

func handleTaskEndpoint(svc worker.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(taskReq)
		if !ok {
			return taskRes{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return taskRes{}, errors.Join(errMalformedTask, err)
		}

		res, err := svc.Handle(ctx, req.task)
		if err != nil {
			return taskRes{}, err
		}

		return taskRes{result: res, codec: req.codec}, nil
	}
}

func viewStateEndpoint(svc worker.Service) endpoint.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		return stateRes{State: svc.State()}, nil
	}
}
