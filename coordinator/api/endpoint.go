package api

import (
	"context"
	"errors"

	"github.com/absmach/flround/coordinator"
	"github.com/absmach/flround/pkg/api"
	pkgerrors "github.com/absmach/flround/pkg/errors"
	"github.com/go-kit/kit/endpoint"
)

func listRoundsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listRoundsReq)
		if !ok {
			return roundPageRes{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundPageRes{}, errors.Join(api.ErrValidation, err)
		}

		page, err := svc.Rounds(ctx, req.offset, req.limit)
		if err != nil {
			return roundPageRes{}, err
		}

		return roundPageRes{RoundPage: page}, nil
	}
}

func viewRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(viewRoundReq)
		if !ok {
			return roundRes{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundRes{}, errors.Join(api.ErrValidation, err)
		}

		rec, err := svc.Round(ctx, req.round)
		if err != nil {
			return roundRes{}, err
		}

		return roundRes{RoundRecord: rec}, nil
	}
}

func viewBestEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		rec, err := svc.Best(ctx)
		if err != nil {
			return roundRes{}, err
		}

		return roundRes{RoundRecord: rec}, nil
	}
}
