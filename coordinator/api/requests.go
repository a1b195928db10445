package api

import (
	"github.com/absmach/flround/pkg/api"
)

type listRoundsReq struct {
	offset, limit uint64
}

func (req listRoundsReq) validate() error {
	if req.limit > api.MaxLimitSize {
		return api.ErrLimitSize
	}

	return nil
}

type viewRoundReq struct {
	round uint64
}

func (req viewRoundReq) validate() error {
	if req.round == 0 {
		return api.ErrInvalidQuery
	}

	return nil
}
