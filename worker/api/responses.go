package api

import (
	"net/http"

	"github.com/absmach/flround/pkg/api"
	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/worker"
)

var _ api.Response = (*stateRes)(nil)

type taskRes struct {
	result fl.Result
	codec  fl.Codec
}

type stateRes struct {
	State worker.State `json:"state"`
}

func (res stateRes) Code() int {
	return http.StatusOK
}

func (res stateRes) Headers() map[string]string {
	return map[string]string{}
}

func (res stateRes) Empty() bool {
	return false
}
