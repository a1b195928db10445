package api

import (
	"net/http"

	"github.com/absmach/flround/coordinator"
	"github.com/absmach/flround/pkg/api"
	"github.com/absmach/flround/pkg/fl"
)

var (
	_ api.Response = (*roundRes)(nil)
	_ api.Response = (*roundPageRes)(nil)
)

type roundRes struct {
	fl.RoundRecord
}

func (res roundRes) Code() int {
	return http.StatusOK
}

func (res roundRes) Headers() map[string]string {
	return map[string]string{}
}

func (res roundRes) Empty() bool {
	return false
}

type roundPageRes struct {
	coordinator.RoundPage
}

func (res roundPageRes) Code() int {
	return http.StatusOK
}

func (res roundPageRes) Headers() map[string]string {
	return map[string]string{}
}

func (res roundPageRes) Empty() bool {
	return false
}
