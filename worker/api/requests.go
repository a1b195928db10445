package api

import (
	"github.com/absmach/flround/pkg/fl"
)

type taskReq struct {
	task  fl.Task
	codec fl.Codec
}

func (req taskReq) validate() error {
	if req.task.ID == "" {
		return errMissingTaskID
	}

	return nil
}
