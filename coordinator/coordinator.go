package coordinator

import (
	"context"
	"errors"

	"github.com/absmach/flround/pkg/fl"
)

var ErrRunInProgress = errors.New("a run is already in progress")

type RoundPage struct {
	Offset uint64           `json:"offset"`
	Limit  uint64           `json:"limit"`
	Total  uint64           `json:"total"`
	Rounds []fl.RoundRecord `json:"rounds"`
}

type Service interface {
	// RunRounds drives workers through numRounds synchronous rounds starting
	// from initial and returns the best round together with the history.
	// Each run starts from an empty round log.
	RunRounds(ctx context.Context, initial fl.GlobalState, numRounds uint64, workers []fl.WorkerHandle, metricKey string) (fl.Selection, error)

	Rounds(ctx context.Context, offset, limit uint64) (RoundPage, error)
	Round(ctx context.Context, round uint64) (fl.RoundRecord, error)
	Best(ctx context.Context) (fl.RoundRecord, error)
}
