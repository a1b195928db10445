package storage

import (
	"context"

	"github.com/absmach/flround/pkg/fl"
)

// Repository keeps the append-only round history and the persisted best
// round of the current run.
type Repository interface {
	// Save appends a completed round. Saving a round twice is ErrConflict.
	Save(ctx context.Context, rec fl.RoundRecord) error
	Get(ctx context.Context, round uint64) (fl.RoundRecord, error)
	// List returns rounds in ascending order together with the total count.
	List(ctx context.Context, offset, limit uint64) ([]fl.RoundRecord, uint64, error)
	// SaveBest replaces the persisted best round.
	SaveBest(ctx context.Context, rec fl.RoundRecord) error
	Best(ctx context.Context) (fl.RoundRecord, error)
	// Reset drops every stored round and the best round so a new run starts
	// from an empty log.
	Reset(ctx context.Context) error
	Close() error
}
