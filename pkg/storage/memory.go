package storage

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/absmach/flround/pkg/fl"
)

var _ Repository = (*inMemoryRepository)(nil)

type inMemoryRepository struct {
	sync.RWMutex

	rounds  map[uint64]fl.RoundRecord
	best    fl.RoundRecord
	hasBest bool
}

func NewInMemoryRepository() Repository {
	return &inMemoryRepository{
		rounds: make(map[uint64]fl.RoundRecord),
	}
}

func (r *inMemoryRepository) Save(_ context.Context, rec fl.RoundRecord) error {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.rounds[rec.Round]; ok {
		return ErrConflict
	}
	rec.State = rec.State.Clone()
	r.rounds[rec.Round] = rec

	return nil
}

func (r *inMemoryRepository) Get(_ context.Context, round uint64) (fl.RoundRecord, error) {
	r.RLock()
	defer r.RUnlock()

	rec, ok := r.rounds[round]
	if !ok {
		return fl.RoundRecord{}, ErrNotFound
	}
	rec.State = rec.State.Clone()

	return rec, nil
}

func (r *inMemoryRepository) List(_ context.Context, offset, limit uint64) ([]fl.RoundRecord, uint64, error) {
	r.RLock()
	defer r.RUnlock()

	keys := slices.Sorted(maps.Keys(r.rounds))
	total := uint64(len(keys))
	if offset >= total {
		return []fl.RoundRecord{}, total, nil
	}

	end := min(offset+limit, total)
	records := make([]fl.RoundRecord, 0, end-offset)
	for _, k := range keys[offset:end] {
		rec := r.rounds[k]
		rec.State = rec.State.Clone()
		records = append(records, rec)
	}

	return records, total, nil
}

func (r *inMemoryRepository) SaveBest(_ context.Context, rec fl.RoundRecord) error {
	r.Lock()
	defer r.Unlock()

	rec.State = rec.State.Clone()
	r.best = rec
	r.hasBest = true

	return nil
}

func (r *inMemoryRepository) Best(_ context.Context) (fl.RoundRecord, error) {
	r.RLock()
	defer r.RUnlock()

	if !r.hasBest {
		return fl.RoundRecord{}, ErrNotFound
	}
	rec := r.best
	rec.State = rec.State.Clone()

	return rec, nil
}

func (r *inMemoryRepository) Reset(_ context.Context) error {
	r.Lock()
	defer r.Unlock()

	r.rounds = make(map[uint64]fl.RoundRecord)
	r.best = fl.RoundRecord{}
	r.hasBest = false

	return nil
}

func (r *inMemoryRepository) Close() error {
	return nil
}
