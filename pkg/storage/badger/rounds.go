package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/absmach/flround/pkg/fl"
)

var (
	roundPrefix = []byte("round:")
	bestKey     = []byte("best")
)

type RoundRepository struct {
	db *Database
}

func NewRoundRepository(db *Database) *RoundRepository {
	return &RoundRepository{db: db}
}

// roundKey encodes the round big-endian so iteration order is round order.
func roundKey(round uint64) []byte {
	key := make([]byte, len(roundPrefix)+8)
	copy(key, roundPrefix)
	binary.BigEndian.PutUint64(key[len(roundPrefix):], round)

	return key
}

func (r *RoundRepository) Save(_ context.Context, rec fl.RoundRecord) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return r.db.create(roundKey(rec.Round), val)
}

func (r *RoundRepository) Get(_ context.Context, round uint64) (fl.RoundRecord, error) {
	val, err := r.db.get(roundKey(round))
	if err != nil {
		return fl.RoundRecord{}, err
	}

	return unmarshalRecord(val)
}

func (r *RoundRepository) List(_ context.Context, offset, limit uint64) ([]fl.RoundRecord, uint64, error) {
	total, err := r.db.countWithPrefix(roundPrefix)
	if err != nil {
		return nil, 0, err
	}
	values, err := r.db.listWithPrefix(roundPrefix, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	records := make([]fl.RoundRecord, len(values))
	for i, val := range values {
		if records[i], err = unmarshalRecord(val); err != nil {
			return nil, 0, err
		}
	}

	return records, total, nil
}

func (r *RoundRepository) SaveBest(_ context.Context, rec fl.RoundRecord) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return r.db.set(bestKey, val)
}

func (r *RoundRepository) Best(_ context.Context) (fl.RoundRecord, error) {
	val, err := r.db.get(bestKey)
	if err != nil {
		return fl.RoundRecord{}, err
	}

	return unmarshalRecord(val)
}

func (r *RoundRepository) Reset(_ context.Context) error {
	return r.db.drop(roundPrefix, bestKey)
}

func (r *RoundRepository) Close() error {
	return r.db.Close()
}

func unmarshalRecord(val []byte) (fl.RoundRecord, error) {
	var rec fl.RoundRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return fl.RoundRecord{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return rec, nil
}
