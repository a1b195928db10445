package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/absmach/flround/pkg/fl"
)

const (
	roundFilePrefix = "round_"
	roundFileSuffix = ".json"
	bestFile        = "best.json"
)

var _ Repository = (*fileRepository)(nil)

// fileRepository writes one indented JSON document per round into dir.
type fileRepository struct {
	mu  sync.RWMutex
	dir string
}

func NewFileRepository(dir string) (Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create rounds directory: %w", err)
	}

	return &fileRepository{dir: dir}, nil
}

func (r *fileRepository) Save(_ context.Context, rec fl.RoundRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.roundPath(rec.Round)
	if _, err := os.Stat(path); err == nil {
		return ErrConflict
	}

	return writeRecord(path, rec)
}

func (r *fileRepository) Get(_ context.Context, round uint64) (fl.RoundRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return readRecord(r.roundPath(round))
}

func (r *fileRepository) List(_ context.Context, offset, limit uint64) ([]fl.RoundRecord, uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var rounds []uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, roundFilePrefix) || !strings.HasSuffix(name, roundFileSuffix) {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimPrefix(name, roundFilePrefix), roundFileSuffix), 10, 64)
		if err != nil {
			continue
		}
		rounds = append(rounds, n)
	}
	slices.Sort(rounds)

	total := uint64(len(rounds))
	if offset >= total {
		return []fl.RoundRecord{}, total, nil
	}

	end := min(offset+limit, total)
	records := make([]fl.RoundRecord, 0, end-offset)
	for _, n := range rounds[offset:end] {
		rec, err := readRecord(r.roundPath(n))
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}

	return records, total, nil
}

func (r *fileRepository) SaveBest(_ context.Context, rec fl.RoundRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return writeRecord(filepath.Join(r.dir, bestFile), rec)
}

func (r *fileRepository) Best(_ context.Context) (fl.RoundRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return readRecord(filepath.Join(r.dir, bestFile))
}

func (r *fileRepository) Reset(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (name != bestFile && !strings.HasPrefix(name, roundFilePrefix)) {
			continue
		}
		if err := os.Remove(filepath.Join(r.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w", ErrUpdate, err)
		}
	}

	return nil
}

func (r *fileRepository) Close() error {
	return nil
}

func (r *fileRepository) roundPath(round uint64) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s%06d%s", roundFilePrefix, round, roundFileSuffix))
}

func writeRecord(path string, rec fl.RoundRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal round record: %w", err)
	}

	// Write then rename so readers never observe a partial file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func readRecord(path string) (fl.RoundRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fl.RoundRecord{}, ErrNotFound
		}

		return fl.RoundRecord{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var rec fl.RoundRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fl.RoundRecord{}, fmt.Errorf("%w: %w", ErrDBScan, err)
	}

	return rec, nil
}
