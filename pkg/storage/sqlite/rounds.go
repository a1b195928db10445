package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	pkgerrors "github.com/absmach/flround/pkg/errors"
	"github.com/absmach/flround/pkg/fl"
)

const roundColumns = `round, state, metric, accepted, rejected, attempts, completed_at`

type RoundRepository struct {
	db *Database
}

func NewRoundRepository(db *Database) *RoundRepository {
	return &RoundRepository{db: db}
}

type dbRound struct {
	Round       int64           `db:"round"`
	State       []byte          `db:"state"`
	Metric      sql.NullFloat64 `db:"metric"`
	Accepted    int             `db:"accepted"`
	Rejected    int             `db:"rejected"`
	Attempts    int             `db:"attempts"`
	CompletedAt time.Time       `db:"completed_at"`
}

func (r *RoundRepository) Save(ctx context.Context, rec fl.RoundRecord) error {
	row, err := toDBRound(rec)
	if err != nil {
		return err
	}

	query := `INSERT INTO rounds (` + roundColumns + `)
		VALUES (:round, :state, :metric, :accepted, :rejected, :attempts, :completed_at)
		ON CONFLICT (round) DO NOTHING`

	res, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}
	if n == 0 {
		return pkgerrors.ErrEntityExists
	}

	return nil
}

func (r *RoundRepository) Get(ctx context.Context, round uint64) (fl.RoundRecord, error) {
	var row dbRound
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE round = ?`
	if err := r.db.GetContext(ctx, &row, query, int64(round)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.RoundRecord{}, pkgerrors.ErrNotFound
		}

		return fl.RoundRecord{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return fromDBRound(row)
}

func (r *RoundRepository) List(ctx context.Context, offset, limit uint64) ([]fl.RoundRecord, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM rounds`); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var rows []dbRound
	query := `SELECT ` + roundColumns + ` FROM rounds ORDER BY round ASC LIMIT ? OFFSET ?`
	if err := r.db.SelectContext(ctx, &rows, query, int64(min(limit, math.MaxInt64)), int64(min(offset, math.MaxInt64))); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	records := make([]fl.RoundRecord, len(rows))
	for i, row := range rows {
		rec, err := fromDBRound(row)
		if err != nil {
			return nil, 0, err
		}
		records[i] = rec
	}

	return records, total, nil
}

func (r *RoundRepository) SaveBest(ctx context.Context, rec fl.RoundRecord) error {
	row, err := toDBRound(rec)
	if err != nil {
		return err
	}

	query := `INSERT INTO best_round (id, ` + roundColumns + `)
		VALUES (1, :round, :state, :metric, :accepted, :rejected, :attempts, :completed_at)
		ON CONFLICT (id) DO UPDATE SET
			round = excluded.round,
			state = excluded.state,
			metric = excluded.metric,
			accepted = excluded.accepted,
			rejected = excluded.rejected,
			attempts = excluded.attempts,
			completed_at = excluded.completed_at`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

func (r *RoundRepository) Best(ctx context.Context) (fl.RoundRecord, error) {
	var row dbRound
	query := `SELECT ` + roundColumns + ` FROM best_round WHERE id = 1`
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.RoundRecord{}, pkgerrors.ErrNotFound
		}

		return fl.RoundRecord{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return fromDBRound(row)
}

func (r *RoundRepository) Reset(ctx context.Context) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, query := range []string{`DELETE FROM best_round`, `DELETE FROM rounds`} {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("%w: %w", ErrUpdate, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

func (r *RoundRepository) Close() error {
	return r.db.Close()
}

func toDBRound(rec fl.RoundRecord) (dbRound, error) {
	state, err := json.Marshal(rec.State)
	if err != nil {
		return dbRound{}, fmt.Errorf("marshal error: %w", err)
	}

	return dbRound{
		Round:       int64(rec.Round),
		State:       state,
		Metric:      sql.NullFloat64{Float64: rec.Metric, Valid: !math.IsNaN(rec.Metric)},
		Accepted:    rec.Accepted,
		Rejected:    rec.Rejected,
		Attempts:    rec.Attempts,
		CompletedAt: rec.CompletedAt.UTC(),
	}, nil
}

func fromDBRound(row dbRound) (fl.RoundRecord, error) {
	var state fl.GlobalState
	if err := json.Unmarshal(row.State, &state); err != nil {
		return fl.RoundRecord{}, fmt.Errorf("%w: %w", ErrDBScan, err)
	}

	metric := math.NaN()
	if row.Metric.Valid {
		metric = row.Metric.Float64
	}

	return fl.RoundRecord{
		Round:       uint64(row.Round),
		State:       state,
		Metric:      metric,
		Accepted:    row.Accepted,
		Rejected:    row.Rejected,
		Attempts:    row.Attempts,
		CompletedAt: row.CompletedAt,
	}, nil
}
