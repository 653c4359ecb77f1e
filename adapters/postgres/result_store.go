package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"geocausal/domain/causal"
	"geocausal/domain/core"
	"geocausal/ports"
)

// resultStore implements the ResultStore interface over postgres.
type resultStore struct {
	db *sqlx.DB
}

// NewResultStore creates a new postgres-backed result store.
func NewResultStore(db *sqlx.DB) ports.ResultStore {
	return &resultStore{db: db}
}

// Migrate creates the result tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS model_results (
		position INT NOT NULL,
		model    TEXT PRIMARY KEY,
		ate      DOUBLE PRECISION NOT NULL,
		ci_low   DOUBLE PRECISION NOT NULL,
		ci_high  DOUBLE PRECISION NOT NULL,
		abs_ate  DOUBLE PRECISION NOT NULL
	);
	CREATE TABLE IF NOT EXISTS estimation_runs (
		run_id      TEXT PRIMARY KEY,
		estimator   TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		treatment   TEXT NOT NULL,
		controls    JSONB NOT NULL,
		ate         DOUBLE PRECISION NOT NULL,
		ci_low      DOUBLE PRECISION NOT NULL,
		ci_high     DOUBLE PRECISION NOT NULL,
		sample_size INT NOT NULL,
		cate        JSONB,
		warnings    JSONB,
		created_at  TIMESTAMPTZ NOT NULL
	);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create result tables: %w", err)
	}
	return nil
}

// SaveModelTable replaces the stored result table in one transaction.
func (r *resultStore) SaveModelTable(ctx context.Context, rows []causal.ModelRow) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM model_results`); err != nil {
		return fmt.Errorf("failed to clear model results: %w", err)
	}
	query := `INSERT INTO model_results (position, model, ate, ci_low, ci_high, abs_ate)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for i, row := range rows {
		if _, err := tx.ExecContext(ctx, query, i, row.Model, row.ATE, row.CILow, row.CIHigh, row.AbsATE); err != nil {
			return fmt.Errorf("failed to insert model %s: %w", row.Model, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit model results: %w", err)
	}
	return nil
}

// LoadModelTable returns the stored result table in insertion order.
func (r *resultStore) LoadModelTable(ctx context.Context) ([]causal.ModelRow, error) {
	query := `SELECT model, ate, ci_low, ci_high, abs_ate FROM model_results ORDER BY position`
	var rows []causal.ModelRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load model results: %w", err)
	}
	return rows, nil
}

// RecordRun appends one estimation result to the audit trail.
func (r *resultStore) RecordRun(ctx context.Context, req causal.EstimationRequest, res *causal.EstimationResult) error {
	controlsJSON, err := json.Marshal(req.Controls)
	if err != nil {
		return fmt.Errorf("failed to marshal controls: %w", err)
	}
	cateJSON, err := json.Marshal(res.CATE)
	if err != nil {
		return fmt.Errorf("failed to marshal cate: %w", err)
	}
	warningsJSON, err := json.Marshal(res.Warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	query := `INSERT INTO estimation_runs (
		run_id, estimator, outcome, treatment, controls,
		ate, ci_low, ci_high, sample_size, cate, warnings, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = r.db.ExecContext(ctx, query,
		res.RunID.String(), string(res.Kind), req.Outcome, req.Treatment, controlsJSON,
		res.ATE, res.CILow, res.CIHigh, res.SampleSize, cateJSON, warningsJSON, res.CreatedAt.Time(),
	)
	if err != nil {
		return fmt.Errorf("failed to record estimation run: %w", err)
	}
	return nil
}

// LoadRun returns one recorded estimation by run ID.
func (r *resultStore) LoadRun(ctx context.Context, id core.RunID) (*causal.EstimationResult, error) {
	query := `SELECT run_id, estimator, ate, ci_low, ci_high, sample_size, cate, warnings, created_at
		FROM estimation_runs WHERE run_id = $1`

	var (
		runID        string
		estimator    string
		res          causal.EstimationResult
		cateJSON     []byte
		warningsJSON []byte
		createdAt    time.Time
	)
	row := r.db.QueryRowxContext(ctx, query, id.String())
	err := row.Scan(&runID, &estimator, &res.ATE, &res.CILow, &res.CIHigh,
		&res.SampleSize, &cateJSON, &warningsJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", core.ErrEmptyTable, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	res.RunID = core.RunID(runID)
	res.Kind = causal.EstimatorKind(estimator)
	res.CreatedAt = core.NewTimestamp(createdAt)
	if len(cateJSON) > 0 {
		if err := json.Unmarshal(cateJSON, &res.CATE); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cate for run %s: %w", id, err)
		}
	}
	if len(warningsJSON) > 0 {
		if err := json.Unmarshal(warningsJSON, &res.Warnings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal warnings for run %s: %w", id, err)
		}
	}
	return &res, nil
}
