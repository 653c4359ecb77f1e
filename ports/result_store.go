package ports

import (
	"context"

	"geocausal/domain/causal"
	"geocausal/domain/core"
)

// ResultStore persists precomputed model-result tables and estimation runs.
// Result tables are written once and read many times; nothing mutates a
// stored row.
type ResultStore interface {
	// SaveModelTable replaces the stored result table. Model names must be
	// unique within the table.
	SaveModelTable(ctx context.Context, rows []causal.ModelRow) error

	// LoadModelTable returns every stored model row in insertion order.
	LoadModelTable(ctx context.Context) ([]causal.ModelRow, error)

	// RecordRun appends one estimation result to the audit trail.
	RecordRun(ctx context.Context, req causal.EstimationRequest, res *causal.EstimationResult) error

	// LoadRun returns one recorded estimation by run ID.
	LoadRun(ctx context.Context, id core.RunID) (*causal.EstimationResult, error)
}
