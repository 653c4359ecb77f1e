package app

import (
	"context"
	"fmt"
	"time"

	"geocausal/domain/causal"
	"geocausal/domain/core"
	"geocausal/domain/panel"
	"geocausal/internal"
	"geocausal/ports"
)

// DefaultMinSampleSize is the minimum number of complete rows an estimation
// needs after null-filtering. Tunable, not a hard external requirement.
const DefaultMinSampleSize = 10

// DefaultFitTimeout bounds a single fitting step. Nonparametric estimators
// can run long on adversarial inputs; the timeout keeps a request from
// wedging the session.
const DefaultFitTimeout = 2 * time.Minute

// EstimationService runs the full precondition pipeline in front of the
// estimators: request validation, catalog membership, complete-row
// filtering, minimum-sample policy, then dispatch. Each call is stateless;
// the fitted model never outlives the call.
type EstimationService struct {
	registry   ports.EstimatorRegistry
	minSample  int
	fitTimeout time.Duration
	logger     *internal.Logger
}

// NewEstimationService creates the service. Non-positive tunables fall back
// to the defaults.
func NewEstimationService(registry ports.EstimatorRegistry, minSample int, fitTimeout time.Duration) *EstimationService {
	if minSample <= 0 {
		minSample = DefaultMinSampleSize
	}
	if fitTimeout <= 0 {
		fitTimeout = DefaultFitTimeout
	}
	return &EstimationService{
		registry:   registry,
		minSample:  minSample,
		fitTimeout: fitTimeout,
		logger:     internal.DefaultLogger,
	}
}

// Estimate validates the request against the panel, filters to complete
// rows, and fits the requested estimator. Validation failures surface before
// any fitting happens; fitting failures carry the triggering request.
func (s *EstimationService) Estimate(ctx context.Context, p *panel.Panel, req causal.EstimationRequest) (*causal.EstimationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(p.Indicators()) == 0 {
		return nil, core.NewValidationError("panel", "indicator catalog is empty")
	}
	for _, col := range req.Columns() {
		if !p.HasIndicator(col) {
			return nil, fmt.Errorf("%w: %s", core.ErrUnknownVariable, col)
		}
	}

	rows := p.CompleteRows(req.Columns()...)
	if len(rows) < s.minSample {
		return nil, fmt.Errorf("%w: %d complete rows after filtering, need %d",
			core.ErrInsufficientData, len(rows), s.minSample)
	}

	y := panel.Extract(rows, req.Outcome)
	t := panel.Extract(rows, req.Treatment)
	x := make([][]float64, len(rows))
	for i := range rows {
		ctrl := make([]float64, len(req.Controls))
		for j, c := range req.Controls {
			ctrl[j] = rows[i].Values[c]
		}
		x[i] = ctrl
	}

	est, ok := s.registry.Estimator(req.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownEstimator, req.Kind)
	}

	fitCtx, cancel := context.WithTimeout(ctx, s.fitTimeout)
	defer cancel()

	s.logger.Debug("fitting %s: outcome=%s treatment=%s controls=%d rows=%d",
		req.Kind, req.Outcome, req.Treatment, len(req.Controls), len(rows))

	model, err := est.Fit(fitCtx, y, t, x)
	if err != nil {
		s.logger.Error("fit failed for %s: %v", req.Kind, err)
		return nil, core.NewEstimationError(req.Outcome, req.Treatment, err)
	}

	ate, lo, hi := model.AverageEffect()
	result := &causal.EstimationResult{
		RunID:      core.RunID(core.NewID()),
		Kind:       req.Kind,
		ATE:        ate,
		CILow:      lo,
		CIHigh:     hi,
		SampleSize: len(rows),
		CreatedAt:  core.Now(),
	}
	if het, ok := model.(ports.HeterogeneousModel); ok {
		result.CATE = append([]float64(nil), het.EffectPerRow()...)
	}
	if w, ok := model.(interface{ Warnings() []string }); ok {
		result.Warnings = append(result.Warnings, w.Warnings()...)
	}
	if !result.IntervalOrdered() {
		s.logger.Warn("interval bounds out of order for run %s: [%f, %f]", result.RunID, lo, hi)
		result.Warnings = append(result.Warnings, causal.WarnIntervalInverted)
	}
	s.logger.Info("run %s: %s ATE=%.4f n=%d", result.RunID, req.Kind, ate, result.SampleSize)
	return result, nil
}
