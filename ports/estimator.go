package ports

import (
	"context"
)

// Estimator is the common capability every causal estimation strategy
// implements: fit on (outcome, treatment, controls), then report the average
// effect and interval from the fitted model.
type Estimator interface {
	Name() string

	// Fit trains the estimator on n observations. y and t have length n;
	// x has length n with one control vector per observation (possibly
	// empty). The fitted model is scoped to this call and discarded after.
	Fit(ctx context.Context, y, t []float64, x [][]float64) (FittedModel, error)
}

// FittedModel reports effect estimates from one fit.
type FittedModel interface {
	// AverageEffect returns the ATE point estimate and its 95% confidence
	// interval as reported by the estimation procedure. Bounds are not
	// reordered; asymmetric intervals pass through unmodified.
	AverageEffect() (ate, ciLow, ciHigh float64)
}

// HeterogeneousModel is implemented by fitted models that expose a
// per-observation conditional effect (one value per fitted row, input order).
type HeterogeneousModel interface {
	FittedModel
	EffectPerRow() []float64
}
