package causal

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"geocausal/domain/core"
	"geocausal/ports"
)

// EstimatorConfig tunes every estimator variant: the nuisance forest, the
// number of cross-fitting folds, and the seed that keeps runs deterministic.
type EstimatorConfig struct {
	Forest ForestConfig
	Folds  int
	Seed   int64
}

// DefaultEstimatorConfig returns the tuning used when nothing overrides it.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{Forest: DefaultForestConfig(), Folds: 5, Seed: 42}
}

// LinearDMLEstimator implements linear double machine learning: nuisance
// functions E[Y|X] and E[T|X] are fit with the regression forest under
// cross-fitting, and the final stage regresses the outcome residual on the
// treatment residual (partialling-out).
type LinearDMLEstimator struct {
	cfg EstimatorConfig
}

// NewLinearDML creates the estimator.
func NewLinearDML(cfg EstimatorConfig) *LinearDMLEstimator {
	return &LinearDMLEstimator{cfg: cfg}
}

func (e *LinearDMLEstimator) Name() string { return "LinearDML" }

// Fit residualizes and runs the final-stage OLS. The fitted model reports a
// single scalar ATE and interval; per-row heterogeneity is not exposed.
func (e *LinearDMLEstimator) Fit(ctx context.Context, y, t []float64, x [][]float64) (ports.FittedModel, error) {
	if variance(t) == 0 {
		return nil, core.ErrNoVariation
	}

	rY, rT, err := residualize(ctx, y, t, x, e.cfg)
	if err != nil {
		return nil, err
	}

	ate, lo, hi, err := partiallingOut(rY, rT)
	if err != nil {
		return nil, err
	}
	return &linearDMLModel{ate: ate, lo: lo, hi: hi}, nil
}

type linearDMLModel struct {
	ate, lo, hi float64
}

func (m *linearDMLModel) AverageEffect() (float64, float64, float64) {
	return m.ate, m.lo, m.hi
}

// partiallingOut solves the final stage: OLS of residY on [1, residT], theta
// is the slope, and the 95% interval comes from the influence-function
// variance of the orthogonal moment.
func partiallingOut(rY, rT []float64) (ate, lo, hi float64, err error) {
	n := len(rY)
	sumSqT := 0.0
	for _, v := range rT {
		sumSqT += v * v
	}
	if sumSqT < 1e-12 {
		return 0, 0, 0, fmt.Errorf("%w after residualization", core.ErrNoVariation)
	}

	design := make([][]float64, n)
	for i := 0; i < n; i++ {
		design[i] = []float64{1, rT[i]}
	}
	coef, err := olsSolve(design, rY)
	if err != nil {
		return 0, 0, 0, err
	}
	theta := coef[1]

	// Influence of the orthogonal moment psi = rT*(rY - theta*rT).
	sumPsiSq := 0.0
	for i := 0; i < n; i++ {
		psi := rT[i] * (rY[i] - theta*rT[i])
		sumPsiSq += psi * psi
	}
	se := math.Sqrt(sumPsiSq) / sumSqT
	return theta, theta - z975*se, theta + z975*se, nil
}

// residualize computes cross-fitted residuals of y and t against the
// controls. With no controls, the nuisance prediction is the training mean
// (simple de-meaning). Every in-fold prediction comes from a forest that
// never saw the fold.
func residualize(ctx context.Context, y, t []float64, x [][]float64, cfg EstimatorConfig) (rY, rT []float64, err error) {
	n := len(y)
	rY = make([]float64, n)
	rT = make([]float64, n)

	hasControls := len(x) > 0 && len(x[0]) > 0
	rng := rand.New(rand.NewSource(cfg.Seed))
	folds := crossFitFolds(n, cfg.Folds, rng)

	for fi, fold := range folds {
		train := complementOf(n, fold)
		if !hasControls {
			my := meanAt(y, train)
			mt := meanAt(t, train)
			for _, i := range fold {
				rY[i] = y[i] - my
				rT[i] = t[i] - mt
			}
			continue
		}

		trainX := make([][]float64, len(train))
		trainY := make([]float64, len(train))
		trainT := make([]float64, len(train))
		for j, i := range train {
			trainX[j] = x[i]
			trainY[j] = y[i]
			trainT[j] = t[i]
		}

		fcfg := cfg.Forest
		fcfg.Seed = cfg.Seed + int64(fi)*104729
		outcomeForest, err := fitForest(ctx, trainX, trainY, nil, fcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("outcome nuisance: %w", err)
		}
		fcfg.Seed++
		treatForest, err := fitForest(ctx, trainX, trainT, nil, fcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("treatment nuisance: %w", err)
		}

		for _, i := range fold {
			rY[i] = y[i] - outcomeForest.Predict(x[i])
			rT[i] = t[i] - treatForest.Predict(x[i])
		}
	}
	return rY, rT, nil
}

func meanAt(xs []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	s := 0.0
	for _, i := range idx {
		s += xs[i]
	}
	return s / float64(len(idx))
}
