package causal

import (
	"context"
	"fmt"
	"math"

	"geocausal/domain/core"
	"geocausal/ports"
)

// CausalForestEstimator implements causal-forest double machine learning:
// the outcome and treatment are residualized exactly as in LinearDML, then a
// weighted forest over the controls learns a nonparametric effect function
// theta(x). Each leaf solves the local residual-on-residual regression, so
// the forest exposes a conditional effect for every fitted row.
type CausalForestEstimator struct {
	cfg EstimatorConfig
}

// NewCausalForest creates the estimator.
func NewCausalForest(cfg EstimatorConfig) *CausalForestEstimator {
	return &CausalForestEstimator{cfg: cfg}
}

func (e *CausalForestEstimator) Name() string { return "CausalForestDML" }

func (e *CausalForestEstimator) Fit(ctx context.Context, y, t []float64, x [][]float64) (ports.FittedModel, error) {
	if variance(t) == 0 {
		return nil, core.ErrNoVariation
	}

	rY, rT, err := residualize(ctx, y, t, x, e.cfg)
	if err != nil {
		return nil, err
	}

	n := len(rY)
	sumSqT := 0.0
	for _, v := range rT {
		sumSqT += v * v
	}
	if sumSqT < 1e-12 {
		return nil, fmt.Errorf("%w after residualization", core.ErrNoVariation)
	}

	cate := make([]float64, n)
	hasControls := len(x) > 0 && len(x[0]) > 0
	if hasControls {
		// Robinson transformation: regress the pseudo-outcome rY/rT with
		// weights rT^2. A leaf's weighted mean is then the leaf-level DML
		// estimate sum(rT*rY)/sum(rT^2).
		pseudo := make([]float64, n)
		weights := make([]float64, n)
		for i := 0; i < n; i++ {
			w := rT[i] * rT[i]
			weights[i] = w
			if w > 1e-12 {
				pseudo[i] = rY[i] / rT[i]
			}
		}

		fcfg := e.cfg.Forest
		fcfg.Seed = e.cfg.Seed + 31
		effectForest, err := fitForest(ctx, x, pseudo, weights, fcfg)
		if err != nil {
			return nil, fmt.Errorf("effect forest: %w", err)
		}
		for i := 0; i < n; i++ {
			cate[i] = effectForest.Predict(x[i])
		}
	} else {
		// No controls means no heterogeneity to learn; every row gets the
		// global partialling-out estimate.
		theta, _, _, err := partiallingOut(rY, rT)
		if err != nil {
			return nil, err
		}
		for i := range cate {
			cate[i] = theta
		}
	}

	ate := 0.0
	for _, v := range cate {
		ate += v
	}
	ate /= float64(n)

	// Influence-function interval with the heterogeneous fit plugged into
	// the orthogonal moment.
	sumPsiSq := 0.0
	for i := 0; i < n; i++ {
		psi := rT[i] * (rY[i] - cate[i]*rT[i])
		sumPsiSq += psi * psi
	}
	se := math.Sqrt(sumPsiSq) / sumSqT

	return &causalForestModel{
		ate:  ate,
		lo:   ate - z975*se,
		hi:   ate + z975*se,
		cate: cate,
	}, nil
}

type causalForestModel struct {
	ate, lo, hi float64
	cate        []float64
}

func (m *causalForestModel) AverageEffect() (float64, float64, float64) {
	return m.ate, m.lo, m.hi
}

// EffectPerRow returns one conditional effect per fitted row, input order.
func (m *causalForestModel) EffectPerRow() []float64 {
	return m.cate
}
