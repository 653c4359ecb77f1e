package causal

import (
	"context"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"geocausal/domain/causal"
	"geocausal/domain/core"
	"geocausal/ports"
)

// DRLearnerEstimator implements the doubly-robust (AIPW) learner: a logistic
// propensity model and per-arm outcome regressions are combined into a
// bias-reduced effect estimate. The procedure needs a two-valued treatment;
// a continuous treatment is split at its median into a high/low contrast and
// the result carries a warning saying so.
type DRLearnerEstimator struct {
	cfg EstimatorConfig
}

// NewDRLearner creates the estimator.
func NewDRLearner(cfg EstimatorConfig) *DRLearnerEstimator {
	return &DRLearnerEstimator{cfg: cfg}
}

func (e *DRLearnerEstimator) Name() string { return "DRLearner" }

func (e *DRLearnerEstimator) Fit(ctx context.Context, y, t []float64, x [][]float64) (ports.FittedModel, error) {
	if variance(t) == 0 {
		return nil, core.ErrNoVariation
	}

	d, binarized, err := binarizeTreatment(t)
	if err != nil {
		return nil, err
	}

	hasControls := len(x) > 0 && len(x[0]) > 0
	n := len(y)

	// Propensity model. Without controls the assignment probability is the
	// empirical treated share.
	var propensity []float64
	if hasControls {
		propensity, err = logisticFit(x, d, 25)
		if err != nil {
			return nil, err
		}
	} else {
		share := 0.0
		for _, v := range d {
			share += v
		}
		share = clamp(share/float64(n), 0.01, 0.99)
		propensity = make([]float64, n)
		for i := range propensity {
			propensity[i] = share
		}
	}

	mu1, mu0, err := armRegressions(ctx, y, d, x, e.cfg)
	if err != nil {
		return nil, err
	}

	// AIPW scores: the influence function of the doubly-robust moment.
	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		scores[i] = mu1[i] - mu0[i] +
			d[i]*(y[i]-mu1[i])/propensity[i] -
			(1-d[i])*(y[i]-mu0[i])/(1-propensity[i])
	}

	ate, err := stats.Mean(scores)
	if err != nil {
		return nil, err
	}
	sd, err := stats.StandardDeviationSample(scores)
	if err != nil {
		return nil, err
	}
	se := sd / math.Sqrt(float64(n))

	m := &drModel{ate: ate, lo: ate - z975*se, hi: ate + z975*se}
	if binarized {
		m.warnings = append(m.warnings, causal.WarnTreatmentBinarized)
	}
	return m, nil
}

type drModel struct {
	ate, lo, hi float64
	warnings    []string
}

func (m *drModel) AverageEffect() (float64, float64, float64) {
	return m.ate, m.lo, m.hi
}

func (m *drModel) Warnings() []string { return m.warnings }

// binarizeTreatment maps a two-valued treatment onto {0,1} (higher value is
// treated). Anything else is split at the median; ties on the median go to
// the control arm so both arms stay populated for typical data.
func binarizeTreatment(t []float64) (d []float64, binarized bool, err error) {
	uniq := make(map[float64]bool)
	for _, v := range t {
		uniq[v] = true
	}
	d = make([]float64, len(t))

	if len(uniq) == 2 {
		hi := math.Inf(-1)
		for v := range uniq {
			if v > hi {
				hi = v
			}
		}
		for i, v := range t {
			if v == hi {
				d[i] = 1
			}
		}
		return d, false, nil
	}

	med, err := stats.Median(t)
	if err != nil {
		return nil, false, err
	}
	ones := 0
	for i, v := range t {
		if v > med {
			d[i] = 1
			ones++
		}
	}
	if ones == 0 || ones == len(t) {
		return nil, false, fmt.Errorf("%w: median split degenerate", core.ErrNoVariation)
	}
	return d, true, nil
}

// armRegressions fits the outcome forest separately on the treated and
// control rows and predicts both potential outcomes for every row. Without
// controls the arm means are used.
func armRegressions(ctx context.Context, y, d []float64, x [][]float64, cfg EstimatorConfig) (mu1, mu0 []float64, err error) {
	n := len(y)
	mu1 = make([]float64, n)
	mu0 = make([]float64, n)

	var treatedIdx, controlIdx []int
	for i, v := range d {
		if v == 1 {
			treatedIdx = append(treatedIdx, i)
		} else {
			controlIdx = append(controlIdx, i)
		}
	}
	if len(treatedIdx) == 0 || len(controlIdx) == 0 {
		return nil, nil, fmt.Errorf("%w: one treatment arm is empty", core.ErrNoVariation)
	}

	hasControls := len(x) > 0 && len(x[0]) > 0
	if !hasControls {
		m1 := meanAt(y, treatedIdx)
		m0 := meanAt(y, controlIdx)
		for i := 0; i < n; i++ {
			mu1[i] = m1
			mu0[i] = m0
		}
		return mu1, mu0, nil
	}

	fit := func(idx []int, seed int64) (*forest, error) {
		fx := make([][]float64, len(idx))
		fy := make([]float64, len(idx))
		for j, i := range idx {
			fx[j] = x[i]
			fy[j] = y[i]
		}
		fcfg := cfg.Forest
		fcfg.Seed = seed
		// Small arms would starve the default leaf size.
		if fcfg.MinLeaf > len(idx)/2 {
			fcfg.MinLeaf = 1
		}
		return fitForest(ctx, fx, fy, nil, fcfg)
	}

	treatedForest, err := fit(treatedIdx, cfg.Seed+1)
	if err != nil {
		return nil, nil, fmt.Errorf("treated outcome model: %w", err)
	}
	controlForest, err := fit(controlIdx, cfg.Seed+2)
	if err != nil {
		return nil, nil, fmt.Errorf("control outcome model: %w", err)
	}

	for i := 0; i < n; i++ {
		mu1[i] = treatedForest.Predict(x[i])
		mu0[i] = controlForest.Predict(x[i])
	}
	return mu1, mu0, nil
}
