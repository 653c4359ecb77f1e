package causal

import (
	"math"

	"geocausal/domain/core"
)

// EstimatorKind selects which causal estimation strategy to run. All kinds
// share the same request and result shapes; callers never branch on the kind
// beyond putting it in the request.
type EstimatorKind string

const (
	LinearDML       EstimatorKind = "LinearDML"
	DRLearner       EstimatorKind = "DRLearner"
	CausalForestDML EstimatorKind = "CausalForestDML"
)

// Kinds lists the supported estimator kinds in display order.
func Kinds() []EstimatorKind {
	return []EstimatorKind{LinearDML, DRLearner, CausalForestDML}
}

// Known reports whether k is a supported estimator kind.
func (k EstimatorKind) Known() bool {
	switch k {
	case LinearDML, DRLearner, CausalForestDML:
		return true
	}
	return false
}

// Warning codes attached to results that remain usable.
const (
	WarnIntervalInverted   = "interval_inverted"   // CI bounds out of order, tolerated
	WarnTreatmentBinarized = "treatment_binarized" // continuous treatment split at median for DR
)

// EstimationRequest names the variables and strategy for one estimation.
// Each request is stateless and independent; the fitted model lives only for
// the duration of the call.
type EstimationRequest struct {
	Outcome   string        `json:"outcome"`
	Treatment string        `json:"treatment"`
	Controls  []string      `json:"controls"`
	Kind      EstimatorKind `json:"estimator"`
}

// Columns returns outcome, treatment and controls as one ordered list,
// the column set used for complete-row filtering.
func (r EstimationRequest) Columns() []string {
	cols := make([]string, 0, 2+len(r.Controls))
	cols = append(cols, r.Outcome, r.Treatment)
	cols = append(cols, r.Controls...)
	return cols
}

// Validate enforces the request invariants before any fitting happens:
// outcome != treatment, controls disjoint from both, no duplicate controls,
// and a known estimator kind.
func (r EstimationRequest) Validate() error {
	if r.Outcome == "" {
		return core.NewValidationError("outcome", "must be set")
	}
	if r.Treatment == "" {
		return core.NewValidationError("treatment", "must be set")
	}
	if r.Outcome == r.Treatment {
		return core.NewValidationError("treatment", "must differ from outcome")
	}
	seen := make(map[string]bool, len(r.Controls))
	for _, c := range r.Controls {
		if c == r.Outcome || c == r.Treatment {
			return core.NewValidationError("controls", "must be disjoint from outcome and treatment")
		}
		if seen[c] {
			return core.NewValidationError("controls", "duplicate control "+c)
		}
		seen[c] = true
	}
	if !r.Kind.Known() {
		return core.NewValidationError("estimator", string(r.Kind)+" is not a supported estimator")
	}
	return nil
}

// EstimationResult is the common output shape of every estimator: a point
// ATE, its 95% confidence interval, and (for estimators that expose
// heterogeneity) one conditional effect per retained row, in filtered input
// order.
type EstimationResult struct {
	RunID      core.RunID     `json:"run_id"`
	Kind       EstimatorKind  `json:"estimator"`
	ATE        float64        `json:"ate"`
	CILow      float64        `json:"ci_low"`
	CIHigh     float64        `json:"ci_high"`
	SampleSize int            `json:"sample_size"`
	CATE       []float64      `json:"cate,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
	CreatedAt  core.Timestamp `json:"created_at"`
}

// HasCATE reports whether the estimator exposed per-row conditional effects.
func (r *EstimationResult) HasCATE() bool {
	return len(r.CATE) > 0
}

// IntervalOrdered reports whether CILow <= ATE <= CIHigh. Asymmetric and
// inverted intervals are tolerated as data, not rejected; callers use this
// only to decide whether to attach WarnIntervalInverted.
func (r *EstimationResult) IntervalOrdered() bool {
	return r.CILow <= r.ATE && r.ATE <= r.CIHigh
}

// Finite reports whether the point estimate and both bounds are finite.
func (r *EstimationResult) Finite() bool {
	for _, v := range []float64{r.ATE, r.CILow, r.CIHigh} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ModelRow is one row of a precomputed result table: a named model and its
// effect estimate. Tables are loaded once and never mutated; the best model
// is derived transiently on each display.
type ModelRow struct {
	Model  string  `json:"model" db:"model"`
	ATE    float64 `json:"ate" db:"ate"`
	CILow  float64 `json:"ci_low" db:"ci_low"`
	CIHigh float64 `json:"ci_high" db:"ci_high"`
	AbsATE float64 `json:"abs_ate" db:"abs_ate"`
}

// NewModelRow derives AbsATE so stored tables stay consistent with the
// displayed ordering criterion.
func NewModelRow(model string, ate, ciLow, ciHigh float64) ModelRow {
	return ModelRow{
		Model:  model,
		ATE:    ate,
		CILow:  ciLow,
		CIHigh: ciHigh,
		AbsATE: math.Abs(ate),
	}
}

// CATERow is one row of a precomputed per-observation conditional effect
// table, optionally enriched with the controls used for heterogeneity plots.
type CATERow struct {
	CATE             float64 `json:"cate" db:"cate"`
	GDPPerCapita     float64 `json:"gdp_per_capita,omitempty" db:"gdp_per_capita"`
	GovEffectiveness float64 `json:"gov_effectiveness,omitempty" db:"gov_effectiveness"`
	Country          string  `json:"country,omitempty" db:"country"`
}
