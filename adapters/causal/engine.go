package causal

import (
	"geocausal/domain/causal"
	"geocausal/ports"
)

// Engine maps estimator kinds to their implementations. Callers pick a
// strategy by putting a kind in the request; they never touch a concrete
// estimator type.
type Engine struct {
	estimators map[causal.EstimatorKind]ports.Estimator
}

// NewEngine registers all three estimator variants under one configuration.
func NewEngine(cfg EstimatorConfig) *Engine {
	return &Engine{
		estimators: map[causal.EstimatorKind]ports.Estimator{
			causal.LinearDML:       NewLinearDML(cfg),
			causal.DRLearner:       NewDRLearner(cfg),
			causal.CausalForestDML: NewCausalForest(cfg),
		},
	}
}

// Estimator returns the implementation for a kind.
func (e *Engine) Estimator(kind causal.EstimatorKind) (ports.Estimator, bool) {
	est, ok := e.estimators[kind]
	return est, ok
}

// Kinds lists the kinds actually registered, in display order. Reading the
// map rather than the enum keeps the advertised list honest if the two ever
// diverge.
func (e *Engine) Kinds() []causal.EstimatorKind {
	kinds := make([]causal.EstimatorKind, 0, len(e.estimators))
	for _, k := range causal.Kinds() {
		if _, ok := e.estimators[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
