package ports

import (
	"geocausal/domain/causal"
)

// EstimatorRegistry resolves an estimator kind to its implementation.
type EstimatorRegistry interface {
	Estimator(kind causal.EstimatorKind) (Estimator, bool)
	Kinds() []causal.EstimatorKind
}
