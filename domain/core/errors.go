package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Loading errors
	ErrLoadFailed     = errors.New("dataset load failed")
	ErrMissingColumn  = fmt.Errorf("%w: required column missing", ErrLoadFailed)
	ErrEmptySource    = fmt.Errorf("%w: source has no data rows", ErrLoadFailed)
	ErrSourceNotFound = fmt.Errorf("%w: source not readable", ErrLoadFailed)

	// Request validation errors
	ErrInvalidRequest   = errors.New("invalid estimation request")
	ErrUnknownEstimator = fmt.Errorf("%w: unknown estimator", ErrInvalidRequest)
	ErrUnknownVariable  = fmt.Errorf("%w: variable not in catalog", ErrInvalidRequest)

	// Estimation errors
	ErrInsufficientData = errors.New("insufficient data for estimation")
	ErrEstimationFailed = errors.New("estimation failed")
	ErrNoVariation      = fmt.Errorf("%w: treatment has no variation", ErrEstimationFailed)

	// Reporting errors
	ErrEmptyTable = errors.New("no rows to summarize")
)

// NewLoadError wraps a source-level failure with the source name
func NewLoadError(source string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrLoadFailed, source, err)
}

// NewValidationError describes a request invariant violation
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidRequest, field, reason)
}

// NewEstimationError attaches the triggering request parameters to a fitting failure
func NewEstimationError(outcome, treatment string, err error) error {
	return fmt.Errorf("%w (outcome=%s treatment=%s): %w", ErrEstimationFailed, outcome, treatment, err)
}

// Error checking helpers
func IsLoadError(err error) bool {
	return errors.Is(err, ErrLoadFailed)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsEstimationError(err error) bool {
	return errors.Is(err, ErrEstimationFailed)
}
