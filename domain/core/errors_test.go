package core

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		root  error
		check func(error) bool
	}{
		{"missing column", ErrMissingColumn, ErrLoadFailed, IsLoadError},
		{"empty source", ErrEmptySource, ErrLoadFailed, IsLoadError},
		{"source not found", ErrSourceNotFound, ErrLoadFailed, IsLoadError},
		{"unknown estimator", ErrUnknownEstimator, ErrInvalidRequest, IsValidationError},
		{"unknown variable", ErrUnknownVariable, ErrInvalidRequest, IsValidationError},
		{"no variation", ErrNoVariation, ErrEstimationFailed, IsEstimationError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.root) {
				t.Errorf("%v should wrap %v", tc.err, tc.root)
			}
			if !tc.check(tc.err) {
				t.Errorf("Category check failed for %v", tc.err)
			}
		})
	}
}

func TestNewLoadError(t *testing.T) {
	cause := errors.New("disk gone")
	err := NewLoadError("data.xlsx", cause)

	if !IsLoadError(err) {
		t.Error("Expected a load error")
	}
	if !errors.Is(err, cause) {
		t.Error("Cause should stay unwrappable")
	}
	if !strings.Contains(err.Error(), "data.xlsx") {
		t.Errorf("Source missing from message: %v", err)
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("treatment", "must differ from outcome")

	if !IsValidationError(err) {
		t.Error("Expected a validation error")
	}
	if !strings.Contains(err.Error(), "treatment") {
		t.Errorf("Field missing from message: %v", err)
	}
}

func TestNewEstimationError_CarriesRequestAndCause(t *testing.T) {
	err := NewEstimationError("co2", "gdp", ErrNoVariation)

	if !IsEstimationError(err) {
		t.Error("Expected an estimation error")
	}
	if !errors.Is(err, ErrNoVariation) {
		t.Error("Cause should stay unwrappable through the wrapper")
	}
	msg := err.Error()
	if !strings.Contains(msg, "outcome=co2") || !strings.Contains(msg, "treatment=gdp") {
		t.Errorf("Request parameters missing from message: %v", err)
	}
}

func TestIsInsufficientData(t *testing.T) {
	wrapped := NewEstimationError("a", "b", ErrNoVariation)
	if IsInsufficientData(wrapped) {
		t.Error("Estimation error should not classify as insufficient data")
	}
	if !IsInsufficientData(ErrInsufficientData) {
		t.Error("Sentinel should classify as insufficient data")
	}
}
