package causal

import (
	"math"
	"reflect"
	"testing"

	"geocausal/domain/core"
)

func TestEstimatorKind_Known(t *testing.T) {
	for _, k := range Kinds() {
		if !k.Known() {
			t.Errorf("%s should be a known kind", k)
		}
	}
	if EstimatorKind("XLearner").Known() {
		t.Error("XLearner should not be a known kind")
	}
	if EstimatorKind("").Known() {
		t.Error("Empty kind should not be known")
	}
}

func TestEstimationRequest_Validate(t *testing.T) {
	valid := EstimationRequest{
		Outcome:   "co2",
		Treatment: "gdp",
		Controls:  []string{"population", "urbanization"},
		Kind:      LinearDML,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Valid request rejected: %v", err)
	}

	cases := []struct {
		name string
		req  EstimationRequest
	}{
		{"missing outcome", EstimationRequest{Treatment: "gdp", Kind: LinearDML}},
		{"missing treatment", EstimationRequest{Outcome: "co2", Kind: LinearDML}},
		{"outcome equals treatment", EstimationRequest{Outcome: "gdp", Treatment: "gdp", Kind: LinearDML}},
		{"control equals outcome", EstimationRequest{Outcome: "co2", Treatment: "gdp", Controls: []string{"co2"}, Kind: LinearDML}},
		{"control equals treatment", EstimationRequest{Outcome: "co2", Treatment: "gdp", Controls: []string{"gdp"}, Kind: LinearDML}},
		{"duplicate control", EstimationRequest{Outcome: "co2", Treatment: "gdp", Controls: []string{"pop", "pop"}, Kind: LinearDML}},
		{"unknown kind", EstimationRequest{Outcome: "co2", Treatment: "gdp", Kind: "SLearner"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !core.IsValidationError(err) {
				t.Errorf("Expected a validation error, got %v", err)
			}
		})
	}
}

func TestEstimationRequest_Columns(t *testing.T) {
	req := EstimationRequest{Outcome: "co2", Treatment: "gdp", Controls: []string{"pop"}}
	want := []string{"co2", "gdp", "pop"}
	if got := req.Columns(); !reflect.DeepEqual(got, want) {
		t.Errorf("Columns() = %v, want %v", got, want)
	}
}

func TestEstimationResult_IntervalOrdered(t *testing.T) {
	ordered := EstimationResult{ATE: 0.5, CILow: 0.1, CIHigh: 0.9}
	if !ordered.IntervalOrdered() {
		t.Error("Expected ordered interval")
	}

	inverted := EstimationResult{ATE: 0.5, CILow: 0.9, CIHigh: 0.1}
	if inverted.IntervalOrdered() {
		t.Error("Inverted interval should report unordered")
	}

	// Degenerate but ordered.
	point := EstimationResult{ATE: 0.5, CILow: 0.5, CIHigh: 0.5}
	if !point.IntervalOrdered() {
		t.Error("Point interval should count as ordered")
	}
}

func TestEstimationResult_Finite(t *testing.T) {
	if !(&EstimationResult{ATE: 1, CILow: 0, CIHigh: 2}).Finite() {
		t.Error("Expected finite result")
	}
	if (&EstimationResult{ATE: math.NaN(), CILow: 0, CIHigh: 2}).Finite() {
		t.Error("NaN ATE should not be finite")
	}
	if (&EstimationResult{ATE: 1, CILow: math.Inf(-1), CIHigh: 2}).Finite() {
		t.Error("Infinite bound should not be finite")
	}
}

func TestEstimationResult_HasCATE(t *testing.T) {
	if (&EstimationResult{}).HasCATE() {
		t.Error("No CATE expected on an empty result")
	}
	if !(&EstimationResult{CATE: []float64{0.1}}).HasCATE() {
		t.Error("Expected CATE to be reported")
	}
}

func TestNewModelRow_DerivesAbsATE(t *testing.T) {
	row := NewModelRow("LinearDML", -0.25, -0.4, -0.1)
	if row.AbsATE != 0.25 {
		t.Errorf("AbsATE = %f, want 0.25", row.AbsATE)
	}
}
