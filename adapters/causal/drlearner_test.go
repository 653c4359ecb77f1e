package causal

import (
	"context"
	"errors"
	"math"
	"testing"

	"geocausal/domain/causal"
	"geocausal/domain/core"
)

func TestDRLearner_BinaryTreatment(t *testing.T) {
	ctx := context.Background()

	// Randomized binary treatment with a constant effect of 3.
	n := 300
	y := make([]float64, n)
	tr := make([]float64, n)
	x := make([][]float64, n)
	for i := 0; i < n; i++ {
		x1 := randNorm()
		d := 0.0
		if i%2 == 0 {
			d = 1.0
		}
		tr[i] = d
		y[i] = 3.0*d + x1 + randNorm()*0.3
		x[i] = []float64{x1}
	}

	est := NewDRLearner(DefaultEstimatorConfig())
	model, err := est.Fit(ctx, y, tr, x)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	ate, lo, hi := model.AverageEffect()
	if math.Abs(ate-3.0) > 1.0 {
		t.Errorf("Expected ATE near 3.0, got %f", ate)
	}
	if lo > hi {
		t.Errorf("Interval bounds out of order: [%f, %f]", lo, hi)
	}

	if ws := model.(interface{ Warnings() []string }).Warnings(); len(ws) != 0 {
		t.Errorf("Binary treatment should not warn, got %v", ws)
	}
}

func TestDRLearner_ContinuousTreatmentWarns(t *testing.T) {
	ctx := context.Background()
	y, tr, x := syntheticPanel(200, 2.0)

	est := NewDRLearner(DefaultEstimatorConfig())
	model, err := est.Fit(ctx, y, tr, x)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	ws := model.(interface{ Warnings() []string }).Warnings()
	found := false
	for _, w := range ws {
		if w == causal.WarnTreatmentBinarized {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected %q warning for continuous treatment, got %v", causal.WarnTreatmentBinarized, ws)
	}

	ate, _, _ := model.AverageEffect()
	if math.IsNaN(ate) || math.IsInf(ate, 0) {
		t.Errorf("Expected finite ATE, got %f", ate)
	}
}

func TestDRLearner_ConstantTreatment(t *testing.T) {
	ctx := context.Background()

	n := 40
	y := make([]float64, n)
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = randNorm()
		tr[i] = 2.0
	}

	est := NewDRLearner(DefaultEstimatorConfig())
	if _, err := est.Fit(ctx, y, tr, nil); !errors.Is(err, core.ErrNoVariation) {
		t.Errorf("Expected ErrNoVariation, got %v", err)
	}
}

func TestBinarizeTreatment(t *testing.T) {
	// Two-valued treatment keeps its coding, higher value is the arm.
	d, binarized, err := binarizeTreatment([]float64{2, 5, 2, 5})
	if err != nil {
		t.Fatalf("binarize failed: %v", err)
	}
	if binarized {
		t.Error("Two-valued treatment should not count as binarized")
	}
	want := []float64{0, 1, 0, 1}
	for i := range want {
		if d[i] != want[i] {
			t.Errorf("d[%d] = %f, want %f", i, d[i], want[i])
		}
	}

	// Continuous treatment splits at the median.
	d, binarized, err = binarizeTreatment([]float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("binarize failed: %v", err)
	}
	if !binarized {
		t.Error("Continuous treatment should report binarization")
	}
	ones := 0
	for _, v := range d {
		if v == 1 {
			ones++
		}
	}
	if ones == 0 || ones == len(d) {
		t.Errorf("Median split should leave both arms populated, got %d ones of %d", ones, len(d))
	}
}
