package causal

import (
	"context"
	"math"
	"testing"
)

func TestFitForest_RecoversStepFunction(t *testing.T) {
	ctx := context.Background()

	// Single feature: mean 2 below zero, mean 8 above.
	n := 200
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		v := float64(i-n/2) / 10.0
		x[i] = []float64{v}
		if v < 0 {
			y[i] = 2.0 + randNorm()*0.2
		} else {
			y[i] = 8.0 + randNorm()*0.2
		}
	}

	f, err := fitForest(ctx, x, y, nil, DefaultForestConfig())
	if err != nil {
		t.Fatalf("fitForest failed: %v", err)
	}

	low := f.Predict([]float64{-5.0})
	high := f.Predict([]float64{5.0})

	if math.Abs(low-2.0) > 0.5 {
		t.Errorf("Expected prediction near 2.0 below split, got %f", low)
	}
	if math.Abs(high-8.0) > 0.5 {
		t.Errorf("Expected prediction near 8.0 above split, got %f", high)
	}
}

func TestFitForest_WeightsSteerTheFit(t *testing.T) {
	ctx := context.Background()

	// Identical feature everywhere: the forest can only learn the
	// weighted mean of y.
	n := 100
	x := make([][]float64, n)
	y := make([]float64, n)
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = []float64{1.0}
		if i < n/2 {
			y[i] = 0.0
			w[i] = 0.0
		} else {
			y[i] = 10.0
			w[i] = 1.0
		}
	}

	f, err := fitForest(ctx, x, y, w, DefaultForestConfig())
	if err != nil {
		t.Fatalf("fitForest failed: %v", err)
	}

	got := f.Predict([]float64{1.0})
	if math.Abs(got-10.0) > 0.5 {
		t.Errorf("Expected weighted prediction near 10.0, got %f", got)
	}
}

func TestFitForest_Deterministic(t *testing.T) {
	ctx := context.Background()

	n := 80
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = []float64{float64(i), float64(i % 7)}
		y[i] = float64(i)*0.3 + randNorm()
	}

	cfg := DefaultForestConfig()
	f1, err := fitForest(ctx, x, y, nil, cfg)
	if err != nil {
		t.Fatalf("first fit failed: %v", err)
	}
	f2, err := fitForest(ctx, x, y, nil, cfg)
	if err != nil {
		t.Fatalf("second fit failed: %v", err)
	}

	probe := []float64{40.0, 3.0}
	if f1.Predict(probe) != f2.Predict(probe) {
		t.Errorf("Same seed should give identical predictions: %f vs %f",
			f1.Predict(probe), f2.Predict(probe))
	}
}

func TestFitForest_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := 50
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = []float64{float64(i)}
		y[i] = float64(i)
	}

	if _, err := fitForest(ctx, x, y, nil, DefaultForestConfig()); err == nil {
		t.Error("Expected error from cancelled context")
	}
}

// Simple pseudo-random normal distribution (Box-Muller transform)
var randState = 12345.0

func randNorm() float64 {
	// Update state with linear congruential generator
	randState = math.Mod(randState*1103515245+12345, 2147483648)
	u1 := randState / 2147483648.0

	randState = math.Mod(randState*1103515245+12345, 2147483648)
	u2 := randState / 2147483648.0

	// Box-Muller transform
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
