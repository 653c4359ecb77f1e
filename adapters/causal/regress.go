package causal

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// z975 is the 0.975 standard-normal quantile used for 95% intervals.
var z975 = distuv.Normal{Mu: 0, Sigma: 1}.Quantile(0.975)

// olsSolve fits ordinary least squares of y on the design matrix rows
// (intercept included by the caller) via QR decomposition.
func olsSolve(design [][]float64, y []float64) ([]float64, error) {
	n := len(design)
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("design/response size mismatch: %d vs %d", n, len(y))
	}
	p := len(design[0])
	if n < p {
		return nil, fmt.Errorf("underdetermined system: %d rows, %d coefficients", n, p)
	}

	x := mat.NewDense(n, p, nil)
	for i, row := range design {
		x.SetRow(i, row)
	}
	b := mat.NewVecDense(n, y)

	var qr mat.QR
	qr.Factorize(x)
	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, b); err != nil {
		return nil, fmt.Errorf("singular design: %w", err)
	}

	out := make([]float64, p)
	for i := range out {
		out[i] = coef.AtVec(i)
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return nil, fmt.Errorf("non-finite coefficient at %d", i)
		}
	}
	return out, nil
}

// crossFitFolds assigns each of n observations to one of k folds by seeded
// shuffle. k is clamped so every training split keeps at least two rows.
func crossFitFolds(n, k int, rng *rand.Rand) [][]int {
	if k > n/2 {
		k = n / 2
	}
	if k < 2 {
		k = 2
	}
	perm := rng.Perm(n)
	folds := make([][]int, k)
	for i, idx := range perm {
		f := i % k
		folds[f] = append(folds[f], idx)
	}
	return folds
}

// complementOf returns all indices in [0, n) not present in fold.
func complementOf(n int, fold []int) []int {
	in := make([]bool, n)
	for _, i := range fold {
		in[i] = true
	}
	out := make([]int, 0, n-len(fold))
	for i := 0; i < n; i++ {
		if !in[i] {
			out = append(out, i)
		}
	}
	return out
}

// logisticFit runs Newton-Raphson logistic regression of d on the feature
// rows (intercept added internally). Returns fitted probabilities clipped
// away from 0 and 1 so inverse-propensity weights stay bounded.
func logisticFit(features [][]float64, d []float64, maxIter int) ([]float64, error) {
	n := len(features)
	if n == 0 || n != len(d) {
		return nil, fmt.Errorf("feature/label size mismatch")
	}
	p := 1
	if n > 0 {
		p += len(features[0])
	}

	design := make([][]float64, n)
	for i, row := range features {
		design[i] = append([]float64{1}, row...)
	}

	beta := make([]float64, p)
	for iter := 0; iter < maxIter; iter++ {
		// Score and (negative) Hessian for one Newton step.
		grad := make([]float64, p)
		hess := mat.NewDense(p, p, nil)
		for i := 0; i < n; i++ {
			eta := dot(design[i], beta)
			mu := sigmoid(eta)
			w := mu * (1 - mu)
			for a := 0; a < p; a++ {
				grad[a] += (d[i] - mu) * design[i][a]
				for b := 0; b < p; b++ {
					hess.Set(a, b, hess.At(a, b)+w*design[i][a]*design[i][b])
				}
			}
		}
		// Ridge jitter keeps the Hessian invertible on separable data.
		for a := 0; a < p; a++ {
			hess.Set(a, a, hess.At(a, a)+1e-6)
		}

		var step mat.VecDense
		if err := step.SolveVec(hess, mat.NewVecDense(p, grad)); err != nil {
			return nil, fmt.Errorf("propensity fit failed: %w", err)
		}
		delta := 0.0
		for a := 0; a < p; a++ {
			beta[a] += step.AtVec(a)
			delta += math.Abs(step.AtVec(a))
		}
		if delta < 1e-8 {
			break
		}
	}

	probs := make([]float64, n)
	for i := 0; i < n; i++ {
		probs[i] = clamp(sigmoid(dot(design[i], beta)), 0.01, 0.99)
	}
	return probs, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// variance is the population variance used for degenerate-treatment checks.
func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range xs {
		mean += v
	}
	mean /= float64(len(xs))
	s := 0.0
	for _, v := range xs {
		s += (v - mean) * (v - mean)
	}
	return s / float64(len(xs))
}
