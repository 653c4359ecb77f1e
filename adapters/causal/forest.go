package causal

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ForestConfig tunes the bagged regression forest used for nuisance
// regressions and for the causal forest's effect function.
type ForestConfig struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
	Seed     int64
}

// DefaultForestConfig returns the tuning used when nothing overrides it.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{Trees: 100, MaxDepth: 6, MinLeaf: 5, Seed: 42}
}

func (c ForestConfig) normalized() ForestConfig {
	if c.Trees <= 0 {
		c.Trees = 100
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 6
	}
	if c.MinLeaf <= 0 {
		c.MinLeaf = 5
	}
	return c
}

// forest is a bagged ensemble of regression trees. Predictions are the mean
// of per-tree predictions.
type forest struct {
	trees []*treeNode
}

type treeNode struct {
	leaf    bool
	value   float64
	feature int
	thresh  float64
	left    *treeNode
	right   *treeNode
}

// fitForest grows cfg.Trees bootstrap trees in parallel. w is an optional
// per-row weight vector (nil means unweighted); the leaf value is the
// weighted mean of its rows. Fitting stops early if ctx is cancelled.
func fitForest(ctx context.Context, x [][]float64, y, w []float64, cfg ForestConfig) (*forest, error) {
	cfg = cfg.normalized()
	n := len(y)
	if n == 0 {
		return nil, fmt.Errorf("no rows to fit")
	}
	if w == nil {
		w = make([]float64, n)
		for i := range w {
			w[i] = 1
		}
	}

	trees := make([]*treeNode, cfg.Trees)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for b := 0; b < cfg.Trees; b++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(cfg.Seed + int64(b)*7919))
			idx := make([]int, n)
			for i := range idx {
				idx[i] = rng.Intn(n)
			}
			trees[b] = growTree(x, y, w, idx, 0, cfg, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &forest{trees: trees}, nil
}

// Predict returns the ensemble mean for one feature row.
func (f *forest) Predict(row []float64) float64 {
	s := 0.0
	for _, t := range f.trees {
		s += t.predict(row)
	}
	return s / float64(len(f.trees))
}

func (t *treeNode) predict(row []float64) float64 {
	for !t.leaf {
		if row[t.feature] <= t.thresh {
			t = t.left
		} else {
			t = t.right
		}
	}
	return t.value
}

func growTree(x [][]float64, y, w []float64, idx []int, depth int, cfg ForestConfig, rng *rand.Rand) *treeNode {
	nFeatures := 0
	if len(x) > 0 {
		nFeatures = len(x[0])
	}
	if nFeatures == 0 || depth >= cfg.MaxDepth || len(idx) < 2*cfg.MinLeaf {
		return &treeNode{leaf: true, value: weightedMean(y, w, idx)}
	}

	feature, thresh, ok := bestSplit(x, y, w, idx, nFeatures, cfg.MinLeaf, rng)
	if !ok {
		return &treeNode{leaf: true, value: weightedMean(y, w, idx)}
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= thresh {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &treeNode{
		feature: feature,
		thresh:  thresh,
		left:    growTree(x, y, w, left, depth+1, cfg, rng),
		right:   growTree(x, y, w, right, depth+1, cfg, rng),
	}
}

// bestSplit scans a random feature subset for the weighted-SSE-minimizing
// threshold; mtry is the usual one third of the features.
func bestSplit(x [][]float64, y, w []float64, idx []int, nFeatures, minLeaf int, rng *rand.Rand) (int, float64, bool) {
	mtry := nFeatures / 3
	if mtry < 1 {
		mtry = 1
	}
	features := rng.Perm(nFeatures)[:mtry]

	bestScore := 0.0
	bestFeature, bestThresh, found := 0, 0.0, false

	order := make([]int, len(idx))
	for _, f := range features {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return x[order[a]][f] < x[order[b]][f] })

		// Prefix scan of weighted sums to score every split point once.
		totW, totWY := 0.0, 0.0
		for _, i := range order {
			totW += w[i]
			totWY += w[i] * y[i]
		}
		if totW == 0 {
			continue
		}
		parentScore := totWY * totWY / totW

		leftW, leftWY := 0.0, 0.0
		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			leftW += w[i]
			leftWY += w[i] * y[i]
			if pos+1 < minLeaf || len(order)-pos-1 < minLeaf {
				continue
			}
			if x[order[pos]][f] == x[order[pos+1]][f] {
				continue
			}
			rightW := totW - leftW
			rightWY := totWY - leftWY
			if leftW == 0 || rightW == 0 {
				continue
			}
			gain := leftWY*leftWY/leftW + rightWY*rightWY/rightW - parentScore
			if gain > bestScore {
				bestScore = gain
				bestFeature = f
				bestThresh = (x[order[pos]][f] + x[order[pos+1]][f]) / 2
				found = true
			}
		}
	}
	return bestFeature, bestThresh, found
}

func weightedMean(y, w []float64, idx []int) float64 {
	sw, swy := 0.0, 0.0
	for _, i := range idx {
		sw += w[i]
		swy += w[i] * y[i]
	}
	if sw == 0 {
		return 0
	}
	return swy / sw
}
