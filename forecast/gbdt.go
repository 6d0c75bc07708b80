package forecast

import (
	"errors"
	"math"
	"sort"
)

// Training hyperparameters for the boosted ensemble.
const (
	defaultRounds    = 100
	defaultDepth     = 6
	defaultShrinkage = 0.1
	minLeafSamples   = 2
)

// treeNode is one node of a regression tree. Leaves carry the mean residual
// of their samples.
type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
	leaf      bool
}

func (n *treeNode) predict(x []float64) float64 {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// GBDT is a least-squares gradient-boosted tree ensemble.
type GBDT struct {
	base      float64
	shrinkage float64
	trees     []*treeNode
}

// TrainGBDT fits an ensemble to (X, y) with the given rounds, depth and
// shrinkage.
func TrainGBDT(X [][]float64, y []float64, rounds, depth int, shrinkage float64) (*GBDT, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, errors.New("training set is empty or mismatched")
	}

	model := &GBDT{base: mean(y), shrinkage: shrinkage}

	residuals := make([]float64, len(y))
	pred := make([]float64, len(y))
	for i := range y {
		pred[i] = model.base
	}

	indices := make([]int, len(y))
	for i := range indices {
		indices[i] = i
	}

	for round := 0; round < rounds; round++ {
		for i := range y {
			residuals[i] = y[i] - pred[i]
		}
		tree := buildTree(X, residuals, indices, depth)
		model.trees = append(model.trees, tree)
		for i := range y {
			pred[i] += shrinkage * tree.predict(X[i])
		}
	}
	return model, nil
}

// Predict returns the model output for one feature vector.
func (m *GBDT) Predict(x []float64) float64 {
	out := m.base
	for _, t := range m.trees {
		out += m.shrinkage * t.predict(x)
	}
	return out
}

// buildTree grows one regression tree on the residuals of the given sample
// indices.
func buildTree(X [][]float64, residuals []float64, indices []int, depth int) *treeNode {
	if depth == 0 || len(indices) < minLeafSamples*2 {
		return &treeNode{leaf: true, value: meanAt(residuals, indices)}
	}

	feature, threshold, ok := bestSplit(X, residuals, indices)
	if !ok {
		return &treeNode{leaf: true, value: meanAt(residuals, indices)}
	}

	var left, right []int
	for _, i := range indices {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < minLeafSamples || len(right) < minLeafSamples {
		return &treeNode{leaf: true, value: meanAt(residuals, indices)}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      buildTree(X, residuals, left, depth-1),
		right:     buildTree(X, residuals, right, depth-1),
	}
}

// bestSplit scans every feature for the threshold that minimizes the summed
// squared error of the two halves.
func bestSplit(X [][]float64, residuals []float64, indices []int) (feature int, threshold float64, ok bool) {
	bestSSE := math.Inf(1)
	numFeatures := len(X[indices[0]])

	for f := 0; f < numFeatures; f++ {
		values := make([]float64, 0, len(indices))
		for _, i := range indices {
			values = append(values, X[i][f])
		}
		sort.Float64s(values)

		for vi := 0; vi < len(values)-1; vi++ {
			if values[vi] == values[vi+1] {
				continue
			}
			t := (values[vi] + values[vi+1]) / 2

			var leftSum, rightSum float64
			var leftN, rightN int
			for _, i := range indices {
				if X[i][f] <= t {
					leftSum += residuals[i]
					leftN++
				} else {
					rightSum += residuals[i]
					rightN++
				}
			}
			if leftN < minLeafSamples || rightN < minLeafSamples {
				continue
			}

			leftMean := leftSum / float64(leftN)
			rightMean := rightSum / float64(rightN)
			sse := 0.0
			for _, i := range indices {
				var d float64
				if X[i][f] <= t {
					d = residuals[i] - leftMean
				} else {
					d = residuals[i] - rightMean
				}
				sse += d * d
			}
			if sse < bestSSE {
				bestSSE = sse
				feature = f
				threshold = t
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func meanAt(values []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range indices {
		sum += values[i]
	}
	return sum / float64(len(indices))
}
