package classify

import "sort"

// treeNode is one node of a regression tree. Leaves carry the boosted leaf
// value; internal nodes route on Feature <= Threshold.
type treeNode struct {
	Threshold float64
	Value     float64
	Feature   int
	Left      int
	Right     int
	IsLeaf    bool
}

// regressionTree is a CART regression tree fit to gradient/hessian targets.
type regressionTree struct {
	Nodes []treeNode
}

func (t *regressionTree) predict(x []float64) float64 {
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.IsLeaf {
			return node.Value
		}
		if x[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// buildTree grows a regression tree greedily on the given gradients and
// hessians, accumulating split gain into featureGain.
func buildTree(x [][]float64, gradients, hessians []float64, cfg GBTConfig, featureGain []float64) regressionTree {
	indices := make([]int, len(x))
	for i := range indices {
		indices[i] = i
	}
	tree := regressionTree{}
	growNode(&tree, x, gradients, hessians, indices, 0, cfg, featureGain)
	return tree
}

// growNode appends a node for the given sample indices and recurses. It
// returns the new node's index within the tree.
func growNode(tree *regressionTree, x [][]float64, gradients, hessians []float64, indices []int, depth int, cfg GBTConfig, featureGain []float64) int {
	nodeIdx := len(tree.Nodes)
	tree.Nodes = append(tree.Nodes, treeNode{IsLeaf: true})

	var sumG, sumH float64
	for _, i := range indices {
		sumG += gradients[i]
		sumH += hessians[i]
	}
	tree.Nodes[nodeIdx].Value = -sumG / (sumH + cfg.Lambda)

	if depth >= cfg.MaxDepth || len(indices) < 2*cfg.MinLeafSamples {
		return nodeIdx
	}

	feature, threshold, gain := bestSplit(x, gradients, hessians, indices, sumG, sumH, cfg)
	if gain <= 0 {
		return nodeIdx
	}
	if feature < len(featureGain) {
		featureGain[feature] += gain
	}

	var left, right []int
	for _, i := range indices {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	leftIdx := growNode(tree, x, gradients, hessians, left, depth+1, cfg, featureGain)
	rightIdx := growNode(tree, x, gradients, hessians, right, depth+1, cfg, featureGain)

	tree.Nodes[nodeIdx].IsLeaf = false
	tree.Nodes[nodeIdx].Feature = feature
	tree.Nodes[nodeIdx].Threshold = threshold
	tree.Nodes[nodeIdx].Left = leftIdx
	tree.Nodes[nodeIdx].Right = rightIdx
	return nodeIdx
}

// bestSplit scans every feature for the exact split maximizing the
// regularized gain. Returns gain <= 0 when no split improves on the parent.
func bestSplit(x [][]float64, gradients, hessians []float64, indices []int, sumG, sumH float64, cfg GBTConfig) (feature int, threshold, gain float64) {
	numFeatures := len(x[indices[0]])
	parentScore := sumG * sumG / (sumH + cfg.Lambda)
	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	sorted := make([]int, len(indices))

	for f := 0; f < numFeatures; f++ {
		copy(sorted, indices)
		sort.Slice(sorted, func(a, b int) bool {
			return x[sorted[a]][f] < x[sorted[b]][f]
		})

		var leftG, leftH float64
		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			leftG += gradients[i]
			leftH += hessians[i]

			// Only split between distinct feature values.
			cur, next := x[i][f], x[sorted[pos+1]][f]
			if cur == next {
				continue
			}
			if pos+1 < cfg.MinLeafSamples || len(sorted)-pos-1 < cfg.MinLeafSamples {
				continue
			}

			rightG := sumG - leftG
			rightH := sumH - leftH
			score := leftG*leftG/(leftH+cfg.Lambda) + rightG*rightG/(rightH+cfg.Lambda)
			if g := score - parentScore; g > bestGain {
				bestGain = g
				bestFeature = f
				bestThreshold = (cur + next) / 2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, 0
	}
	return bestFeature, bestThreshold, bestGain
}
