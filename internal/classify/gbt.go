// Package classify implements the prediction engine: a gradient-boosted
// tree model and a probabilistic text/amount model fused into calibrated
// per-category probabilities by a weighted ensemble.
package classify

import (
	"fmt"
	"math"
	"sort"

	"github.com/fafycat/fafycat/internal/common"
	"github.com/fafycat/fafycat/internal/features"
)

// GBTConfig holds gradient boosting hyperparameters.
type GBTConfig struct {
	Rounds         int
	MaxDepth       int
	MinLeafSamples int
	LearningRate   float64
	Lambda         float64 // L2 regularization on leaf values
}

// DefaultGBTConfig returns the default boosting configuration.
func DefaultGBTConfig() GBTConfig {
	return GBTConfig{
		Rounds:         100,
		MaxDepth:       4,
		MinLeafSamples: 5,
		LearningRate:   0.1,
		Lambda:         1.0,
	}
}

// GBTClassifier is a multiclass gradient-boosted decision-tree model over
// the numeric feature vector. It produces a full probability vector via
// softmax over per-class boosted scores.
type GBTClassifier struct {
	Config      GBTConfig
	ClassIDs    []int              // sorted category IDs
	Trees       [][]regressionTree // [round][class index]
	BaseScores  []float64          // log prior per class
	Gain        []float64          // accumulated split gain per feature
	NumFeatures int
	Trained     bool
}

// NewGBTClassifier creates an untrained boosted-tree classifier.
func NewGBTClassifier(cfg GBTConfig) *GBTClassifier {
	return &GBTClassifier{Config: cfg}
}

// Classes returns the sorted category IDs the model predicts over.
func (g *GBTClassifier) Classes() []int {
	return g.ClassIDs
}

// Fit trains the boosted trees on labeled feature vectors. Labels are
// category IDs. Fit is all-or-nothing: a partially boosted model is never
// exposed.
func (g *GBTClassifier) Fit(vectors []features.Vector, labels []int) error {
	if len(vectors) == 0 || len(vectors) != len(labels) {
		return fmt.Errorf("gbt fit: %d vectors, %d labels", len(vectors), len(labels))
	}

	g.NumFeatures = len(vectors[0].Numeric)
	x := make([][]float64, len(vectors))
	for i, v := range vectors {
		if len(v.Numeric) != g.NumFeatures {
			return &common.FeatureShapeError{Got: len(v.Numeric), Want: g.NumFeatures}
		}
		x[i] = v.Numeric
	}

	g.ClassIDs = uniqueSorted(labels)
	if len(g.ClassIDs) < 2 {
		return fmt.Errorf("gbt fit: need at least 2 categories, got %d", len(g.ClassIDs))
	}
	classIndex := make(map[int]int, len(g.ClassIDs))
	for i, id := range g.ClassIDs {
		classIndex[id] = i
	}

	n := len(x)
	k := len(g.ClassIDs)

	// One-hot targets and log-prior base scores.
	y := make([][]float64, n)
	counts := make([]float64, k)
	for i, label := range labels {
		row := make([]float64, k)
		ci := classIndex[label]
		row[ci] = 1
		y[i] = row
		counts[ci]++
	}
	g.BaseScores = make([]float64, k)
	for ci := range g.BaseScores {
		g.BaseScores[ci] = math.Log(counts[ci] / float64(n))
	}

	// Raw scores start at the priors.
	scores := make([][]float64, n)
	for i := range scores {
		scores[i] = append([]float64(nil), g.BaseScores...)
	}

	g.Gain = make([]float64, g.NumFeatures)
	g.Trees = make([][]regressionTree, 0, g.Config.Rounds)

	gradients := make([]float64, n)
	hessians := make([]float64, n)

	for round := 0; round < g.Config.Rounds; round++ {
		roundTrees := make([]regressionTree, k)
		for ci := 0; ci < k; ci++ {
			for i := 0; i < n; i++ {
				p := softmaxAt(scores[i], ci)
				gradients[i] = p - y[i][ci]
				hessians[i] = p * (1 - p)
			}
			tree := buildTree(x, gradients, hessians, g.Config, g.Gain)
			roundTrees[ci] = tree
			for i := 0; i < n; i++ {
				scores[i][ci] += g.Config.LearningRate * tree.predict(x[i])
			}
		}
		g.Trees = append(g.Trees, roundTrees)
	}

	g.Trained = true
	return nil
}

// ClassProbabilities returns the full probability vector in ClassIDs order.
func (g *GBTClassifier) ClassProbabilities(v features.Vector) ([]float64, error) {
	if !g.Trained {
		return nil, common.ErrModelNotTrained
	}
	if len(v.Numeric) != g.NumFeatures {
		return nil, &common.FeatureShapeError{Got: len(v.Numeric), Want: g.NumFeatures}
	}

	scores := append([]float64(nil), g.BaseScores...)
	for _, roundTrees := range g.Trees {
		for ci := range roundTrees {
			scores[ci] += g.Config.LearningRate * roundTrees[ci].predict(v.Numeric)
		}
	}
	return softmax(scores), nil
}

// FeatureImportance returns per-feature split gain, normalized to sum to 1.
func (g *GBTClassifier) FeatureImportance() map[string]float64 {
	if !g.Trained {
		return nil
	}
	names := features.NumericFeatureNames()
	total := 0.0
	for _, gain := range g.Gain {
		total += gain
	}
	importance := make(map[string]float64, len(g.Gain))
	if total == 0 {
		return importance
	}
	for i, gain := range g.Gain {
		if gain > 0 && i < len(names) {
			importance[names[i]] = gain / total
		}
	}
	return importance
}

func uniqueSorted(labels []int) []int {
	seen := make(map[int]struct{}, len(labels))
	var out []int
	for _, l := range labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}

// softmaxAt computes the softmax probability of index ci without
// materializing the whole vector.
func softmaxAt(scores []float64, ci int) float64 {
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	var sum float64
	for _, s := range scores {
		sum += math.Exp(s - maxScore)
	}
	return math.Exp(scores[ci]-maxScore) / sum
}

func softmax(scores []float64) []float64 {
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
