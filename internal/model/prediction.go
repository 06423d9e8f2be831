package model

import (
	"fmt"
	"math"
)

// BlendWeights holds the ensemble's per-model blend coefficients. They are
// set at model-load time, recomputed during training, and read-only while
// serving.
type BlendWeights struct {
	Tree float64
	Text float64
}

// weightSumTolerance bounds acceptable floating drift in Tree+Text.
const weightSumTolerance = 1e-6

// Validate rejects weights outside [0,1] or not summing to 1.
func (w BlendWeights) Validate() error {
	if w.Tree < 0 || w.Tree > 1 || w.Text < 0 || w.Text > 1 {
		return fmt.Errorf("blend weights must be in [0,1], got tree=%.4f text=%.4f", w.Tree, w.Text)
	}
	if math.Abs(w.Tree+w.Text-1) > weightSumTolerance {
		return fmt.Errorf("blend weights must sum to 1, got %.6f", w.Tree+w.Text)
	}
	return nil
}

// DefaultBlendWeights is the neutral-leaning starting point used before the
// optimizer has run.
func DefaultBlendWeights() BlendWeights {
	return BlendWeights{Tree: 0.7, Text: 0.3}
}

// PredictionResult is the outcome of one ensemble prediction. It is created
// fresh per call and never mutated.
type PredictionResult struct {
	Contributions map[string]float64 // Per-feature contribution breakdown
	TransactionID string
	ClassIDs      []int     // Canonical category ordering
	Probabilities []float64 // Full probability vector in ClassIDs order
	Confidence    float64   // Max probability
	CategoryID    int       // Arg-max category
}

// TopN returns the n most probable categories with their probabilities,
// highest first. Ties resolve to the lower category ID.
func (p *PredictionResult) TopN(n int) []CategoryProbability {
	if n <= 0 || len(p.Probabilities) == 0 {
		return nil
	}
	ranked := make([]CategoryProbability, len(p.Probabilities))
	for i, prob := range p.Probabilities {
		ranked[i] = CategoryProbability{CategoryID: p.ClassIDs[i], Probability: prob}
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	for i := 0; i < n; i++ {
		best := i
		for j := i + 1; j < len(ranked); j++ {
			if ranked[j].Probability > ranked[best].Probability ||
				(ranked[j].Probability == ranked[best].Probability && ranked[j].CategoryID < ranked[best].CategoryID) {
				best = j
			}
		}
		ranked[i], ranked[best] = ranked[best], ranked[i]
	}
	return ranked[:n]
}

// CategoryProbability pairs a category with its predicted probability.
type CategoryProbability struct {
	Probability float64
	CategoryID  int
}
